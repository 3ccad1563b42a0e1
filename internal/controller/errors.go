package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
)

// TranslateError turns a failure into the status code and JSON body the
// caller receives. Provider rejections keep their status and body; every
// other failure is a 500 except validation errors, which are 400.
func TranslateError(err error) (int, []byte) {
	var upstream *domainErrors.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode, upstreamBody(upstream)
	}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, mustMarshal(ErrorResponse{
			Message: validationErr.Message,
			Code:    "validation_error",
			Field:   validationErr.Field,
		})
	}

	return http.StatusInternalServerError, mustMarshal(ErrorResponse{Message: err.Error()})
}

func upstreamBody(e *domainErrors.UpstreamError) []byte {
	body := bytes.TrimSpace(e.Body)
	switch {
	case len(body) == 0:
		return mustMarshal(ErrorResponse{
			Message: fmt.Sprintf("Request failed with status code %d", e.StatusCode),
		})
	case json.Valid(body):
		return e.Body
	default:
		return mustMarshal(string(e.Body))
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"message":"internal server error"}`)
	}
	return b
}
