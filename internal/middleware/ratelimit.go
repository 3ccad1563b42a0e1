package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/hlog"
)

const rateLimitWindow = time.Minute

// rateLimitedResponse mirrors controller.ErrorResponse, which this package
// cannot import.
type rateLimitedResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

var rateLimitedBody, _ = json.Marshal(rateLimitedResponse{
	Message: "rate limit exceeded",
	Code:    "rate_limit",
})

// RateLimit caps the PIX endpoints per client IP over a one minute window.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rejectRateLimited),
	)
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	hlog.FromRequest(r).Warn().
		Str("path", r.URL.Path).
		Msg("Rate limit exceeded")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write(rateLimitedBody)
}
