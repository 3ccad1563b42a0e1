package controller

import (
	"encoding/json"
	"net/http"
	"net/url"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/cassiomorais/pixgateway/internal/service"
	"github.com/go-chi/chi/v5"
)

type PixController struct {
	svc *service.PixService
}

func NewPixController(svc *service.PixService) *PixController {
	return &PixController{svc: svc}
}

// Create handles POST /api/pix/create.
func (c *PixController) Create(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := c.svc.CreateTransaction(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCreateTransactionResponse(result))
}

// Status handles GET /api/pix/status/{id}.
func (c *PixController) Status(w http.ResponseWriter, r *http.Request) {
	// chi hands back the escaped segment when the path carried encoded characters
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, domainErrors.WrapValidationError("id", "malformed transaction id", domainErrors.ErrInvalidInput))
		return
	}

	doc, err := c.svc.GetStatus(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// the provider document is relayed as is; anything that is not JSON goes out as a JSON string
	if !json.Valid(doc) {
		doc = mustMarshal(string(doc))
	}
	writeRaw(w, http.StatusOK, doc)
}
