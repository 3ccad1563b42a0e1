package controller

import (
	"net/http"

	"github.com/cassiomorais/pixgateway/internal/service"
	"github.com/rs/zerolog/hlog"
)

type WebhookController struct {
	svc *service.PixService
}

func NewWebhookController(svc *service.PixService) *WebhookController {
	return &WebhookController{svc: svc}
}

// Receive acknowledges a provider notification. The answer is 200 OK whether
// or not the notification could be used.
func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err == nil {
		err = c.svc.HandleWebhook(r.Context(), body)
	}
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Webhook acknowledged without dispatch")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
