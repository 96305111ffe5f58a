package handlers

import (
	"context"
	"encoding/json"

	xhttp "github.com/chatdeck/webhook-gateway/pkg/http"
	"github.com/chatdeck/webhook-gateway/pkg/prom"
	"github.com/google/uuid"
)

// PayloadPublisher enqueues a raw payload for asynchronous reconciliation.
type PayloadPublisher interface {
	Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error)
}

// WebhookHandler accepts provider callbacks. Payloads are never reconciled
// inline: they are queued and the processor converges the store, so the
// provider gets its 202 quickly regardless of store health.
type WebhookHandler struct {
	publisher PayloadPublisher
}

func RegisterWebhookRoutes(r *xhttp.Router, h *WebhookHandler) {
	r.POST("/webhook", h.Receive)
}

func NewWebhookHandler(publisher PayloadPublisher) *WebhookHandler {
	return &WebhookHandler{
		publisher: publisher,
	}
}

type webhookResponse struct {
	Accepted   bool   `json:"accepted"`
	DeliveryID string `json:"delivery_id"`
}

func (h *WebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	body := ctx.PostBody()
	if !json.Valid(body) {
		writeError(ctx, 400, "payload is not valid JSON")
		return
	}

	deliveryID := uuid.NewString()
	if _, err := h.publisher.Publish(ctx, body, map[string]string{
		"delivery_id": deliveryID,
	}); err != nil {
		writeError(ctx, 500, "failed to enqueue payload: "+err.Error())
		return
	}

	prom.IncWebhookReceived()
	writeJSON(ctx, 202, webhookResponse{
		Accepted:   true,
		DeliveryID: deliveryID,
	})
}
