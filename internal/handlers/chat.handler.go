package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/chatdeck/webhook-gateway/internal/model"
	xhttp "github.com/chatdeck/webhook-gateway/pkg/http"
)

type ChatService interface {
	Conversations(ctx context.Context) ([]*model.Conversation, error)
	Messages(ctx context.Context, waID string) ([]*model.Message, error)
	SendMessage(ctx context.Context, req model.SendMessageRequest) (*model.Message, error)
}

type ChatHandler struct {
	svc ChatService
}

func RegisterChatRoutes(r *xhttp.Router, h *ChatHandler) {
	r.GET("/conversations", h.ListConversations)
	r.GET("/messages/{wa_id}", h.ListMessages)
	r.POST("/send_message", h.SendMessage)
}

func NewChatHandler(chatService ChatService) *ChatHandler {
	return &ChatHandler{
		svc: chatService,
	}
}

type sendMessageRequest struct {
	WaID      string `json:"wa_id"`
	Text      string `json:"text"`
	Timestamp *int64 `json:"timestamp"`
	MetaMsgID string `json:"meta_msg_id"`
}

type sendMessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ChatHandler) ListConversations(ctx *xhttp.RequestCtx) {
	conversations, err := h.svc.Conversations(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	if conversations == nil {
		conversations = []*model.Conversation{}
	}
	writeJSON(ctx, 200, conversations)
}

func (h *ChatHandler) ListMessages(ctx *xhttp.RequestCtx) {
	waID, ok := ctx.UserValue("wa_id").(string)
	if !ok || waID == "" {
		writeError(ctx, 400, "wa_id is required")
		return
	}

	messages, err := h.svc.Messages(ctx, waID)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}
	writeJSON(ctx, 200, messages)
}

func (h *ChatHandler) SendMessage(ctx *xhttp.RequestCtx) {
	var req sendMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	msg, err := h.svc.SendMessage(ctx, model.SendMessageRequest{
		WaID:      req.WaID,
		Text:      req.Text,
		Timestamp: req.Timestamp,
		MetaMsgID: req.MetaMsgID,
	})
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, "Failed to save message: "+err.Error())
		return
	}

	writeJSON(ctx, 201, sendMessageResponse{
		Success:   true,
		MessageID: strconv.FormatInt(msg.ID, 10),
		Message:   "Message saved successfully",
	})
}

/* --------------------------------- Helpers ---------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}
