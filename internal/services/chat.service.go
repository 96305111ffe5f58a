package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chatdeck/webhook-gateway/internal/model"
)

// MessageRepository is the slice of the repository the chat service needs.
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	ListByConversation(ctx context.Context, waID string) ([]*model.Message, error)
	ListConversations(ctx context.Context) ([]*model.Conversation, error)
}

// ChatService backs the query/write API of the chat client. Reads operate
// directly on the reconciled store; the write path creates outgoing
// messages marked with the "me" sender.
type ChatService struct {
	messageRepo MessageRepository
	now         func() time.Time
}

func NewChatService(messageRepo MessageRepository) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
		now:         time.Now,
	}
}

func (s *ChatService) Conversations(ctx context.Context) ([]*model.Conversation, error) {
	return s.messageRepo.ListConversations(ctx)
}

func (s *ChatService) Messages(ctx context.Context, waID string) ([]*model.Message, error) {
	return s.messageRepo.ListByConversation(ctx, waID)
}

// SendMessage validates the request and stores the outgoing message. A
// falsy timestamp is replaced with the current time; a missing meta_msg_id
// is synthesized as local-<timestamp>.
func (s *ChatService) SendMessage(ctx context.Context, req model.SendMessageRequest) (*model.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ts := *req.Timestamp
	if ts == 0 {
		ts = s.now().Unix()
	}

	metaMsgID := strings.TrimSpace(req.MetaMsgID)
	if metaMsgID == "" {
		metaMsgID = fmt.Sprintf("local-%d", ts)
	}

	msg := &model.Message{
		MetaMsgID: metaMsgID,
		WaID:      req.WaID,
		From:      model.OutgoingFrom,
		Text:      req.Text,
		Timestamp: ts,
		Status:    model.MessageStatusSent,
	}

	return s.messageRepo.Create(ctx, msg)
}
