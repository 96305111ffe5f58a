package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, waID string) ([]*model.Message, error) {
	args := m.Called(ctx, waID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Message), args.Error(1)
}

func (m *MockMessageRepository) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Conversation), args.Error(1)
}

func int64Ptr(v int64) *int64 { return &v }

func TestChatService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("stores outgoing message", func(t *testing.T) {
		repo := new(MockMessageRepository)
		service := NewChatService(repo)

		repo.On("Create", ctx, mock.MatchedBy(func(m *model.Message) bool {
			return m.WaID == "919937320320" &&
				m.From == model.OutgoingFrom &&
				m.Status == model.MessageStatusSent &&
				m.MetaMsgID == "wamid.custom" &&
				m.Timestamp == 1700000000
		})).Return(&model.Message{ID: 42, MetaMsgID: "wamid.custom"}, nil)

		msg, err := service.SendMessage(ctx, model.SendMessageRequest{
			WaID:      "919937320320",
			Text:      "hello",
			Timestamp: int64Ptr(1700000000),
			MetaMsgID: "wamid.custom",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), msg.ID)

		repo.AssertExpectations(t)
	})

	t.Run("zero timestamp uses current time", func(t *testing.T) {
		repo := new(MockMessageRepository)
		service := NewChatService(repo)
		fixed := time.Unix(1711111111, 0)
		service.now = func() time.Time { return fixed }

		repo.On("Create", ctx, mock.MatchedBy(func(m *model.Message) bool {
			return m.Timestamp == fixed.Unix()
		})).Return(&model.Message{ID: 1}, nil)

		_, err := service.SendMessage(ctx, model.SendMessageRequest{
			WaID:      "1",
			Text:      "hi",
			Timestamp: int64Ptr(0),
		})
		require.NoError(t, err)

		repo.AssertExpectations(t)
	})

	t.Run("missing meta_msg_id is synthesized from timestamp", func(t *testing.T) {
		repo := new(MockMessageRepository)
		service := NewChatService(repo)

		repo.On("Create", ctx, mock.MatchedBy(func(m *model.Message) bool {
			return m.MetaMsgID == "local-1700000000"
		})).Return(&model.Message{ID: 1}, nil)

		_, err := service.SendMessage(ctx, model.SendMessageRequest{
			WaID:      "1",
			Text:      "hi",
			Timestamp: int64Ptr(1700000000),
		})
		require.NoError(t, err)

		repo.AssertExpectations(t)
	})

	t.Run("missing wa_id fails validation", func(t *testing.T) {
		repo := new(MockMessageRepository)
		service := NewChatService(repo)

		_, err := service.SendMessage(ctx, model.SendMessageRequest{
			Text:      "hi",
			Timestamp: int64Ptr(100),
		})
		assert.ErrorIs(t, err, model.ErrValidation)
		assert.Contains(t, err.Error(), "wa_id")
	})

	t.Run("missing text fails validation", func(t *testing.T) {
		repo := new(MockMessageRepository)
		service := NewChatService(repo)

		_, err := service.SendMessage(ctx, model.SendMessageRequest{
			WaID:      "1",
			Timestamp: int64Ptr(100),
		})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("absent timestamp fails validation", func(t *testing.T) {
		repo := new(MockMessageRepository)
		service := NewChatService(repo)

		_, err := service.SendMessage(ctx, model.SendMessageRequest{
			WaID: "1",
			Text: "hi",
		})
		assert.ErrorIs(t, err, model.ErrValidation)
		assert.Contains(t, err.Error(), "timestamp")
	})

	t.Run("repository error is passed through", func(t *testing.T) {
		repo := new(MockMessageRepository)
		service := NewChatService(repo)

		repo.On("Create", ctx, mock.Anything).Return(nil, errors.New("write failed"))

		_, err := service.SendMessage(ctx, model.SendMessageRequest{
			WaID:      "1",
			Text:      "hi",
			Timestamp: int64Ptr(100),
		})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrValidation)
	})
}

func TestChatService_Conversations(t *testing.T) {
	ctx := context.Background()
	repo := new(MockMessageRepository)
	service := NewChatService(repo)

	expected := []*model.Conversation{
		{WaID: "222", LastMessage: "later", LastTimestamp: 300},
		{WaID: "111", LastMessage: "earlier", LastTimestamp: 100},
	}
	repo.On("ListConversations", ctx).Return(expected, nil)

	conversations, err := service.Conversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, conversations)

	repo.AssertExpectations(t)
}

func TestChatService_Messages(t *testing.T) {
	ctx := context.Background()
	repo := new(MockMessageRepository)
	service := NewChatService(repo)

	expected := []*model.Message{
		{MetaMsgID: "wamid.1", WaID: "111", Timestamp: 100},
		{MetaMsgID: "wamid.2", WaID: "111", Timestamp: 200},
	}
	repo.On("ListByConversation", ctx, "111").Return(expected, nil)

	messages, err := service.Messages(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, expected, messages)

	repo.AssertExpectations(t)
}
