package processor

import (
	"context"
	"testing"

	"github.com/chatdeck/webhook-gateway/internal/ingest"
	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/chatdeck/webhook-gateway/internal/queue"
	"github.com/chatdeck/webhook-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessageStore struct {
	messages map[string]*model.Message
}

func (s *stubMessageStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *stubMessageStore) InsertIfAbsent(ctx context.Context, m *model.Message) (bool, error) {
	if _, ok := s.messages[m.MetaMsgID]; ok {
		return false, nil
	}
	cp := *m
	s.messages[m.MetaMsgID] = &cp
	return true, nil
}

func (s *stubMessageStore) ApplyStatus(ctx context.Context, metaMsgID string, status model.MessageStatus) (bool, error) {
	m, ok := s.messages[metaMsgID]
	if !ok || !model.StatusAdvances(m.Status, status) {
		return false, nil
	}
	m.Status = status
	return true, nil
}

func (s *stubMessageStore) Exists(ctx context.Context, metaMsgID string) (bool, error) {
	_, ok := s.messages[metaMsgID]
	return ok, nil
}

type stubPendingStore struct {
	pending map[string]model.MessageStatus
}

func (s *stubPendingStore) Upsert(ctx context.Context, p *model.PendingStatusUpdate) error {
	s.pending[p.MetaMsgID] = p.Status
	return nil
}

func (s *stubPendingStore) Get(ctx context.Context, metaMsgID string) (*model.PendingStatusUpdate, error) {
	status, ok := s.pending[metaMsgID]
	if !ok {
		return nil, repository.ErrPendingNotFound
	}
	return &model.PendingStatusUpdate{MetaMsgID: metaMsgID, Status: status}, nil
}

func (s *stubPendingStore) Delete(ctx context.Context, metaMsgID string) error {
	delete(s.pending, metaMsgID)
	return nil
}

func newTestProcessor(t *testing.T) (*WebhookPayloadProcessor, *stubMessageStore) {
	t.Helper()
	mr, adapter := setupTestRedis(t)
	t.Cleanup(mr.Close)

	messages := &stubMessageStore{messages: make(map[string]*model.Message)}
	pending := &stubPendingStore{pending: make(map[string]model.MessageStatus)}
	reconciler := ingest.NewReconciler(messages, pending)
	idempotency := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	return NewWebhookPayloadProcessor(reconciler, idempotency, NewServiceMetrics()), messages
}

func queueMessage(id, deliveryID string, data []byte) *queue.Message {
	return &queue.Message{
		ID:       id,
		Data:     data,
		Metadata: map[string]string{"delivery_id": deliveryID},
	}
}

func TestWebhookPayloadProcessor_Process(t *testing.T) {
	ctx := context.Background()

	messageBody := []byte(`{"metaData":{"entry":[{"changes":[{"value":{"contacts":[{"wa_id":"111"}],"messages":[{"id":"wamid.1","from":"111","timestamp":"100","type":"text","text":{"body":"hi"}}]}}]}]}}`)
	statusBody := []byte(`{"metaData":{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"read"}]}}]}]}}`)

	t.Run("reconciles message payload", func(t *testing.T) {
		p, messages := newTestProcessor(t)

		err := p.Process(ctx, queueMessage("1-0", "d-1", messageBody))
		require.NoError(t, err)
		require.Contains(t, messages.messages, "wamid.1")
		assert.Equal(t, model.MessageStatusSent, messages.messages["wamid.1"].Status)
	})

	t.Run("duplicate delivery is acked without reprocessing", func(t *testing.T) {
		p, _ := newTestProcessor(t)

		require.NoError(t, p.Process(ctx, queueMessage("1-0", "d-dup", messageBody)))

		// Same delivery id again: accepted but skipped.
		err := p.Process(ctx, queueMessage("1-1", "d-dup", messageBody))
		assert.NoError(t, err)
	})

	t.Run("redelivery under a fresh delivery id is harmless", func(t *testing.T) {
		p, messages := newTestProcessor(t)

		require.NoError(t, p.Process(ctx, queueMessage("1-0", "d-a", messageBody)))
		require.NoError(t, p.Process(ctx, queueMessage("1-1", "d-b", statusBody)))
		require.NoError(t, p.Process(ctx, queueMessage("1-2", "d-c", messageBody)))

		assert.Len(t, messages.messages, 1)
		assert.Equal(t, model.MessageStatusRead, messages.messages["wamid.1"].Status)
	})

	t.Run("malformed payload is an error", func(t *testing.T) {
		p, _ := newTestProcessor(t)

		err := p.Process(ctx, queueMessage("1-0", "d-bad", []byte(`{broken`)))
		assert.Error(t, err)
	})

	t.Run("missing delivery id falls back to queue id", func(t *testing.T) {
		p, messages := newTestProcessor(t)

		msg := &queue.Message{ID: "5-0", Data: messageBody, Metadata: map[string]string{}}
		require.NoError(t, p.Process(ctx, msg))
		assert.Contains(t, messages.messages, "wamid.1")
	})
}
