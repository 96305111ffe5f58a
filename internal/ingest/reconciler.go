package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/chatdeck/webhook-gateway/internal/repository"
	"github.com/chatdeck/webhook-gateway/pkg/logger"
	"github.com/chatdeck/webhook-gateway/pkg/prom"
)

// MessageStore is the slice of the message repository the reconciler
// needs. WithinTransaction scopes the insert-plus-replay (and
// apply-or-defer) sequences to one store transaction per entry.
type MessageStore interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	InsertIfAbsent(ctx context.Context, m *model.Message) (bool, error)
	ApplyStatus(ctx context.Context, metaMsgID string, status model.MessageStatus) (bool, error)
	Exists(ctx context.Context, metaMsgID string) (bool, error)
}

type PendingStore interface {
	Upsert(ctx context.Context, p *model.PendingStatusUpdate) error
	Get(ctx context.Context, metaMsgID string) (*model.PendingStatusUpdate, error)
	Delete(ctx context.Context, metaMsgID string) error
}

// Reconciler converges the message store to the same final state no matter
// in which order message and status payloads arrive. Status updates for
// messages not yet recorded are parked in the pending store and replayed
// when the message shows up.
type Reconciler struct {
	messages MessageStore
	pending  PendingStore
}

func NewReconciler(messages MessageStore, pending PendingStore) *Reconciler {
	return &Reconciler{
		messages: messages,
		pending:  pending,
	}
}

// ReconcilePayload classifies a single payload and dispatches it. Used by
// the live paths (webhook queue consumer, directory watcher), where the
// two-pass ordering of the batch driver is not available and out-of-order
// arrival is absorbed entirely by the pending mechanism.
func (r *Reconciler) ReconcilePayload(ctx context.Context, p *model.WebhookPayload) (PayloadKind, error) {
	kind := Classify(p)
	prom.IncPayloadClassified(kind.String())

	switch kind {
	case KindMessage:
		return kind, r.ReconcileMessage(ctx, p)
	case KindStatus:
		return kind, r.ReconcileStatus(ctx, p)
	}
	return KindUnknown, nil
}

// ReconcileMessage records every message entry of the payload. Entries are
// isolated from each other: a failing entry is logged and skipped, the
// rest of the payload is still processed.
func (r *Reconciler) ReconcileMessage(ctx context.Context, p *model.WebhookPayload) error {
	value := p.Value()
	if value == nil {
		return errors.New("payload has no value object")
	}

	waID := value.WaID()
	for _, entry := range value.Messages {
		if err := r.reconcileOneMessage(ctx, entry, waID); err != nil {
			prom.IncReconcileFailure()
			logger.Error("failed to reconcile message entry",
				"meta_msg_id", entry.ID, "wa_id", waID, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileOneMessage(ctx context.Context, entry model.PayloadMessage, waID string) error {
	if entry.ID == "" {
		return errors.New("message entry has no id")
	}

	msg := &model.Message{
		MetaMsgID: entry.ID,
		WaID:      waID,
		From:      entry.From,
		Text:      entry.Text.Body,
		Type:      entry.Type,
		Timestamp: int64(entry.Timestamp),
		Status:    model.MessageStatusSent,
	}

	return r.messages.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := r.messages.InsertIfAbsent(ctx, msg)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if created {
			logger.Info("message recorded", "meta_msg_id", msg.MetaMsgID, "wa_id", waID)
		} else {
			logger.Debug("message already recorded", "meta_msg_id", msg.MetaMsgID)
		}

		// Replay a status that arrived before the message did. Runs whether
		// or not the insert created a row: the pending record may predate a
		// concurrent insert as well.
		pending, err := r.pending.Get(ctx, msg.MetaMsgID)
		if err != nil {
			if errors.Is(err, repository.ErrPendingNotFound) {
				return nil
			}
			return fmt.Errorf("lookup pending status: %w", err)
		}

		if _, err := r.messages.ApplyStatus(ctx, msg.MetaMsgID, pending.Status); err != nil {
			return fmt.Errorf("replay pending status: %w", err)
		}
		if err := r.pending.Delete(ctx, msg.MetaMsgID); err != nil {
			return fmt.Errorf("delete pending status: %w", err)
		}

		prom.IncPendingReplayed()
		logger.Info("pending status replayed",
			"meta_msg_id", msg.MetaMsgID, "status", pending.Status)
		return nil
	})
}

// ReconcileStatus applies every status entry of the payload, deferring the
// ones whose message is not recorded yet. Same per-entry fault isolation
// as ReconcileMessage.
func (r *Reconciler) ReconcileStatus(ctx context.Context, p *model.WebhookPayload) error {
	value := p.Value()
	if value == nil {
		return errors.New("payload has no value object")
	}

	for _, entry := range value.Statuses {
		if err := r.reconcileOneStatus(ctx, entry); err != nil {
			prom.IncReconcileFailure()
			logger.Error("failed to reconcile status entry",
				"meta_msg_id", entry.ID, "status", entry.Status, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileOneStatus(ctx context.Context, entry model.PayloadStatus) error {
	if entry.ID == "" {
		return errors.New("status entry has no id")
	}
	if entry.Status == "" {
		return errors.New("status entry has no status")
	}

	status := model.MessageStatus(entry.Status)

	return r.messages.WithinTransaction(ctx, func(ctx context.Context) error {
		applied, err := r.messages.ApplyStatus(ctx, entry.ID, status)
		if err != nil {
			return fmt.Errorf("apply status: %w", err)
		}
		if applied {
			prom.IncStatusApplied()
			logger.Info("status applied", "meta_msg_id", entry.ID, "status", status)
			return nil
		}

		// Nothing was modified: either the message does not exist yet, or
		// it already carries a status that must not be regressed.
		exists, err := r.messages.Exists(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("check message: %w", err)
		}
		if exists {
			logger.Debug("status ignored, would regress",
				"meta_msg_id", entry.ID, "status", status)
			return nil
		}

		if err := r.pending.Upsert(ctx, &model.PendingStatusUpdate{
			MetaMsgID: entry.ID,
			Status:    status,
		}); err != nil {
			return fmt.Errorf("defer status: %w", err)
		}

		prom.IncStatusDeferred()
		logger.Info("status deferred, message not recorded yet",
			"meta_msg_id", entry.ID, "status", status)
		return nil
	})
}
