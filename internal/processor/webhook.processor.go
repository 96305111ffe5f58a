package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/chatdeck/webhook-gateway/internal/ingest"
	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/chatdeck/webhook-gateway/internal/queue"
	"github.com/chatdeck/webhook-gateway/pkg/logger"
)

// WebhookPayloadProcessor reconciles webhook payloads pulled off the queue.
// Each queue message carries one payload body plus the delivery id the
// gateway assigned when it accepted the POST.
type WebhookPayloadProcessor struct {
	reconciler  *ingest.Reconciler
	idempotency *IdempotencyService
	metrics     *ServiceMetrics
}

func NewWebhookPayloadProcessor(reconciler *ingest.Reconciler, idempotency *IdempotencyService, metrics *ServiceMetrics) *WebhookPayloadProcessor {
	return &WebhookPayloadProcessor{
		reconciler:  reconciler,
		idempotency: idempotency,
		metrics:     metrics,
	}
}

func (p *WebhookPayloadProcessor) GetType() string {
	return "webhook-payload"
}

// Process parses the payload and hands it to the reconciler. Returning nil
// acks the queue message; returning an error nacks it so the queue retries
// and eventually moves it to the DLQ.
func (p *WebhookPayloadProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	deliveryID := queueMessage.Metadata["delivery_id"]
	if deliveryID == "" {
		deliveryID = queueMessage.ID
	}

	var payload model.WebhookPayload
	if err := json.Unmarshal(queueMessage.Data, &payload); err != nil {
		logger.Error("failed to unmarshal webhook payload", "delivery_id", deliveryID, "error", err)
		return err // malformed body goes to the DLQ after retries
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Info("delivery already reconciled, skipping", "delivery_id", deliveryID)
			p.metrics.RecordDuplicate()
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("delivery exceeded retry budget, dropping", "delivery_id", deliveryID)
			return nil // ack so the queue stops redelivering
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			logger.Info("delivery locked by another consumer, will retry", "delivery_id", deliveryID)
			return errors.New("lock held by another consumer")
		}
		logger.Error("failed to acquire delivery lock", "delivery_id", deliveryID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	kind, err := p.reconciler.ReconcilePayload(ctx, &payload)
	if err != nil {
		logger.Error("failed to reconcile payload",
			"delivery_id", deliveryID,
			"kind", kind.String(),
			"retry_count", procCtx.RetryCount,
			"error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("failed to mark delivery failure", "delivery_id", deliveryID, "error", markErr)
		}
		return err
	}

	logger.Info("payload reconciled",
		"delivery_id", deliveryID,
		"kind", kind.String(),
		"is_retry", procCtx.IsRetry)

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("failed to mark delivery success", "delivery_id", deliveryID, "error", markErr)
		// the reconcile itself is idempotent, a lost marker is tolerable
	}

	return nil
}
