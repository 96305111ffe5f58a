package ingest

import (
	"context"

	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/chatdeck/webhook-gateway/pkg/logger"
	"github.com/chatdeck/webhook-gateway/pkg/prom"
)

// RawPayload is one undecoded payload document pulled from a Source.
type RawPayload struct {
	Name string
	Data []byte
}

// Source supplies a finite batch of raw payload documents.
type Source interface {
	Payloads(ctx context.Context) ([]RawPayload, error)
}

type BatchStats struct {
	Messages int
	Statuses int
	Unknown  int
}

// Driver runs the two-pass batch ingestion: every message payload of the
// batch is reconciled before any status payload. Processing all messages
// first maximizes the chance that a status update finds its message
// already present, keeping the pending path to a minimum; the price is
// that a batch cannot be stream-processed as one interleaved feed.
type Driver struct {
	reconciler *Reconciler
}

func NewDriver(reconciler *Reconciler) *Driver {
	return &Driver{reconciler: reconciler}
}

func (d *Driver) Run(ctx context.Context, src Source) (BatchStats, error) {
	var stats BatchStats

	raw, err := src.Payloads(ctx)
	if err != nil {
		return stats, err
	}

	// Partition preserving source order within each kind.
	var messages, statuses []*model.WebhookPayload
	for _, doc := range raw {
		kind, payload := ClassifyRaw(doc.Data)
		prom.IncPayloadClassified(kind.String())

		switch kind {
		case KindMessage:
			messages = append(messages, payload)
		case KindStatus:
			statuses = append(statuses, payload)
		default:
			stats.Unknown++
			logger.Debug("dropping unclassifiable payload", "name", doc.Name)
		}
	}

	stats.Messages = len(messages)
	stats.Statuses = len(statuses)
	logger.Info("starting batch ingestion",
		"messages", stats.Messages, "statuses", stats.Statuses, "unknown", stats.Unknown)

	for _, p := range messages {
		if err := d.reconciler.ReconcileMessage(ctx, p); err != nil {
			logger.Error("message payload failed", "error", err)
		}
	}
	for _, p := range statuses {
		if err := d.reconciler.ReconcileStatus(ctx, p); err != nil {
			logger.Error("status payload failed", "error", err)
		}
	}

	return stats, nil
}
