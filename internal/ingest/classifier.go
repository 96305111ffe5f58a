package ingest

import (
	"encoding/json"

	"github.com/chatdeck/webhook-gateway/internal/model"
)

// PayloadKind is the classification of a raw webhook payload.
type PayloadKind int

const (
	KindUnknown PayloadKind = iota
	KindMessage
	KindStatus
)

func (k PayloadKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindStatus:
		return "status"
	}
	return "unknown"
}

// Classify inspects the payload envelope and reports whether it carries
// messages or status updates. A payload is never both: the messages list
// wins, the statuses list is only consulted afterwards. Missing structure
// at any level yields KindUnknown; classification never fails a batch.
func Classify(p *model.WebhookPayload) PayloadKind {
	v := p.Value()
	if v == nil {
		return KindUnknown
	}
	if len(v.Messages) > 0 {
		return KindMessage
	}
	if len(v.Statuses) > 0 {
		return KindStatus
	}
	return KindUnknown
}

// ClassifyRaw decodes and classifies a raw payload document. Documents
// that do not decode are simply unknown.
func ClassifyRaw(data []byte) (PayloadKind, *model.WebhookPayload) {
	var p model.WebhookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return KindUnknown, nil
	}
	return Classify(&p), &p
}
