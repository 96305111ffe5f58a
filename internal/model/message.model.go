package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation wraps every request-validation failure so the API layer
// can map them to a 400 without inspecting messages.
var ErrValidation = errors.New("invalid request")

// MessageStatus is the delivery state of a message. The set is open-ended:
// source payloads may carry tags outside the known constants and those are
// stored verbatim.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// StatusRank orders the known statuses: sent < delivered < read. Unknown
// tags rank 0, meaning they are treated as opaque and always applicable.
func StatusRank(s MessageStatus) int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	}
	return 0
}

// StatusAdvances reports whether applying next on top of current is
// allowed under the monotonic policy. A ranked status never regresses a
// higher ranked one; anything involving an unknown tag always applies.
func StatusAdvances(current, next MessageStatus) bool {
	cr, nr := StatusRank(current), StatusRank(next)
	if cr == 0 || nr == 0 {
		return true
	}
	return nr >= cr
}

// Message is the canonical, durable record of a chat message. ID is the
// storage identifier and is excluded from API payloads; MetaMsgID is the
// externally supplied natural key.
type Message struct {
	ID        int64         `json:"-"`
	MetaMsgID string        `json:"meta_msg_id"`
	WaID      string        `json:"wa_id"`
	From      string        `json:"from"`
	Text      string        `json:"text"`
	Type      string        `json:"type"`
	Timestamp int64         `json:"timestamp"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Conversation is one row of the conversation listing: the thread id plus
// the latest message of the thread as its representative.
type Conversation struct {
	WaID          string `json:"_id"`
	LastMessage   string `json:"last_message"`
	LastTimestamp int64  `json:"last_timestamp"`
	Name          string `json:"name"`
}

// OutgoingFrom marks messages created through the write API.
const OutgoingFrom = "me"

// SendMessageRequest is the input for the send-message operation.
// Timestamp is a pointer so that an absent field can be told apart from an
// explicit zero: absent is a validation error, zero means "use now".
type SendMessageRequest struct {
	WaID      string
	Text      string
	Timestamp *int64
	MetaMsgID string
}

func (r SendMessageRequest) Validate() error {
	if r.WaID == "" {
		return fmt.Errorf("%w: missing required field: wa_id", ErrValidation)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing required field: text", ErrValidation)
	}
	if r.Timestamp == nil {
		return fmt.Errorf("%w: missing required field: timestamp", ErrValidation)
	}
	return nil
}
