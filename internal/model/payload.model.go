package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Webhook payload envelope. The nesting mirrors the provider's wire shape:
// metaData -> entry[0] -> changes[0] -> value. Only the first entry and the
// first change are ever consulted.
type WebhookPayload struct {
	MetaData PayloadMetaData `json:"metaData"`
}

type PayloadMetaData struct {
	Entry []PayloadEntry `json:"entry"`
}

type PayloadEntry struct {
	Changes []PayloadChange `json:"changes"`
}

type PayloadChange struct {
	Value PayloadValue `json:"value"`
}

type PayloadValue struct {
	Messages []PayloadMessage `json:"messages"`
	Statuses []PayloadStatus  `json:"statuses"`
	Contacts []PayloadContact `json:"contacts"`
}

type PayloadMessage struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	Timestamp UnixTime    `json:"timestamp"`
	Type      string      `json:"type"`
	Text      PayloadText `json:"text"`
}

type PayloadText struct {
	Body string `json:"body"`
}

type PayloadStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type PayloadContact struct {
	WaID string `json:"wa_id"`
}

// UnixTime is a unix timestamp that sources encode either as a JSON number
// or as a quoted decimal string.
type UnixTime int64

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*t = UnixTime(v)
	return nil
}

// Value walks the envelope to the value object. Returns nil when any
// intermediate level is missing; callers treat that as unclassifiable.
func (p *WebhookPayload) Value() *PayloadValue {
	if p == nil {
		return nil
	}
	entries := p.MetaData.Entry
	if len(entries) == 0 {
		return nil
	}
	changes := entries[0].Changes
	if len(changes) == 0 {
		return nil
	}
	return &changes[0].Value
}

// WaID returns the conversation id from the first contact, or "" when the
// contacts list is absent or empty. An empty wa_id is accepted, not an
// error.
func (v *PayloadValue) WaID() string {
	if v == nil || len(v.Contacts) == 0 {
		return ""
	}
	return v.Contacts[0].WaID
}
