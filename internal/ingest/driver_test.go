package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePayloadFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writePayloadFile(t, dir, "payload1.json", `{"a":1}`)
	writePayloadFile(t, dir, "payload2.json", `{"b":2}`)
	writePayloadFile(t, dir, "notes.txt", `ignored`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	src := NewDirectorySource(dir)
	payloads, err := src.Payloads(context.Background())
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, "payload1.json", payloads[0].Name)
	assert.Equal(t, "payload2.json", payloads[1].Name)
}

func TestDirectorySource_MissingDir(t *testing.T) {
	src := NewDirectorySource("/does/not/exist")
	_, err := src.Payloads(context.Background())
	assert.Error(t, err)
}

func TestDriver_TwoPassOrdering(t *testing.T) {
	dir := t.TempDir()

	// File names put the status ahead of its message; the two-pass driver
	// must still apply it directly instead of parking it.
	writePayloadFile(t, dir, "01_status.json",
		`{"metaData":{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"read"}]}}]}]}}`)
	writePayloadFile(t, dir, "02_message.json",
		`{"metaData":{"entry":[{"changes":[{"value":{"contacts":[{"wa_id":"111"}],"messages":[{"id":"wamid.1","from":"111","timestamp":"100","type":"text","text":{"body":"hi"}}]}}]}]}}`)

	r, messages, pending := newTestReconciler()
	driver := NewDriver(r)

	stats, err := driver.Run(context.Background(), NewDirectorySource(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Messages)
	assert.Equal(t, 1, stats.Statuses)
	assert.Equal(t, 0, stats.Unknown)

	assert.Equal(t, model.MessageStatusRead, messages.messages["wamid.1"].Status)
	assert.Empty(t, pending.pending, "two-pass ordering should avoid the pending path")
}

func TestDriver_UnknownPayloadsCounted(t *testing.T) {
	dir := t.TempDir()
	writePayloadFile(t, dir, "bad.json", `{not json`)
	writePayloadFile(t, dir, "empty.json", `{}`)
	writePayloadFile(t, dir, "message.json",
		`{"metaData":{"entry":[{"changes":[{"value":{"contacts":[{"wa_id":"111"}],"messages":[{"id":"wamid.1","from":"111","timestamp":"100","type":"text","text":{"body":"hi"}}]}}]}]}}`)

	r, messages, _ := newTestReconciler()
	driver := NewDriver(r)

	stats, err := driver.Run(context.Background(), NewDirectorySource(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Messages)
	assert.Equal(t, 0, stats.Statuses)
	assert.Equal(t, 2, stats.Unknown)
	assert.Len(t, messages.messages, 1)
}

func TestDriver_EmptyDir(t *testing.T) {
	r, _, _ := newTestReconciler()
	driver := NewDriver(r)

	stats, err := driver.Run(context.Background(), NewDirectorySource(t.TempDir()))
	require.NoError(t, err)
	assert.Zero(t, stats.Messages)
	assert.Zero(t, stats.Statuses)
	assert.Zero(t, stats.Unknown)
}
