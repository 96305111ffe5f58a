package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/chatdeck/webhook-gateway/pkg/logger"
	"github.com/chatdeck/webhook-gateway/pkg/prom"
	"github.com/fsnotify/fsnotify"
)

// DirectorySource reads every *.json document of a directory, in file-name
// order. A file that cannot be read is logged and skipped; it fails its
// own payload, not the batch.
type DirectorySource struct {
	dir string
}

func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

func (s *DirectorySource) Payloads(ctx context.Context) ([]RawPayload, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var payloads []RawPayload
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			logger.Error("failed to read payload file", "file", entry.Name(), "error", err)
			continue
		}
		payloads = append(payloads, RawPayload{Name: entry.Name(), Data: data})
	}
	return payloads, nil
}

// Watcher reconciles payload files as they are dropped into a directory.
// Unlike the batch driver there is no two-pass ordering here; the pending
// mechanism absorbs statuses that arrive ahead of their message. A file
// may trigger both a create and a write event and be processed twice,
// which reconciliation tolerates by construction.
type Watcher struct {
	dir        string
	reconciler *Reconciler
}

func NewWatcher(dir string, reconciler *Reconciler) *Watcher {
	return &Watcher{dir: dir, reconciler: reconciler}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	logger.Info("watching payload directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			w.reconcileFile(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) reconcileFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read payload file", "file", path, "error", err)
		return
	}

	kind, payload := ClassifyRaw(data)
	prom.IncPayloadClassified(kind.String())
	if kind == KindUnknown {
		logger.Debug("dropping unclassifiable payload", "file", path)
		return
	}

	var rerr error
	switch kind {
	case KindMessage:
		rerr = w.reconciler.ReconcileMessage(ctx, payload)
	case KindStatus:
		rerr = w.reconciler.ReconcileStatus(ctx, payload)
	}
	if rerr != nil {
		logger.Error("payload failed", "file", path, "error", rerr)
	}
}
