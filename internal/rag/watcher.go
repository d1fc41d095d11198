package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// watchableExtensions are the knowledge base file types picked up by the
// directory watcher.
var watchableExtensions = []string{".txt", ".md"}

func isWatchableFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range watchableExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Watcher keeps the vector store in sync with a knowledge base directory.
// Created and modified files are re-ingested, removed files are deleted
// from the store.
type Watcher struct {
	watcher  *fsnotify.Watcher
	ingestor *Ingestor
}

// NewWatcher creates a directory watcher feeding the given ingestor.
func NewWatcher(ingestor *Ingestor) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{watcher: fsWatcher, ingestor: ingestor}, nil
}

// Watch ingests the directory's current contents, then follows filesystem
// events until the context is canceled.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	if err := w.ingestor.IngestDir(ctx, dir); err != nil {
		return fmt.Errorf("initial ingest of %s failed: %w", dir, err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	slog.Info("Watcher.Watch: watching knowledge base directory", "dir", dir)

	go func() {
		defer w.watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !isWatchableFile(event.Name) {
					continue
				}
				w.handleEvent(ctx, event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher.Watch: filesystem watch error", "error", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		if err := w.ingestor.IngestFile(ctx, event.Name); err != nil {
			slog.Error("Watcher.handleEvent: ingest failed", "path", event.Name, "error", err)
			return
		}
		slog.Info("Watcher.handleEvent: document ingested", "path", event.Name, "op", event.Op.String())
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if err := w.ingestor.Remove(ctx, event.Name); err != nil {
			slog.Error("Watcher.handleEvent: removal failed", "path", event.Name, "error", err)
			return
		}
		slog.Info("Watcher.handleEvent: document removed", "path", event.Name)
	}
}
