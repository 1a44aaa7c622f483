package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ScriptWatcher invalidates cached script parses when files under the
// scripts directory change. Intended for development; production deploys
// ship immutable data directories.
type ScriptWatcher struct {
	watcher *fsnotify.Watcher
	store   *RedisStorage
	logger  *slog.Logger
}

// NewScriptWatcher creates a watcher over the store's scripts directory.
func NewScriptWatcher(store *RedisStorage, logger *slog.Logger) (*ScriptWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	scriptsDir := filepath.Join(store.dataDir, "scripts")
	if err := fsWatcher.Add(scriptsDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch scripts directory: %w", err)
	}

	logger.Info("Watching scripts directory", "dir", scriptsDir)
	return &ScriptWatcher{
		watcher: fsWatcher,
		store:   store,
		logger:  logger,
	}, nil
}

// Start blocks processing file events until the context is cancelled or the
// watcher is closed. Invalidation is idempotent and cheap, so events are
// applied as they arrive with no debounce.
func (w *ScriptWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !hasScriptExt(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				name := filepath.Base(event.Name)
				w.logger.Info("Script file changed", "file", name, "op", event.Op.String())
				w.store.InvalidateScript(name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Script watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Debug("Script watcher stopping")
			return
		}
	}
}

// Close stops the underlying file watcher.
func (w *ScriptWatcher) Close() error {
	return w.watcher.Close()
}
