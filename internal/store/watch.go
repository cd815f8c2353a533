package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader is the part of Store the watcher needs.
type Reloader interface {
	Reload(ctx context.Context)
}

// Watch reloads s whenever the snapshot file at path is written, replaced
// or removed by someone else. It blocks until ctx is done.
//
// The parent directory is watched rather than the file itself because
// FilePersister replaces the file by rename.
func Watch(ctx context.Context, s Reloader, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	logger.Info("watching record snapshot", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("snapshot changed, reloading",
				zap.String("op", event.Op.String()))
			s.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("snapshot watcher error", zap.Error(err))
		}
	}
}
