package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the dynamic configuration when its file changes.
type Watcher struct {
	path    string
	holder  *DynamicHolder
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	stopCh  chan struct{}
}

// NewWatcher creates a watcher for the given dynamic config file. The
// holder is updated in place on every successful reload; a file that fails
// to parse keeps the previous configuration active.
func NewWatcher(path string, holder *DynamicHolder, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	// Watch the directory rather than the file: editors and config
	// mounts replace files by rename, which drops a direct file watch.
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	return &Watcher{
		path:    path,
		holder:  holder,
		watcher: fsWatcher,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Run processes file events until Stop is called.
func (w *Watcher) Run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadDynamicConfig(w.path)
			if err != nil {
				w.logger.Warn("Dynamic config reload failed, keeping previous",
					zap.String("path", w.path),
					zap.Error(err),
				)
				continue
			}
			w.holder.Set(cfg)
			w.logger.Info("Dynamic config reloaded",
				zap.String("path", w.path),
				zap.Int("maxConnectionsPerUser", cfg.WebSocket.MaxConnectionsPerUser),
				zap.Int("sendQueueSize", cfg.WebSocket.SendQueueSize),
			)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Dynamic config watcher error", zap.Error(err))
		}
	}
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}
