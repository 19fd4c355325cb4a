package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ReloadEvent is emitted when a watched config file changes on disk.
type ReloadEvent struct {
	Path string
	Op   fsnotify.Op
}

// Watcher watches config.yaml and reports writes, creates and renames on
// its Events channel. It does not reload the configuration itself, and
// the server subcommand does not start one.
type Watcher struct {
	homeDir string
	logger  *slog.Logger
	events  chan ReloadEvent
}

// NewWatcher creates a Watcher rooted at homeDir.
func NewWatcher(homeDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		homeDir: homeDir,
		logger:  logger,
		events:  make(chan ReloadEvent, 16),
	}
}

// Events returns the channel reload notifications arrive on.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Start begins watching config.yaml until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	configPath := filepath.Join(w.homeDir, "config.yaml")
	if err := fsw.Add(configPath); err != nil {
		w.logger.Warn("config watcher: could not watch config.yaml", "path", configPath, "error", err)
	}

	go func() {
		defer fsw.Close()
		defer close(w.events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case w.events <- ReloadEvent{Path: ev.Name, Op: ev.Op}:
				default:
				}
				w.logger.Info("config file changed", "path", ev.Name, "op", ev.Op.String())
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
