package logging

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ramonehamilton/mtg-catalog/internal/config"
)

// LevelWatcher re-reads the config file whenever it changes and applies its
// log level. Other settings need a restart.
type LevelWatcher struct {
	path    string
	level   zap.AtomicLevel
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewLevelWatcher starts watching path. The containing directory is watched
// so editors that replace the file on save are still seen.
func NewLevelWatcher(path string, level zap.AtomicLevel, logger *zap.Logger) (*LevelWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &LevelWatcher{
		path:    filepath.Clean(path),
		level:   level,
		logger:  logger.With(zap.String("component", "logging")),
		watcher: watcher,
	}, nil
}

// Run applies changes until ctx is done, then closes the watcher.
func (w *LevelWatcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *LevelWatcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		w.logger.Warn("ignoring unreadable config change", zap.Error(err))
		return
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		w.logger.Warn("ignoring invalid log level", zap.String("level", cfg.Log.Level))
		return
	}
	if level == w.level.Level() {
		return
	}

	w.level.SetLevel(level)
	w.logger.Info("log level changed", zap.Stringer("level", level))
}
