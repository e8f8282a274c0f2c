package vocab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
)

// Loader serves the leave vocabulary used by classification. It starts from
// the built-in defaults, overlays the YAML file when present, and can watch
// the file for edits so label changes apply without a restart.
type Loader struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	current models.LeaveVocabulary

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	done     chan struct{}
	lastLoad time.Time
}

// NewLoader builds a loader primed with defaults and, if the file exists,
// the file contents on top.
func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		path:    path,
		logger:  logger,
		current: models.DefaultLeaveVocabulary(),
		done:    make(chan struct{}),
	}
	if err := l.Load(); err != nil {
		logger.Sugar().Warnw("vocabulary load failed, using defaults", "file", path, "error", err)
	}
	return l
}

// Current returns the vocabulary in effect.
func (l *Loader) Current() models.LeaveVocabulary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Load re-reads the vocabulary file. A missing file keeps the defaults; a
// malformed file keeps whatever was loaded before.
func (l *Loader) Load() error {
	if l.path == "" {
		return nil
	}

	data, err := l.read()
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Sugar().Infow("vocabulary file not found, using defaults", "file", l.path)
			return nil
		}
		return fmt.Errorf("read vocabulary file: %w", err)
	}
	if len(data) == 0 {
		// Editors truncate before writing; keep what we have.
		return nil
	}

	var parsed models.LeaveVocabulary
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse vocabulary file: %w", err)
	}

	merged := parsed.Merged()

	l.mu.Lock()
	l.current = merged
	l.mu.Unlock()

	l.logger.Sugar().Infow("vocabulary loaded",
		"file", l.path,
		"leave_types", len(merged.LeaveTypes),
		"full_day_reasons", len(merged.FullDayReasons),
	)
	return nil
}

// read retries briefly on an empty result. A save often lands as a truncate
// followed by the content write, and the watcher can fire in between.
func (l *Loader) read() ([]byte, error) {
	for attempt := 0; attempt < 10; attempt++ {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			return data, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil, nil
}

// Watch reloads the vocabulary when the file is written. The parent directory
// is watched rather than the file itself so atomic editor saves (write to a
// temp file, then rename) keep triggering reloads.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		return fmt.Errorf("no vocabulary file configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close() //nolint:errcheck
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	l.watcher = watcher
	target := filepath.Base(l.path)

	go func() {
		defer watcher.Close() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				l.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Sugar().Warnw("vocabulary watcher error", "error", err)
			}
		}
	}()

	l.logger.Sugar().Infow("vocabulary watch started", "file", l.path)
	return nil
}

// Stop ends the watch goroutine if one is running.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// reload applies a short debounce since editors fire several events per save.
func (l *Loader) reload() {
	l.mu.Lock()
	if time.Since(l.lastLoad) < time.Second {
		l.mu.Unlock()
		return
	}
	l.lastLoad = time.Now()
	l.mu.Unlock()

	if err := l.Load(); err != nil {
		l.logger.Sugar().Warnw("vocabulary reload failed, keeping previous", "file", l.path, "error", err)
	}
}
