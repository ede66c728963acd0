package watchers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/finradar/finradar/internal/logging"
)

// RuleReloader watches the rule file and swaps the engine's rule set
// when it changes. Rapid editor save sequences are debounced; a file
// that fails to parse is logged and the previous rules stay active.
type RuleReloader struct {
	path     string
	debounce time.Duration
	engine   *Engine
	logger   *logging.Logger

	cancel  context.CancelFunc
	stopped chan struct{}

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewRuleReloader builds a reloader for the given rule file.
func NewRuleReloader(path string, engine *Engine) (*RuleReloader, error) {
	if path == "" {
		return nil, fmt.Errorf("rule file path cannot be empty")
	}
	return &RuleReloader{
		path:     path,
		debounce: 500 * time.Millisecond,
		engine:   engine,
		logger:   logging.GetLogger("watchers.reload"),
		stopped:  make(chan struct{}),
	}, nil
}

// Start loads the file once, swaps it in, and begins watching for
// changes. The initial load failing is fatal; later failures are not.
func (r *RuleReloader) Start(ctx context.Context) error {
	rules, err := LoadRuleFile(r.path)
	if err != nil {
		return fmt.Errorf("load rule file: %w", err)
	}
	r.engine.SetRules(rules)

	watchCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.watchLoop(watchCtx)
	return nil
}

// Stop terminates the watch loop.
func (r *RuleReloader) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	select {
	case <-r.stopped:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for rule reloader to stop")
	}
}

func (r *RuleReloader) watchLoop(ctx context.Context) {
	defer close(r.stopped)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.logger.Error("create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(r.path); err != nil {
		r.logger.Error("watch %s: %v", r.path, err)
		return
	}
	r.logger.Debug("watching %s", r.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Atomic writes unlink the old inode; re-add the watch so
			// the replacement file keeps being observed.
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				time.Sleep(50 * time.Millisecond)
				if err := watcher.Add(r.path); err != nil {
					r.logger.Warn("re-add watch after %s: %v", event.Op, err)
				}
			}
			r.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("watcher error: %v", err)
		}
	}
}

func (r *RuleReloader) scheduleReload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = time.AfterFunc(r.debounce, r.reload)
}

func (r *RuleReloader) reload() {
	rules, err := LoadRuleFile(r.path)
	if err != nil {
		r.logger.Warn("reload failed, keeping previous rules: %v", err)
		return
	}
	r.engine.SetRules(rules)
}
