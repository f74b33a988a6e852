package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloadable is implemented by components that can apply a new configuration
// at runtime. Errors are logged; remaining subscribers are still notified.
type Reloadable interface {
	OnConfigReload(newCfg *Config) error
}

// Reloader swaps the active configuration in response to SIGHUP or, when
// watch_file is enabled, edits to the config file. File events are debounced
// so editors that write in several steps trigger a single reload.
type Reloader struct {
	configPath  string
	currentCfg  atomic.Pointer[Config]
	subscribers []Reloadable
	logger      *slog.Logger
	debounce    time.Duration
	watchFile   bool

	mu      sync.RWMutex
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	stopped chan struct{}
	sigChan chan os.Signal
}

// NewReloader creates a Reloader seeded with initialCfg as the active config.
func NewReloader(configPath string, initialCfg *Config, logger *slog.Logger) *Reloader {
	r := &Reloader{
		configPath: configPath,
		logger:     logger,
		debounce:   initialCfg.Reload.Debounce.Duration,
		watchFile:  initialCfg.Reload.WatchFile,
		stopped:    make(chan struct{}),
	}
	r.currentCfg.Store(initialCfg)
	return r
}

// Register adds a reload subscriber. Call before Start.
func (r *Reloader) Register(sub Reloadable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, sub)
}

// Current returns the active configuration. Safe for concurrent use.
func (r *Reloader) Current() *Config {
	return r.currentCfg.Load()
}

// Start installs the SIGHUP handler and optional file watcher, then spawns
// the watch loop. Use Stop to shut it down.
func (r *Reloader) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	r.sigChan = make(chan os.Signal, 1)
	signal.Notify(r.sigChan, syscall.SIGHUP)

	if r.watchFile {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating file watcher: %w", err)
		}
		if err := watcher.Add(r.configPath); err != nil {
			watcher.Close()
			return fmt.Errorf("watching config file %q: %w", r.configPath, err)
		}
		r.watcher = watcher
		r.logger.Info("watching config file", "path", r.configPath, "debounce", r.debounce)
	}

	go r.run(ctx)
	return nil
}

// Stop cancels the watch loop and waits for it to exit.
func (r *Reloader) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.stopped
}

// Reload re-reads the config file and, if it parses and validates, swaps it
// in and notifies subscribers. An invalid file leaves the active config
// untouched. Changes to fields that need a restart are logged and skipped.
func (r *Reloader) Reload() error {
	newCfg, err := Load(r.configPath)
	if err != nil {
		r.logger.Error("reload rejected, keeping active config", "error", err, "path", r.configPath)
		return fmt.Errorf("config reload: %w", err)
	}

	changes := Diff(r.currentCfg.Load(), newCfg)
	if len(changes) == 0 {
		r.logger.Info("config unchanged, nothing to reload")
		return nil
	}

	r.logChanges(changes)
	r.currentCfg.Store(newCfg)
	r.notify(newCfg)

	r.logger.Info("config reloaded", "changes", len(changes), "path", r.configPath)
	return nil
}

func (r *Reloader) logChanges(changes []Change) {
	restartNeeded := 0
	for _, c := range changes {
		if c.Reloadable {
			r.logger.Info("applying config change",
				"field", c.Field,
				"old", fmt.Sprintf("%v", c.OldValue),
				"new", fmt.Sprintf("%v", c.NewValue),
			)
			continue
		}
		restartNeeded++
		r.logger.Warn("config change needs a restart, ignoring",
			"field", c.Field,
			"old", fmt.Sprintf("%v", c.OldValue),
			"new", fmt.Sprintf("%v", c.NewValue),
		)
	}
	if restartNeeded > 0 {
		r.logger.Warn("restart required for some changes to take effect", "count", restartNeeded)
	}
}

func (r *Reloader) notify(cfg *Config) {
	r.mu.RLock()
	subs := make([]Reloadable, len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.OnConfigReload(cfg); err != nil {
			r.logger.Error("subscriber failed to apply config",
				"error", err,
				"subscriber", fmt.Sprintf("%T", sub),
			)
		}
	}
}

func (r *Reloader) run(ctx context.Context) {
	defer close(r.stopped)
	defer signal.Stop(r.sigChan)

	// Nil channels when no watcher; nil channels never fire in select.
	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if r.watcher != nil {
		defer r.watcher.Close()
		events = r.watcher.Events
		watchErrs = r.watcher.Errors
	}

	var pending *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return

		case sig := <-r.sigChan:
			r.logger.Info("signal received, reloading config", "signal", sig)
			if err := r.Reload(); err != nil {
				r.logger.Error("signal-triggered reload failed", "error", err)
			}

		case event, ok := <-events:
			if !ok {
				return
			}
			// Editors and atomic writers replace the file via rename/create.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if pending != nil {
					pending.Stop()
				}
				pending = time.NewTimer(r.debounce)
				fire = pending.C
			}

		case err, ok := <-watchErrs:
			if !ok {
				return
			}
			r.logger.Error("config watcher error", "error", err)

		case <-fire:
			pending, fire = nil, nil
			// Re-add the watch; a rename-based save drops the old inode.
			_ = r.watcher.Add(r.configPath)
			if err := r.Reload(); err != nil {
				r.logger.Error("file-triggered reload failed", "error", err)
			}
		}
	}
}
