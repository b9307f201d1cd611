package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/events"
)

// ReloadHandler is called after a successful reload.
type ReloadHandler func(old, current Config)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithRegistry sets the registry whose setting_changed signal receives
// change events. Defaults to signal.DefaultRegistry().
func WithRegistry(r *signal.Registry) WatcherOption {
	return func(w *Watcher) {
		if r != nil {
			w.registry = r
		}
	}
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(l zerolog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WatcherStats contains reload counters.
type WatcherStats struct {
	Reloads     uint64
	Failures    uint64
	LastError   error
	LastReload  time.Time
	WatchedPath string
}

// Watcher reloads a configuration file when it changes on disk.
//
// The parent directory is watched rather than the file so that editors
// which replace the file by rename are noticed.
type Watcher struct {
	path     string
	registry *signal.Registry
	logger   zerolog.Logger
	debounce time.Duration

	fsw *fsnotify.Watcher

	mu         sync.RWMutex
	current    Config
	handlers   []ReloadHandler
	lastError  error
	lastReload time.Time
	closed     bool

	reloads  atomic.Uint64
	failures atomic.Uint64

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher starts watching path. initial is the configuration currently
// in effect and is the baseline for the first diff.
func NewWatcher(path string, initial Config, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		registry: signal.DefaultRegistry(),
		logger:   zerolog.Nop(),
		debounce: 100 * time.Millisecond,
		current:  initial,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "config_watcher").Str("path", absPath).Logger()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.processLoop()

	return w, nil
}

// OnReload registers a handler called after each successful reload.
func (w *Watcher) OnReload(h ReloadHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Current returns the configuration in effect.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stats returns reload statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WatcherStats{
		Reloads:     w.reloads.Load(),
		Failures:    w.failures.Load(),
		LastError:   w.lastError,
		LastReload:  w.lastReload,
		WatchedPath: w.path,
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			_ = w.Reload(context.Background())

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// Reload reads the file now. On a parse or validation error the current
// configuration is kept and the error returned. Otherwise one
// setting_changed event is sent per changed key, then reload handlers run.
func (w *Watcher) Reload(ctx context.Context) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWatcherClosed
	}
	w.mu.RUnlock()

	next, err := Load(w.path)
	if err == nil {
		err = next.Validate()
	}
	if err != nil {
		w.failures.Add(1)
		w.mu.Lock()
		w.lastError = err
		w.mu.Unlock()
		w.logger.Error().Err(err).Msg("config reload rejected")
		return err
	}

	w.mu.Lock()
	old := w.current
	w.current = next
	w.lastError = nil
	w.lastReload = time.Now()
	handlers := make([]ReloadHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()
	w.reloads.Add(1)

	changes, err := Diff(old, next)
	if err != nil {
		return err
	}
	w.logger.Info().Int("changes", len(changes)).Msg("config reloaded")

	sig := events.SettingChangedIn(w.registry)
	for _, ch := range changes {
		sig.SendRobust(ctx, ch, signal.SenderOf[*Watcher]())
	}

	for _, h := range handlers {
		w.safeCallHandler(h, old, next)
	}
	return nil
}

func (w *Watcher) safeCallHandler(h ReloadHandler, old, current Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Interface("panic", r).Msg("reload handler panicked")
		}
	}()
	h(old, current)
}

// Flatten renders cfg as dotted keys mapped to their string values, for
// example "signals.orders.throttle.limit" => "100".
func Flatten(cfg Config) (map[string]string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flattenInto(out, "", tree)
	return out, nil
}

func flattenInto(out map[string]string, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, child)
		}
	case nil:
		// empty sections contribute no keys
	default:
		out[prefix] = fmt.Sprint(val)
	}
}

// Diff returns a setting change for every key added, changed or removed
// between old and current, sorted by key. A removed key has an empty
// NewValue.
func Diff(old, current Config) ([]events.SettingChangedEvent, error) {
	before, err := Flatten(old)
	if err != nil {
		return nil, err
	}
	after, err := Flatten(current)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var changes []events.SettingChangedEvent
	for _, k := range sorted {
		prev, had := before[k]
		next, has := after[k]
		switch {
		case had && has && prev == next:
			continue
		case had:
			p := prev
			changes = append(changes, events.NewSettingChangedEvent(k, &p, next))
		default:
			changes = append(changes, events.NewSettingChangedEvent(k, nil, next))
		}
	}
	return changes, nil
}
