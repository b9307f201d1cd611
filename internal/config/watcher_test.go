package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/events"
)

func TestDiff(t *testing.T) {
	old := Default()
	old.Signals["orders"] = SignalConfig{Logging: true}

	next := Default()
	next.Log.Level = "debug"
	next.Signals["orders"] = SignalConfig{Logging: true, History: &HistoryConfig{Capacity: 10}}

	changes, err := Diff(old, next)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}

	if changes[0].SettingName != "log.level" || changes[0].OldValue == nil || *changes[0].OldValue != "info" || changes[0].NewValue != "debug" {
		t.Errorf("unexpected change %+v", changes[0])
	}
	if changes[1].SettingName != "signals.orders.history.capacity" || !changes[1].Added() || changes[1].NewValue != "10" {
		t.Errorf("unexpected change %+v", changes[1])
	}

	removed, _ := Diff(next, old)
	last := removed[len(removed)-1]
	if last.SettingName != "signals.orders.history.capacity" || last.NewValue != "" || last.OldValue == nil {
		t.Errorf("expected a removal, got %+v", last)
	}
}

func TestFlatten(t *testing.T) {
	flat, err := Flatten(Default())
	if err != nil {
		t.Fatal(err)
	}
	if flat["http.shutdown_timeout"] != "5s" {
		t.Errorf("expected 5s, got %q", flat["http.shutdown_timeout"])
	}
	if flat["async.workers"] != "4" {
		t.Errorf("expected 4, got %q", flat["async.workers"])
	}
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []events.SettingChangedEvent
}

func (c *changeRecorder) receive(ctx context.Context, ev events.SettingChangedEvent) error {
	c.mu.Lock()
	c.changes = append(c.changes, ev)
	c.mu.Unlock()
	return nil
}

func (c *changeRecorder) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ch := range c.changes {
		out = append(out, ch.SettingName)
	}
	return out
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "signals.toml", "[log]\nlevel = \"info\"\n")
	initial, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}

	reg := signal.NewRegistry()
	rec := &changeRecorder{}
	events.SettingChangedIn(reg).Connect(rec.receive)

	w, err := NewWatcher(p, initial, WithRegistry(reg), WithDebounce(0))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	reloaded := make(chan Config, 1)
	w.OnReload(func(old, current Config) {
		if current.Log.Level != "debug" {
			return
		}
		select {
		case reloaded <- current:
		default:
		}
	})

	if err := os.WriteFile(p, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Log.Level != "debug" {
			t.Errorf("expected debug, got %q", cfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	found := false
	for _, name := range rec.names() {
		if name == "log.level" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a log.level change, got %v", rec.names())
	}
	if w.Current().Log.Level != "debug" {
		t.Errorf("expected current config to be updated")
	}
	if w.Stats().Reloads == 0 {
		t.Error("expected reload count")
	}
}

func TestWatcher_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "signals.yaml", "log:\n  level: info\n")
	initial, _ := Load(p)

	reg := signal.NewRegistry()
	w, err := NewWatcher(p, initial, WithRegistry(reg), WithDebounce(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	called := false
	w.OnReload(func(old, current Config) { called = true })

	writeTempFile(t, dir, "signals.yaml", "log:\n  format: xml\n")
	if err := w.Reload(context.Background()); err == nil {
		t.Fatal("expected validation error")
	}
	if called {
		t.Error("reload handler ran for rejected config")
	}
	if w.Current().Log.Format != "json" {
		t.Errorf("expected previous config to stay, got %+v", w.Current().Log)
	}
	if s := w.Stats(); s.Failures != 1 || s.LastError == nil {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestWatcher_HandlerPanic(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "signals.json", `{"log":{"level":"info"}}`)
	initial, _ := Load(p)

	w, err := NewWatcher(p, initial, WithRegistry(signal.NewRegistry()), WithDebounce(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	second := false
	w.OnReload(func(old, current Config) { panic("boom") })
	w.OnReload(func(old, current Config) { second = true })

	if err := w.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !second {
		t.Error("expected later handlers to run after a panic")
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Reload(context.Background()); err != ErrWatcherClosed {
		t.Errorf("expected ErrWatcherClosed, got %v", err)
	}
}
