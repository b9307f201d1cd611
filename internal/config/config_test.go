package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/signals/internal/deadletter"
	"github.com/dshills/signals/internal/throttle"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const tomlConfig = `
[log]
level = "debug"

[async]
workers = 8

[signals.order_placed]
logging = true
metrics = true

[signals.order_placed.throttle]
strategy = "token_bucket"
limit = 100
window = "1s"
mode = "reject"

[signals.order_placed.dead_letter]
max_retries = 3
max_size = 50
overflow = "drop_oldest"
policy = "exponential"
delay = "100ms"
max_delay = "5s"

[signals.order_placed.history]
capacity = 200
`

const yamlConfig = `
log:
  level: warn
  format: console
signals:
  pre_save:
    tracing: true
    throttle:
      strategy: sliding_window
      limit: 5
      window: 250ms
      mode: block
`

const jsonConfig = `{
  "http": {"enabled": true, "addr": ":8080", "shutdown_timeout": "2s"},
  "signals": {"user_created": {"require_receivers": true}}
}`

func TestLoadTOML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "signals.toml", tomlConfig)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Async.Workers != 8 || cfg.Async.QueueSize != 1024 {
		t.Errorf("unexpected async config: %+v", cfg.Async)
	}

	sc, ok := cfg.Signals["order_placed"]
	if !ok {
		t.Fatal("expected order_placed section")
	}
	if !sc.Logging || !sc.Metrics || sc.Tracing {
		t.Errorf("unexpected flags: %+v", sc)
	}
	if sc.History == nil || sc.History.Capacity != 200 {
		t.Errorf("unexpected history: %+v", sc.History)
	}

	tc, err := sc.Throttle.Build()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Strategy != throttle.TokenBucket || tc.Limit != 100 || tc.Window != time.Second || tc.Mode != throttle.Reject {
		t.Errorf("unexpected throttle config: %+v", tc)
	}

	dc, err := sc.DeadLetter.Build()
	if err != nil {
		t.Fatal(err)
	}
	if dc.Overflow != deadletter.DropOldest || dc.MaxRetries != 3 || dc.MaxSize != 50 {
		t.Errorf("unexpected dead letter config: %+v", dc)
	}
	backoff, ok := dc.Policy.(deadletter.ExponentialBackoff)
	if !ok || backoff.Base != 100*time.Millisecond || backoff.Max != 5*time.Second {
		t.Errorf("unexpected policy: %#v", dc.Policy)
	}
	if sc.DeadLetter.RetryInterval() != DefaultRetryInterval {
		t.Errorf("expected default retry interval, got %v", sc.DeadLetter.RetryInterval())
	}
}

func TestLoadYAML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "signals.yaml", yamlConfig)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("expected console format, got %q", cfg.Log.Format)
	}
	th := cfg.Signals["pre_save"].Throttle
	if th == nil || th.Window.Std() != 250*time.Millisecond || th.Mode != "block" {
		t.Errorf("unexpected throttle: %+v", th)
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "signals.json", jsonConfig)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Addr != ":8080" || cfg.HTTP.ShutdownTimeout.Std() != 2*time.Second {
		t.Errorf("unexpected http config: %+v", cfg.HTTP)
	}
	if !cfg.Signals["user_created"].RequireReceivers {
		t.Error("expected require_receivers")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}

	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	p = writeTempFile(t, d, "bad.yaml", "signals:\n  x:\n    throttle:\n      window: soon\n")
	_, err := Load(p)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Format != "yaml" {
		t.Fatalf("expected yaml ParseError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "xml"
	cfg.Signals["Bad-Name"] = SignalConfig{}
	cfg.Signals["orders"] = SignalConfig{
		Throttle:   &ThrottleConfig{Strategy: "token_bucket", Limit: 1, Window: Duration(time.Second)},
		DeadLetter: &DeadLetterConfig{MaxSize: 10},
	}
	cfg.Signals["pre_save"] = SignalConfig{}

	err := cfg.Validate()
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if !errors.Is(err, throttle.ErrInvalidConfig) {
		t.Errorf("expected missing throttle mode to be reported, got %v", err)
	}
	if !errors.Is(err, deadletter.ErrInvalidConfig) {
		t.Errorf("expected missing overflow policy to be reported, got %v", err)
	}

	var keys []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ve *ValidationError
		if errors.As(e, &ve) {
			keys = append(keys, ve.Key)
		}
	}
	want := []string{"log.format", "signals.Bad-Name", "signals.orders.throttle", "signals.orders.dead_letter"}
	if len(keys) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestDeadLetterPolicies(t *testing.T) {
	tests := []struct {
		policy string
		want   deadletter.Policy
	}{
		{"", deadletter.Immediate{}},
		{"immediate", deadletter.Immediate{}},
		{"fixed", deadletter.FixedDelay{Interval: time.Second}},
		{"linear", deadletter.LinearBackoff{Step: time.Second, Max: time.Minute}},
	}
	for _, tt := range tests {
		dc, err := DeadLetterConfig{
			MaxSize:  1,
			Overflow: "reject_new",
			Policy:   tt.policy,
			Delay:    Duration(time.Second),
			MaxDelay: Duration(time.Minute),
		}.Build()
		if err != nil {
			t.Errorf("policy %q: %v", tt.policy, err)
			continue
		}
		if dc.Policy != tt.want {
			t.Errorf("policy %q: expected %#v, got %#v", tt.policy, tt.want, dc.Policy)
		}
	}

	if _, err := (DeadLetterConfig{MaxSize: 1, Overflow: "reject_new", Policy: "random"}).Build(); !errors.Is(err, deadletter.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
