package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/history"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "signalctl dev") {
		t.Errorf("output = %q", out)
	}
}

func TestNames(t *testing.T) {
	out, err := execute(t, "names")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "post_save\n") {
		t.Errorf("missing builtin name: %q", out)
	}

	out, err = execute(t, "names", "user_created", "pre_save", "Bad__Name")
	if err == nil {
		t.Fatal("expected error for invalid name")
	}
	for _, want := range []string{"user_created: ok", "pre_save: built-in", "Bad__Name:"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestValidate(t *testing.T) {
	good := writeFile(t, "good.yaml", `
signals:
  order_placed:
    throttle:
      strategy: token_bucket
      limit: 10
      window: 1s
      mode: block
`)
	out, err := execute(t, "validate", "-c", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "ok (1 signals configured)") {
		t.Errorf("output = %q", out)
	}

	bad := writeFile(t, "bad.yaml", `
signals:
  order_placed:
    throttle:
      strategy: hourglass
      limit: 10
      window: 1s
      mode: block
`)
	if _, err := execute(t, "validate", "-c", bad); err == nil {
		t.Error("expected validation error")
	}
	if _, err := execute(t, "validate"); err == nil {
		t.Error("expected missing --config error")
	}
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"instant", "instant", false},
		{"fast", "10x", false},
		{"Realtime", "1x", false},
		{"2.5", "2.5x", false},
		{"4x", "4x", false},
		{"-1", "", true},
		{"warp", "", true},
	}
	for _, tt := range tests {
		got, err := parseSpeed(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSpeed(%q) err = %v", tt.in, err)
			continue
		}
		if err == nil && got.String() != tt.want {
			t.Errorf("parseSpeed(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRunDemo(t *testing.T) {
	export := filepath.Join(t.TempDir(), "orders.msgpack")
	cfg := config.Default()
	cfg.Log.Level = "disabled"

	rep, err := runDemo(context.Background(), cfg, demoOptions{
		signal:  "order_placed",
		senders: 3,
		sends:   5,
		speed:   "instant",
		replay:  true,
		export:  export,
	}, io.Discard)
	if err != nil {
		t.Fatalf("runDemo: %v", err)
	}
	if rep.Sent != 15 || rep.Recorded != 15 {
		t.Errorf("sent=%d recorded=%d", rep.Sent, rep.Recorded)
	}
	if rep.Replayed.Sent != 15 || rep.Received != 30 {
		t.Errorf("replayed=%+v received=%d", rep.Replayed, rep.Received)
	}

	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatal(err)
	}
	records, err := history.Decode[order](history.MsgpackCodec{}, data)
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(records) != 15 {
		t.Fatalf("exported %d records", len(records))
	}
}

func TestRunDemo_ThrottleAndScript(t *testing.T) {
	lua := writeFile(t, "hooks.lua", `
function on_order(o)
  if o.amount > 30 then
    return "too large"
  end
  return true
end

function first_customer(o)
  return o.customer == "customer_0"
end
`)
	cfg := config.Default()
	cfg.Log.Level = "disabled"
	cfg.Signals["order_placed"] = config.SignalConfig{
		Throttle: &config.ThrottleConfig{
			Strategy: "token_bucket",
			Limit:    4,
			Window:   config.Duration(time.Hour),
			Mode:     "reject",
		},
	}

	rep, err := runDemo(context.Background(), cfg, demoOptions{
		signal:    "order_placed",
		senders:   1,
		sends:     6,
		speed:     "instant",
		script:    lua,
		receiver:  "on_order",
		predicate: "first_customer",
	}, io.Discard)
	if err != nil {
		t.Fatalf("runDemo: %v", err)
	}
	if rep.Sent != 4 || rep.Throttled != 2 {
		t.Errorf("sent=%d throttled=%d", rep.Sent, rep.Throttled)
	}
	// Amounts are 9.99, 19.98, 29.97, 39.96: only the last exceeds 30.
	if rep.Failed != 1 {
		t.Errorf("failed=%d, want 1", rep.Failed)
	}
}
