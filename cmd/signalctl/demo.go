package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/signals/internal/app"
	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/history"
	"github.com/dshills/signals/internal/script"
	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/throttle"
)

// order is the demo payload.
type order struct {
	ID       int     `json:"id" msgpack:"id"`
	Customer string  `json:"customer" msgpack:"customer"`
	Amount   float64 `json:"amount" msgpack:"amount"`
}

// demoSender identifies sends made by the demo.
type demoSender struct{}

type demoOptions struct {
	signal    string
	senders   int
	sends     int
	speed     string
	replay    bool
	export    string
	codec     string
	script    string
	receiver  string
	predicate string
}

// demoReport summarizes a demo run.
type demoReport struct {
	Sent      int64
	Throttled int64
	Failed    int64
	Received  int64
	Recorded  int
	Replayed  history.Result
	Exported  string
}

func newDemoCmd(g *globalFlags) *cobra.Command {
	o := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Send orders from concurrent senders, then replay and export the history",
		Example: "  signalctl demo --senders 8 --sends 100\n" +
			"  signalctl demo -c signals.toml --export orders.msgpack\n" +
			"  signalctl demo --script hooks.lua --receiver on_order --predicate large_order",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			rep, err := runDemo(cmd.Context(), cfg, o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), o, rep)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.signal, "signal", "order_placed", "Signal to send on")
	f.IntVar(&o.senders, "senders", 4, "Number of concurrent senders")
	f.IntVar(&o.sends, "sends", 25, "Sends per sender")
	f.BoolVar(&o.replay, "replay", true, "Replay the recorded history after sending")
	f.StringVar(&o.speed, "speed", "instant", "Replay speed: instant|realtime|fast|<multiplier>")
	f.StringVar(&o.export, "export", "", "Write the recorded history to this file")
	f.StringVar(&o.codec, "codec", "", "Export codec: json|msgpack (default from the file extension)")
	f.StringVar(&o.script, "script", "", "Lua file defining an extra receiver")
	f.StringVar(&o.receiver, "receiver", "on_order", "Lua receiver function")
	f.StringVar(&o.predicate, "predicate", "", "Lua predicate function gating the receiver")
	return cmd
}

func runDemo(ctx context.Context, cfg config.Config, o demoOptions, logOut io.Writer) (demoReport, error) {
	var rep demoReport
	if o.senders <= 0 || o.sends <= 0 {
		return rep, fmt.Errorf("--senders and --sends must be positive")
	}
	speed, err := parseSpeed(o.speed)
	if err != nil {
		return rep, err
	}

	if cfg.Signals == nil {
		cfg.Signals = map[string]config.SignalConfig{}
	}
	sc := cfg.Signals[o.signal]
	if sc.History == nil {
		sc.History = &config.HistoryConfig{Capacity: o.senders * o.sends}
	}
	cfg.Signals[o.signal] = sc

	a, err := app.New(app.Options{Config: &cfg, LogOutput: logOut})
	if err != nil {
		return rep, err
	}
	b, err := app.Bind[order](a, o.signal)
	if err != nil {
		return rep, err
	}

	var received atomic.Int64
	if err := b.Signal().ConnectWithOptions(func(ctx context.Context, _ order) error {
		received.Add(1)
		return nil
	}, signal.NoSender, "demo:counter", 0); err != nil {
		return rep, err
	}

	if o.script != "" {
		eng := script.New(script.WithLogger(a.Logger()))
		defer eng.Close()
		if err := eng.DoFile(o.script); err != nil {
			return rep, err
		}
		if err := script.Connect[order](eng, b.Signal(), o.receiver, o.predicate,
			signal.WithDispatchKey("lua:"+o.receiver)); err != nil {
			return rep, err
		}
	}

	if err := a.Start(ctx); err != nil {
		return rep, err
	}

	var sent, throttled, failed atomic.Int64
	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.senders; i++ {
		group.Go(func() error {
			for j := 0; j < o.sends; j++ {
				p := order{
					ID:       i*o.sends + j + 1,
					Customer: fmt.Sprintf("customer_%d", i),
					Amount:   float64(j+1) * 9.99,
				}
				outcomes, err := b.SendRobust(gctx, p, signal.SenderOf[demoSender]())
				switch {
				case errors.Is(err, throttle.ErrThrottled):
					throttled.Add(1)
					continue
				case err != nil:
					return err
				}
				sent.Add(1)
				for _, out := range outcomes {
					if out.Failed() {
						failed.Add(1)
					}
				}
			}
			return nil
		})
	}
	sendErr := group.Wait()

	records := b.History().Records()
	rep.Recorded = len(records)
	if sendErr == nil && o.replay {
		rep.Replayed, sendErr = history.Replay(ctx, records, b.Signal(), speed,
			history.WithReplaySender(signal.SenderOf[demoSender]()))
	}
	if sendErr == nil && o.export != "" {
		sendErr = exportHistory(o.export, o.codec, records)
		rep.Exported = o.export
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && sendErr == nil {
		sendErr = err
	}

	rep.Sent = sent.Load()
	rep.Throttled = throttled.Load()
	rep.Failed = failed.Load()
	rep.Received = received.Load()
	return rep, sendErr
}

func parseSpeed(s string) (history.Speed, error) {
	switch strings.ToLower(s) {
	case "", "instant":
		return history.Instant, nil
	case "realtime":
		return history.Realtime, nil
	case "fast":
		return history.Fast, nil
	}
	m, err := strconv.ParseFloat(strings.TrimSuffix(s, "x"), 64)
	if err != nil || m <= 0 {
		return history.Speed{}, fmt.Errorf("invalid replay speed %q", s)
	}
	return history.Custom(m), nil
}

func exportHistory(path, codecName string, records []history.Record[order]) error {
	if codecName == "" {
		codecName = history.CodecNameJSON
		switch strings.ToLower(filepath.Ext(path)) {
		case ".msgpack", ".mp":
			codecName = history.CodecNameMsgpack
		}
	}
	codec, err := history.CodecByName(codecName)
	if err != nil {
		return err
	}
	data, err := history.Encode(codec, records)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printReport(w io.Writer, o demoOptions, rep demoReport) {
	fmt.Fprintf(w, "signal:    %s\n", o.signal)
	fmt.Fprintf(w, "sent:      %d\n", rep.Sent)
	fmt.Fprintf(w, "throttled: %d\n", rep.Throttled)
	fmt.Fprintf(w, "failed:    %d\n", rep.Failed)
	fmt.Fprintf(w, "received:  %d\n", rep.Received)
	fmt.Fprintf(w, "recorded:  %d\n", rep.Recorded)
	if o.replay {
		fmt.Fprintf(w, "replayed:  %d (%d failed)\n", rep.Replayed.Sent, rep.Replayed.Failed)
	}
	if rep.Exported != "" {
		fmt.Fprintf(w, "exported:  %s\n", rep.Exported)
	}
}
