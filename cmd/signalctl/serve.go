package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/signals/internal/app"
	"github.com/dshills/signals/internal/config"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		watch bool
		addr  string
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the admin HTTP API and background loops until interrupted",
		Example: "  signalctl serve -c signals.toml --watch\n  signalctl serve --addr 127.0.0.1:9191",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && g.configPath == "" {
				return fmt.Errorf("--watch requires --config")
			}
			a, err := app.New(app.Options{
				ConfigPath: g.configPath,
				Watch:      watch,
				LogLevel:   g.logLevel,
				LogOutput:  cmd.ErrOrStderr(),
				Configure: func(cfg *config.Config) {
					cfg.HTTP.Enabled = true
					if addr != "" {
						cfg.HTTP.Addr = addr
					}
				},
			})
			if err != nil {
				return err
			}

			ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the configuration file when it changes")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding http.addr")
	return cmd
}

// serve starts a and blocks until ctx is done or a background component
// fails, then shuts down.
func serve(ctx context.Context, a *app.App) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	var runErr error
	waitErr := make(chan error, 1)
	go func() { waitErr <- a.Wait() }()
	select {
	case <-ctx.Done():
	case err := <-waitErr:
		if err != nil {
			runErr = err
		} else {
			<-ctx.Done()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
