// Package app wires configuration, logging, the signal registry, the async
// worker pool, metrics export and the admin HTTP API into one service, and
// binds configured add-ons (throttle, dead-letter queue, history and
// middleware) to named signals.
package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/httpapi"
	"github.com/dshills/signals/internal/logging"
	"github.com/dshills/signals/internal/observability"
	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/signal/dispatch"
)

// Options configures the application.
type Options struct {
	// ConfigPath is loaded when set. Otherwise Config, or config.Default(),
	// is used.
	ConfigPath string

	// Config is used when ConfigPath is empty.
	Config *config.Config

	// Watch reloads ConfigPath on change.
	Watch bool

	// LogLevel overrides the configured log level.
	LogLevel string

	// Configure adjusts the loaded configuration before validation. It is
	// also applied to every reloaded configuration.
	Configure func(*config.Config)

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// TracerProvider and MeterProvider back the tracing and metrics
	// middleware. The otel globals are used when nil.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func (o Options) adjust(cfg *config.Config) {
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Configure != nil {
		o.Configure(cfg)
	}
}

// App is the signal service.
type App struct {
	mu       sync.RWMutex
	cfg      config.Config
	bindings map[string]binding

	opts     Options
	logger   zerolog.Logger
	pool     *dispatch.Pool
	registry *signal.Registry
	prom     *prometheus.Registry
	handler  http.Handler
	watcher  *config.Watcher
	server   *http.Server

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	runCtx  context.Context
}

// New creates an application. Nothing runs until Start.
func New(opts Options) (*App, error) {
	cfg := config.Default()
	switch {
	case opts.ConfigPath != "":
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, &InitError{Component: "config", Err: err}
		}
		cfg = loaded
	case opts.Config != nil:
		cfg = *opts.Config
	}
	opts.adjust(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	logger := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  logging.Format(cfg.Log.Format),
		Output:  opts.LogOutput,
		Service: "signals",
	})

	a := &App{
		cfg:      cfg,
		bindings: make(map[string]binding),
		opts:     opts,
		logger:   logger,
	}

	a.pool = dispatch.NewPool(
		dispatch.WithWorkerCount(cfg.Async.Workers),
		dispatch.WithQueueSize(cfg.Async.QueueSize),
		dispatch.WithPoolPanicHandler(func(v any, stack []byte) {
			a.logger.Error().Interface("panic", v).Bytes("stack", stack).Msg("async job panicked")
		}),
	)
	a.registry = signal.NewRegistry(
		signal.WithLogger(logging.Component(logger, "signal")),
		signal.WithPool(a.pool),
	)

	a.prom = prometheus.NewRegistry()
	a.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		observability.NewCollector(a.registry, observability.WithPool(a.pool)),
	)

	a.handler = httpapi.NewMux(a.registry,
		httpapi.WithGatherer(a.prom),
		httpapi.WithRegisterer(a.prom),
		httpapi.WithLogger(logging.Component(logger, "http")),
		httpapi.WithStatus("async", func() any { return a.pool.Stats() }),
		httpapi.WithStatus("bindings", func() any { return a.BindingStatus() }),
	)

	return a, nil
}

// Config returns the configuration in effect.
func (a *App) Config() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() zerolog.Logger { return a.logger }

// Registry returns the signal registry.
func (a *App) Registry() *signal.Registry { return a.registry }

// Pool returns the async worker pool.
func (a *App) Pool() *dispatch.Pool { return a.pool }

// Prometheus returns the metrics registry served on /metrics.
func (a *App) Prometheus() *prometheus.Registry { return a.prom }

// Handler returns the admin HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// IsRunning reports whether Start has been called without Shutdown.
func (a *App) IsRunning() bool { return a.running.Load() }

// Start starts the worker pool, the config watcher, dead-letter retry loops
// and, when enabled, the HTTP server. It returns once they are started.
func (a *App) Start(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := a.pool.Start(); err != nil {
		a.running.Store(false)
		return &InitError{Component: "worker pool", Err: err}
	}

	if a.opts.Watch && a.opts.ConfigPath != "" {
		w, err := config.NewWatcher(a.opts.ConfigPath, a.Config(),
			config.WithRegistry(a.registry),
			config.WithWatcherLogger(a.logger),
		)
		if err != nil {
			_ = a.pool.Stop(context.Background())
			a.running.Store(false)
			return &InitError{Component: "config watcher", Err: err}
		}
		w.OnReload(a.onReload)
		a.watcher = w
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, runCtx := errgroup.WithContext(runCtx)

	a.mu.Lock()
	a.cancel = cancel
	a.group = group
	a.runCtx = runCtx
	for _, b := range a.bindings {
		a.startBindingLocked(b)
	}
	cfg := a.cfg
	a.mu.Unlock()

	if cfg.HTTP.Enabled {
		a.server = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           a.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		group.Go(func() error {
			a.logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return &InitError{Component: "http server", Err: err}
			}
			return nil
		})
	}

	a.logger.Info().Int("workers", cfg.Async.Workers).Msg("application started")
	return nil
}

// startBindingLocked launches the binding's background loop, if any.
func (a *App) startBindingLocked(b binding) {
	if a.group == nil {
		return
	}
	ctx := a.runCtx
	a.group.Go(func() error {
		if err := b.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

// Wait blocks until a background component fails or Shutdown is called.
func (a *App) Wait() error {
	a.mu.RLock()
	group := a.group
	a.mu.RUnlock()
	if group == nil {
		return ErrNotRunning
	}
	return group.Wait()
}

func (a *App) onReload(old, current config.Config) {
	a.opts.adjust(&current)
	a.mu.Lock()
	a.cfg = current
	a.mu.Unlock()
	a.logger.Info().Msg("configuration reloaded; async and http changes apply on restart")
}

// Shutdown stops the HTTP server and background loops, waits for pending
// asynchronous sends, then stops the worker pool and the watcher.
func (a *App) Shutdown(ctx context.Context) error {
	if !a.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	cfg := a.Config()
	if cfg.HTTP.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout.Std())
		defer cancel()
	}

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.mu.Lock()
	cancel := a.cancel
	group := a.group
	bindings := make([]binding, 0, len(a.bindings))
	for _, b := range a.bindings {
		bindings = append(bindings, b)
	}
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		if err := group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.drain(ctx, bindings); err != nil {
		errs = append(errs, err)
	}
	if err := a.pool.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.logger.Info().Msg("application stopped")
	return errors.Join(errs...)
}

// drain waits for every binding's in-flight async sends in parallel.
func (a *App) drain(ctx context.Context, bindings []binding) error {
	var g errgroup.Group
	for _, b := range bindings {
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				b.wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}
