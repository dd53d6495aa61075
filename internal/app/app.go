package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"entry-confirm-alerts/internal/config"
	"entry-confirm-alerts/internal/configstore"
	"entry-confirm-alerts/internal/dispatch"
	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/pricefeed"
	"entry-confirm-alerts/internal/queue"
	"entry-confirm-alerts/internal/scheduler"
	"entry-confirm-alerts/internal/service"
	"entry-confirm-alerts/internal/storage"
	"entry-confirm-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is required")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newFetcher() pricefeed.Fetcher {
	ticker := pricefeed.NewTicker(pricefeed.TickerOptions{
		VenueURLs: a.Config.PriceFeed.VenueURLs,
		Timeout:   a.Config.PriceFeed.RequestTimeout,
		UserAgent: a.Config.PriceFeed.UserAgent,
	}, a.Logger)

	if a.Config.PriceFeed.CacheTTL <= 0 {
		return ticker
	}
	return pricefeed.NewCache(ticker, a.Config.PriceFeed.CacheTTL, nil)
}

func (a *App) newResolver(store *storage.Store) *configstore.Resolver {
	return configstore.New(store, 30*time.Second, nil, a.Logger)
}

func (a *App) newDispatcher(store *storage.Store) (*dispatch.Dispatcher, error) {
	redisQueue, err := queue.NewRedisQueue(a.Config.Redis, a.Logger)
	if err != nil {
		return nil, err
	}
	return dispatch.New(store, store, redisQueue, a.Logger), nil
}

func (a *App) newService(mode monitor.TradeMode, store *storage.Store, resolver *configstore.Resolver, prices pricefeed.Fetcher, dispatcher *dispatch.Dispatcher) *service.Service {
	modeCfg := a.Config.ModeFor(string(mode))

	sched := scheduler.New(scheduler.Options{
		Interval: modeCfg.Interval,
		// The stored global cadence wins over the file fallback, so an
		// operator config change takes effect without a restart.
		IntervalFunc: func() time.Duration {
			cfg, err := resolver.Resolve(context.Background(), "")
			if err != nil {
				return 0
			}
			return cfg.CheckInterval()
		},
		AlignToStart: a.Config.Monitor.AlignToStart,
		StartupDelay: a.Config.Monitor.StartupDelay,
	}, a.Logger)

	return service.New(mode, sched, store, resolver, prices, dispatcher, service.Options{
		Workers:      modeCfg.Workers,
		FetchTimeout: a.Config.Monitor.FetchTimeout,
	}, a.Logger)
}

// Run executes the long-running monitoring service: one independent
// loop per trade mode, plus the optional metrics listener.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher, err := a.newDispatcher(store)
	if err != nil {
		return err
	}

	resolver := a.newResolver(store)
	prices := a.newFetcher()

	g, gctx := errgroup.WithContext(ctx)

	started := 0
	for _, mode := range []monitor.TradeMode{monitor.ModeReal, monitor.ModeSimulation} {
		if !a.Config.ModeFor(string(mode)).Enabled {
			a.Logger.Info().Str("trade_mode", string(mode)).Msg("trade mode disabled, loop not started")
			continue
		}
		svc := a.newService(mode, store, resolver, prices, dispatcher)
		g.Go(func() error {
			return svc.Run(gctx)
		})
		started++
	}
	if started == 0 {
		return errors.New("no trade mode enabled; nothing to run")
	}

	if a.Config.Metrics.Enabled {
		g.Go(func() error {
			return a.serveMetrics(gctx)
		})
	}

	a.Logger.Info().Int("loops", started).Str("build", version.String()).Msg("starting monitoring service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: a.Config.Metrics.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	a.Logger.Info().Str("addr", a.Config.Metrics.ListenAddr).Msg("metrics listener started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
