package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fxwatch/internal/alerting"
	"fxwatch/internal/config"
	"fxwatch/internal/metrics"
	"fxwatch/internal/provider"
	"fxwatch/internal/scheduler"
	"fxwatch/internal/service"
	"fxwatch/internal/storage"
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

func runtimeSettings(s config.ProviderSettings) provider.Settings {
	return provider.Settings{
		Enabled:        s.Enabled,
		CacheTTL:       s.CacheTTL,
		MaxRetries:     s.MaxRetries,
		RequestTimeout: s.RequestTimeout,
		RetryBackoff:   s.RetryBackoff,
	}
}

// buildRegistry registers every adapter. Runtimes are built lazily on first
// resolution so unused providers cost nothing.
func (a *App) buildRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	providers := a.Config.Providers
	logger := a.Logger

	registry.Register(provider.MockName, func() *provider.Runtime {
		source := provider.NewMockSource(providers.Mock.Latency, logger)
		return provider.NewRuntime(source, runtimeSettings(providers.Mock.ProviderSettings), logger)
	})

	registry.Register(provider.ExchangeRateName, func() *provider.Runtime {
		source := provider.NewExchangeRateSource(provider.ExchangeRateOptions{
			BaseURL:   providers.ExchangeRate.BaseURL,
			APIKey:    providers.ExchangeRate.APIKey,
			Timeout:   providers.ExchangeRate.RequestTimeout,
			UserAgent: providers.ExchangeRate.UserAgent,
		}, logger)
		return provider.NewRuntime(source, runtimeSettings(providers.ExchangeRate.ProviderSettings), logger)
	})

	registry.Register(provider.ChainlinkName, func() *provider.Runtime {
		source := provider.NewChainlinkSource(provider.ChainlinkOptions{
			RPCURL:  providers.Chainlink.RPCURL,
			Feeds:   providers.Chainlink.Feeds,
			Timeout: providers.Chainlink.RequestTimeout,
		}, logger)
		return provider.NewRuntime(source, runtimeSettings(providers.Chainlink.ProviderSettings), logger)
	})

	return registry
}

func (a *App) newResolver(registry *provider.Registry) (alerting.RateResolver, error) {
	if a.Config.Alerting.UseAggregator {
		return alerting.AggregatorResolver{
			Aggregator: provider.NewAggregator(registry, a.Logger),
			Providers:  a.Config.Providers.Compare,
		}, nil
	}

	runtime, found := registry.Resolve(a.Config.Providers.Primary)
	if !found {
		return nil, errors.New("primary provider not registered: " + a.Config.Providers.Primary)
	}
	return alerting.RuntimeResolver{Runtime: runtime}, nil
}

// newEngine assembles the evaluation engine backed by store. The caller
// guarantees store is non-nil.
func (a *App) newEngine(registry *provider.Registry, store *storage.Store) (*alerting.Engine, error) {
	resolver, err := a.newResolver(registry)
	if err != nil {
		return nil, err
	}

	channels := []alerting.Channel{
		alerting.NewInAppChannel(store, a.Logger),
		alerting.NewEmailChannel(a.Logger),
		alerting.NewPushChannel(a.Logger),
	}
	dispatcher := alerting.NewDispatcher(store, store, channels, a.Logger)
	return alerting.NewEngine(store, store, resolver, dispatcher, a.Logger), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	db := a.Config.Database
	pool, err := storage.NewPool(ctx, db.DSN, db.MaxOpenConns, db.MaxIdleConns, db.ConnMaxLifetime)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// requireStore opens the store and fails when persistence is unconfigured.
func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	return store, closeStore, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	registry := a.buildRegistry()
	a.logProviderHealth(ctx, registry)

	var engine *alerting.Engine
	var sampleStore storage.RateSampleStore
	var locker storage.AdvisoryLocker
	if store != nil {
		if a.Config.Alerting.Enabled {
			engine, err = a.newEngine(registry, store)
			if err != nil {
				return err
			}
		}
		sampleStore = store
		locker = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; persistence and alert evaluation disabled")
	}

	if a.Config.Metrics.Enabled {
		a.serveMetrics(ctx)
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, registry, engine, sampleStore, locker, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// logProviderHealth probes each registered provider once at startup.
func (a *App) logProviderHealth(ctx context.Context, registry *provider.Registry) {
	for _, name := range registry.List() {
		runtime, found := registry.Resolve(name)
		if !found {
			continue
		}
		if !runtime.Settings().Enabled {
			a.Logger.Info().Str("provider", name).Msg("provider disabled")
			continue
		}
		healthy := runtime.HealthCheck(ctx)
		a.Logger.Info().Str("provider", name).Bool("healthy", healthy).Msg("provider health probed")
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: a.Config.Metrics.ListenAddr, Handler: mux}

	go func() {
		a.Logger.Info().Str("addr", server.Addr).Msg("metrics endpoint listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// CompareOptions configure the compare command.
type CompareOptions struct {
	Pair      string
	Providers []string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Kind  string
	Pair  string
	User  string
	Limit int
}

// ExportOptions hold parameters for exporting rate history.
type ExportOptions struct {
	Pair      string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// AlertOptions carry the fields of a new alert.
type AlertOptions struct {
	UserID    string
	Pair      string
	Target    string
	Direction string
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Pair      string
	Rate      string
	Target    string
	Direction string
}
