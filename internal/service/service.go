package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fxwatch/internal/alerting"
	"fxwatch/internal/config"
	"fxwatch/internal/provider"
	"fxwatch/internal/scheduler"
	"fxwatch/internal/storage"
)

// Service orchestrates one evaluation cycle: sample the watched pairs, then
// run the alert pass. A pg advisory lock keeps concurrent deployments from
// running overlapping cycles.
type Service struct {
	scheduler *scheduler.Scheduler
	registry  *provider.Registry
	engine    *alerting.Engine
	samples   storage.RateSampleStore
	logger    zerolog.Logger

	primary  string
	watched  []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, registry *provider.Registry, engine *alerting.Engine, samples storage.RateSampleStore, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		registry:  registry,
		engine:    engine,
		samples:   samples,
		logger:    logger.With().Str("component", "service").Logger(),
		primary:   cfg.Providers.Primary,
		watched:   cfg.Providers.WatchedPairs,
		alertsOn:  cfg.Alerting.Enabled,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the periodic evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle executes a single cycle under the advisory lock.
func (s *Service) ProcessCycle(ctx context.Context, cycle time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("cycle", cycle).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	s.executeCycle(ctx, cycle)
	return nil
}

func (s *Service) executeCycle(ctx context.Context, cycle time.Time) {
	s.samplePairs(ctx, cycle)

	if !s.alertsOn || s.engine == nil {
		return
	}

	summary := s.engine.CheckAll(ctx)
	event := s.logger.Info().
		Time("cycle", cycle).
		Int("checked", summary.Checked).
		Int("triggered", summary.Triggered)
	if len(summary.Errors) > 0 {
		event = event.Strs("errors", summary.Errors)
	}
	event.Msg("alert pass finished")
}

// samplePairs records the primary provider's quote for every watched pair.
// Failures are logged and skipped; sampling never fails a cycle.
func (s *Service) samplePairs(ctx context.Context, cycle time.Time) {
	if len(s.watched) == 0 {
		return
	}

	runtime, found := s.registry.Resolve(s.primary)
	if !found {
		s.logger.Error().Str("provider", s.primary).Msg("primary provider not registered")
		return
	}

	for _, pair := range s.watched {
		quote := runtime.FetchRate(ctx, pair)
		if !quote.OK {
			s.logger.Warn().Str("pair", pair).Str("error", quote.Err).Msg("sample fetch failed")
			continue
		}
		if s.samples == nil {
			continue
		}
		sample := storage.RateSample{
			Pair:     pair,
			Provider: quote.Provider,
			Bucket:   cycle,
			Buy:      quote.Buy,
			Sell:     quote.Sell,
		}
		if err := s.samples.UpsertRateSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Str("pair", pair).Msg("failed to upsert rate sample")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
