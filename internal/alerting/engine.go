package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fxwatch/internal/metrics"
	"fxwatch/internal/provider"
	"fxwatch/internal/storage"
)

// RateResolver produces the current rate for a pair. Resolution failures
// come back as failure quotes, mirroring the provider contract.
type RateResolver interface {
	Resolve(ctx context.Context, pair string) provider.Quote
}

// RuntimeResolver resolves via a single designated provider runtime.
type RuntimeResolver struct {
	Runtime *provider.Runtime
}

// Resolve implements RateResolver.
func (r RuntimeResolver) Resolve(ctx context.Context, pair string) provider.Quote {
	return r.Runtime.FetchRate(ctx, pair)
}

// AggregatorResolver resolves via the aggregator's best quote across the
// configured provider set.
type AggregatorResolver struct {
	Aggregator *provider.Aggregator
	Providers  []string
}

// Resolve implements RateResolver.
func (r AggregatorResolver) Resolve(ctx context.Context, pair string) provider.Quote {
	return r.Aggregator.BestQuote(ctx, pair, r.Providers)
}

// StaticResolver answers every lookup with a fixed quote. Simulation only.
type StaticResolver struct {
	Quote provider.Quote
}

// Resolve implements RateResolver.
func (r StaticResolver) Resolve(ctx context.Context, pair string) provider.Quote {
	return r.Quote
}

// Summary is the outcome of one evaluation pass, consumed by the scheduler
// for logging. It is returned, never raised.
type Summary struct {
	Checked   int
	Triggered int
	Errors    []string
}

// Engine evaluates eligible alerts against the freshest rate and hands
// triggered ones to the dispatcher. One broken alert never halts the batch.
type Engine struct {
	alerts     storage.AlertStore
	triggers   storage.TriggerStore
	resolver   RateResolver
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// NewEngine constructs the evaluation engine.
func NewEngine(alerts storage.AlertStore, triggers storage.TriggerStore, resolver RateResolver, dispatcher *Dispatcher, logger zerolog.Logger) *Engine {
	return &Engine{
		alerts:     alerts,
		triggers:   triggers,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "alert_engine").Logger(),
	}
}

// CheckAll runs one evaluation pass over every eligible alert.
func (e *Engine) CheckAll(ctx context.Context) Summary {
	alerts, err := e.alerts.ListEligibleAlerts(ctx)
	if err != nil {
		return Summary{Errors: []string{fmt.Sprintf("load eligible alerts: %v", err)}}
	}
	return e.evaluate(ctx, alerts)
}

// CheckUser runs an on-demand pass scoped to one user's eligible alerts.
func (e *Engine) CheckUser(ctx context.Context, userID string) Summary {
	alerts, err := e.alerts.ListEligibleAlertsByUser(ctx, userID)
	if err != nil {
		return Summary{Errors: []string{fmt.Sprintf("load eligible alerts for %s: %v", userID, err)}}
	}
	return e.evaluate(ctx, alerts)
}

// EvaluateOne applies the full trigger path to a single alert outside a
// pass. Used by the simulation command.
func (e *Engine) EvaluateOne(ctx context.Context, alert storage.Alert) Summary {
	return e.evaluate(ctx, []storage.Alert{alert})
}

func (e *Engine) evaluate(ctx context.Context, alerts []storage.Alert) Summary {
	var summary Summary

	for _, alert := range alerts {
		if !alert.Eligible() {
			continue
		}
		summary.Checked++

		quote := e.resolver.Resolve(ctx, alert.Pair)
		if !quote.OK {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("alert %s: no rate for %s: %s", alert.ID, alert.Pair, quote.Err))
			continue
		}

		current := quote.Buy
		if !alert.Direction.Satisfied(current, alert.TargetRate) {
			continue
		}

		now := time.Now().UTC()
		claimed, err := e.alerts.ClaimTriggered(ctx, alert.ID, now)
		if err != nil {
			// Alert stays unnotified and is retried next pass.
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("alert %s: claim failed: %v", alert.ID, err))
			continue
		}
		if !claimed {
			// Another worker won the race; it also owns dispatch.
			continue
		}

		summary.Triggered++
		metrics.AlertsTriggeredTotal.Inc()

		if e.triggers != nil {
			if err := e.triggers.AppendTriggerEvent(ctx, storage.TriggerEvent{
				AlertID:    alert.ID,
				Rate:       current,
				Provider:   quote.Provider,
				RecordedAt: now,
			}); err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("alert %s: trigger audit failed: %v", alert.ID, err))
			}
		}

		alert.Notified = true
		alert.TriggeredAt = &now

		e.logger.Info().
			Str("alert_id", alert.ID.String()).
			Str("pair", alert.Pair).
			Str("direction", string(alert.Direction)).
			Str("target", alert.TargetRate.String()).
			Str("current", current.String()).
			Msg("alert triggered")

		if e.dispatcher != nil {
			e.dispatcher.Dispatch(ctx, alert, current)
		}
	}

	metrics.AlertPassesTotal.Inc()
	e.logger.Info().
		Int("checked", summary.Checked).
		Int("triggered", summary.Triggered).
		Int("errors", len(summary.Errors)).
		Msg("evaluation pass complete")
	return summary
}
