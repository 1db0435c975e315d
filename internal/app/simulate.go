package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fxwatch/internal/alerting"
	"fxwatch/internal/provider"
	"fxwatch/internal/storage"
)

// SimulateAlert evaluates a synthetic alert against a fixed rate and runs
// the full trigger path through logging-only channels. No persistence.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	alert, err := alertFromOptions(AlertOptions{
		UserID:    "simulated",
		Pair:      opts.Pair,
		Target:    opts.Target,
		Direction: opts.Direction,
	})
	if err != nil {
		return err
	}
	alert.ID = uuid.New()

	rate, err := decimal.NewFromString(opts.Rate)
	if err != nil {
		return fmt.Errorf("invalid rate %q: %w", opts.Rate, err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate must be greater than zero")
	}

	resolver := alerting.StaticResolver{Quote: provider.NewQuote("simulated", rate, rate)}
	channels := []alerting.Channel{
		alerting.NewEmailChannel(a.Logger),
		alerting.NewPushChannel(a.Logger),
	}
	dispatcher := alerting.NewDispatcher(allChannelPrefs{}, nil, channels, a.Logger)
	engine := alerting.NewEngine(ephemeralAlerts{}, nil, resolver, dispatcher, a.Logger)

	summary := engine.EvaluateOne(ctx, alert)
	if summary.Triggered > 0 {
		fmt.Fprintln(os.Stdout, "alert would trigger")
	} else {
		fmt.Fprintln(os.Stdout, "alert would not trigger")
	}
	for _, msg := range summary.Errors {
		fmt.Fprintf(os.Stdout, "error: %s\n", msg)
	}
	return nil
}

// ephemeralAlerts satisfies the alert store contract for simulation: claims
// always succeed and nothing is persisted.
type ephemeralAlerts struct{}

func (ephemeralAlerts) InsertAlert(ctx context.Context, alert storage.Alert) (storage.Alert, error) {
	return alert, nil
}

func (ephemeralAlerts) ListEligibleAlerts(ctx context.Context) ([]storage.Alert, error) {
	return nil, nil
}

func (ephemeralAlerts) ListEligibleAlertsByUser(ctx context.Context, userID string) ([]storage.Alert, error) {
	return nil, nil
}

func (ephemeralAlerts) ListAlertsByUser(ctx context.Context, userID string) ([]storage.Alert, error) {
	return nil, nil
}

func (ephemeralAlerts) ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return true, nil
}

func (ephemeralAlerts) UpdateAlertTarget(ctx context.Context, id uuid.UUID, target decimal.Decimal) error {
	return nil
}

func (ephemeralAlerts) ReactivateAlert(ctx context.Context, id uuid.UUID) error { return nil }
func (ephemeralAlerts) DeactivateAlert(ctx context.Context, id uuid.UUID) error { return nil }

// allChannelPrefs enables every channel so the simulation exercises each
// configured stub.
type allChannelPrefs struct{}

func (allChannelPrefs) GetPreference(ctx context.Context, userID string) (storage.Preference, bool, error) {
	return storage.Preference{UserID: userID, InApp: true, Email: true, Push: true}, true, nil
}

func (allChannelPrefs) UpsertPreference(ctx context.Context, pref storage.Preference) error {
	return nil
}

var (
	_ storage.AlertStore      = ephemeralAlerts{}
	_ storage.PreferenceStore = allChannelPrefs{}
)
