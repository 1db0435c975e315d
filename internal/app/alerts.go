package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"fxwatch/internal/provider"
	"fxwatch/internal/storage"
)

// CreateAlert persists a new threshold alert for a user.
func (a *App) CreateAlert(ctx context.Context, opts AlertOptions) error {
	alert, err := alertFromOptions(opts)
	if err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stored, err := store.InsertAlert(ctx, alert)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert created: %s (%s %s %s)\n",
		stored.ID,
		provider.DisplayPair(stored.Pair),
		stored.Direction.Symbol(),
		stored.TargetRate.StringFixed(4),
	)
	return nil
}

// ListAlerts prints every alert owned by a user.
func (a *App) ListAlerts(ctx context.Context, userID string) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlertsByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tPair\tDirection\tTarget\tActive\tNotified\tTriggered (UTC)")
	for _, alert := range alerts {
		triggered := "-"
		if alert.TriggeredAt != nil {
			triggered = alert.TriggeredAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
			alert.ID,
			alert.Pair,
			alert.Direction,
			alert.TargetRate.StringFixed(4),
			alert.Active,
			alert.Notified,
			triggered,
		)
	}
	writer.Flush()
	return nil
}

// SetPreference writes a user's per-channel notification opt-ins.
func (a *App) SetPreference(ctx context.Context, pref storage.Preference) error {
	if pref.UserID == "" {
		return fmt.Errorf("--user is required")
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.UpsertPreference(ctx, pref); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "preferences saved for %s (in_app=%t email=%t push=%t)\n",
		pref.UserID, pref.InApp, pref.Email, pref.Push)
	return nil
}

func alertFromOptions(opts AlertOptions) (storage.Alert, error) {
	if opts.UserID == "" {
		return storage.Alert{}, fmt.Errorf("--user is required")
	}

	pair, ok := provider.NormalizePair(opts.Pair)
	if !ok {
		return storage.Alert{}, fmt.Errorf("invalid pair %q, expected BASE_QUOTE", opts.Pair)
	}

	target, err := decimal.NewFromString(opts.Target)
	if err != nil {
		return storage.Alert{}, fmt.Errorf("invalid target rate %q: %w", opts.Target, err)
	}
	if !target.IsPositive() {
		return storage.Alert{}, fmt.Errorf("target rate must be greater than zero")
	}

	direction, err := storage.ParseDirection(opts.Direction)
	if err != nil {
		return storage.Alert{}, err
	}

	return storage.Alert{
		UserID:     opts.UserID,
		Pair:       pair,
		TargetRate: target,
		Direction:  direction,
		Active:     true,
	}, nil
}
