package app

import (
	"context"
	"fmt"
	"os"

	"fxwatch/internal/alerting"
)

// Check runs a single evaluation pass and prints the summary. A non-empty
// userID scopes the pass to that user's alerts.
func (a *App) Check(ctx context.Context, userID string) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := a.buildRegistry()
	engine, err := a.newEngine(registry, store)
	if err != nil {
		return err
	}

	var summary alerting.Summary
	if userID != "" {
		summary = engine.CheckUser(ctx, userID)
	} else {
		summary = engine.CheckAll(ctx)
	}

	fmt.Fprintf(os.Stdout, "checked: %d\ntriggered: %d\n", summary.Checked, summary.Triggered)
	for _, msg := range summary.Errors {
		fmt.Fprintf(os.Stdout, "error: %s\n", msg)
	}
	return nil
}
