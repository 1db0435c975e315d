package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"fxwatch/internal/provider"
	"fxwatch/internal/storage"
)

// Show prints recent rate samples or notification records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	switch opts.Kind {
	case "samples":
		return a.showSamples(ctx, store, opts)
	case "notifications":
		return a.showNotifications(ctx, store, opts)
	case "inbox":
		return a.showInbox(ctx, store, opts)
	}
	return fmt.Errorf("unknown kind %q, expected samples, notifications or inbox", opts.Kind)
}

func (a *App) showSamples(ctx context.Context, store storage.RateSampleStore, opts ShowOptions) error {
	normalized, ok := provider.NormalizePair(opts.Pair)
	if !ok {
		return fmt.Errorf("invalid pair %q, expected BASE_QUOTE", opts.Pair)
	}

	samples, err := store.ListRecentSamples(ctx, normalized, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPair\tProvider\tBuy\tSell")
	for _, sample := range samples {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			sample.Bucket.UTC().Format(time.RFC3339),
			sample.Pair,
			sample.Provider,
			sample.Buy.StringFixed(4),
			sample.Sell.StringFixed(4),
		)
	}
	writer.Flush()
	return nil
}

func (a *App) showNotifications(ctx context.Context, store storage.NotificationStore, opts ShowOptions) error {
	records, err := store.ListRecentNotifications(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no notifications found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Sent (UTC)\tChannel\tDelivered\tMessage\tError")
	for _, record := range records {
		fmt.Fprintf(writer, "%s\t%s\t%t\t%s\t%s\n",
			record.SentAt.UTC().Format(time.RFC3339),
			record.Channel,
			record.Delivered,
			sanitizeInline(record.Message),
			sanitizeInline(record.Error),
		)
	}
	writer.Flush()
	return nil
}

func (a *App) showInbox(ctx context.Context, store storage.InboxReader, opts ShowOptions) error {
	messages, err := store.ListInboxMessages(ctx, opts.User, opts.Limit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Fprintln(os.Stdout, "inbox is empty")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Received (UTC)\tTitle\tMessage")
	for _, msg := range messages {
		fmt.Fprintf(writer, "%s\t%s\t%s\n",
			msg.CreatedAt.UTC().Format(time.RFC3339),
			sanitizeInline(msg.Title),
			sanitizeInline(msg.Message),
		)
	}
	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
