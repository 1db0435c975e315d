package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"fxwatch/internal/provider"
)

// Compare fans one pair out to the configured providers and prints the
// per-provider breakdown plus the summary statistics.
func (a *App) Compare(ctx context.Context, opts CompareOptions) error {
	normalized, ok := provider.NormalizePair(opts.Pair)
	if !ok {
		return fmt.Errorf("invalid pair %q, expected BASE_QUOTE", opts.Pair)
	}

	names := opts.Providers
	if len(names) == 0 {
		names = a.Config.Providers.Compare
	}
	if len(names) == 0 {
		return errors.New("no providers configured for comparison")
	}

	registry := a.buildRegistry()
	aggregator := provider.NewAggregator(registry, a.Logger)
	comparison := aggregator.Compare(ctx, normalized, names)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Provider\tBuy\tSell\tAs Of (UTC)\tStatus")
	for _, result := range comparison.Results {
		status := "ok"
		buy, sell := "-", "-"
		if result.Quote.OK {
			buy = result.Quote.Buy.StringFixed(4)
			sell = result.Quote.Sell.StringFixed(4)
		} else {
			status = result.Quote.Err
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			result.Provider,
			buy,
			sell,
			result.Quote.AsOf.UTC().Format(time.RFC3339),
			status,
		)
	}
	writer.Flush()

	if comparison.Successes == 0 {
		fmt.Fprintln(os.Stdout, "\nno usable data: every provider failed")
		return nil
	}

	fmt.Fprintf(os.Stdout, "\nbest: %s  worst: %s  spread: %s%%\n",
		comparison.Best.StringFixed(4),
		comparison.Worst.StringFixed(4),
		comparison.SpreadPct.StringFixed(3),
	)
	return nil
}
