package provider

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Result pairs a provider name with the quote it produced.
type Result struct {
	Provider string
	Quote    Quote
}

// Comparison is the outcome of fanning one pair out to several providers.
// Summary statistics cover only the successful quotes; Successes is zero when
// no provider produced usable data.
type Comparison struct {
	Pair      string
	Results   []Result
	Best      decimal.Decimal
	Worst     decimal.Decimal
	SpreadPct decimal.Decimal
	Successes int
}

// Aggregator fans a single pair out to multiple providers concurrently and
// reduces the partial results. It never returns an error: a missing
// registration or a failing provider shows up as a failure Result.
type Aggregator struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewAggregator wires a registry into an Aggregator.
func NewAggregator(registry *Registry, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Compare resolves every named provider, issues all fetches concurrently,
// waits for every result, and computes best/worst/spread over the successes.
func (a *Aggregator) Compare(ctx context.Context, pair string, names []string) Comparison {
	normalized, valid := NormalizePair(pair)
	comparison := Comparison{Pair: normalized, Results: make([]Result, len(names))}

	if !valid {
		comparison.Pair = pair
		for i, name := range names {
			comparison.Results[i] = Result{Provider: name, Quote: FailedQuote(name, "invalid pair format: "+pair)}
		}
		return comparison
	}

	var wg sync.WaitGroup
	for i, name := range names {
		runtime, found := a.registry.Resolve(name)
		if !found {
			comparison.Results[i] = Result{Provider: name, Quote: FailedQuote(name, "provider not registered: "+name)}
			continue
		}

		wg.Add(1)
		go func(idx int, providerName string, rt *Runtime) {
			defer wg.Done()
			comparison.Results[idx] = Result{Provider: providerName, Quote: rt.FetchRate(ctx, normalized)}
		}(i, name, runtime)
	}
	wg.Wait()

	a.summarize(&comparison)
	return comparison
}

// BestQuote runs Compare and returns the successful quote with the highest
// buy price, or a failure quote when nothing succeeded.
func (a *Aggregator) BestQuote(ctx context.Context, pair string, names []string) Quote {
	comparison := a.Compare(ctx, pair, names)
	if comparison.Successes == 0 {
		return FailedQuote("aggregator", "no provider produced a quote for "+pair)
	}

	best := Quote{}
	for _, result := range comparison.Results {
		if !result.Quote.OK {
			continue
		}
		if !best.OK || result.Quote.Buy.GreaterThan(best.Buy) {
			best = result.Quote
		}
	}
	return best
}

func (a *Aggregator) summarize(comparison *Comparison) {
	for _, result := range comparison.Results {
		if !result.Quote.OK {
			continue
		}
		buy := result.Quote.Buy
		if comparison.Successes == 0 {
			comparison.Best = buy
			comparison.Worst = buy
		} else {
			if buy.GreaterThan(comparison.Best) {
				comparison.Best = buy
			}
			if buy.LessThan(comparison.Worst) {
				comparison.Worst = buy
			}
		}
		comparison.Successes++
	}

	if comparison.Successes >= 2 && comparison.Worst.IsPositive() {
		comparison.SpreadPct = comparison.Best.Sub(comparison.Worst).
			Div(comparison.Worst).
			Mul(decimal.NewFromInt(100))
	}

	a.logger.Debug().
		Str("pair", comparison.Pair).
		Int("successes", comparison.Successes).
		Str("spread_pct", comparison.SpreadPct.String()).
		Msg("comparison computed")
}
