package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fxwatch/internal/metrics"
)

// HealthCheckPair is the canonical pair probed by HealthCheck.
const HealthCheckPair = "USD_EUR"

// Settings is the mutable runtime configuration of one provider instance.
type Settings struct {
	Enabled        bool
	CacheTTL       time.Duration
	MaxRetries     int
	RequestTimeout time.Duration
	RetryBackoff   time.Duration
}

// DefaultSettings returns the stock provider configuration.
func DefaultSettings() Settings {
	return Settings{
		Enabled:        true,
		CacheTTL:       5 * time.Minute,
		MaxRetries:     3,
		RequestTimeout: 10 * time.Second,
		RetryBackoff:   time.Second,
	}
}

type cacheEntry struct {
	quote    Quote
	storedAt time.Time
}

// Runtime wraps a Source with a per-pair TTL cache, bounded retry with
// exponential backoff, and a per-attempt timeout. FetchRate never returns an
// error for any input; callers branch on Quote.OK.
type Runtime struct {
	source Source
	logger zerolog.Logger

	mu       sync.Mutex
	settings Settings
	cache    map[string]cacheEntry
}

// NewRuntime wires a Source into a Runtime, normalizing out-of-range settings
// back to their defaults.
func NewRuntime(source Source, settings Settings, logger zerolog.Logger) *Runtime {
	defaults := DefaultSettings()
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = defaults.CacheTTL
	}
	if settings.MaxRetries < 1 {
		settings.MaxRetries = defaults.MaxRetries
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = defaults.RequestTimeout
	}
	if settings.RetryBackoff <= 0 {
		settings.RetryBackoff = defaults.RetryBackoff
	}

	return &Runtime{
		source:   source,
		logger:   logger.With().Str("component", "provider_runtime").Str("provider", source.Name()).Logger(),
		settings: settings,
		cache:    make(map[string]cacheEntry),
	}
}

// Name returns the wrapped source's registry name.
func (r *Runtime) Name() string { return r.source.Name() }

// SupportsPair delegates to the wrapped source.
func (r *Runtime) SupportsPair(pair string) bool { return r.source.SupportsPair(pair) }

// ConfigSchema delegates to the wrapped source.
func (r *Runtime) ConfigSchema() map[string]ConfigField { return r.source.ConfigSchema() }

// Settings returns a copy of the current configuration.
func (r *Runtime) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// SetEnabled toggles the provider at runtime.
func (r *Runtime) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.settings.Enabled = enabled
	r.mu.Unlock()
}

// FetchRate resolves a quote for pair, serving from cache when the stored
// entry is younger than CacheTTL and retrying the source otherwise. Only
// successful quotes are ever cached.
func (r *Runtime) FetchRate(ctx context.Context, pair string) Quote {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return FailedQuote(r.source.Name(), "invalid pair format: "+pair)
	}

	settings := r.Settings()
	if !settings.Enabled {
		return FailedQuote(r.source.Name(), "provider disabled")
	}

	if quote, hit := r.cached(normalized, settings.CacheTTL); hit {
		metrics.RateCacheHitsTotal.WithLabelValues(r.source.Name()).Inc()
		return quote
	}

	start := time.Now()
	quote := r.fetchWithRetry(ctx, normalized, settings)
	metrics.RateFetchDuration.WithLabelValues(r.source.Name()).Observe(time.Since(start).Seconds())

	if quote.OK {
		metrics.RateFetchesTotal.WithLabelValues(r.source.Name(), "ok").Inc()
		r.store(normalized, quote)
	} else {
		metrics.RateFetchesTotal.WithLabelValues(r.source.Name(), "error").Inc()
	}
	return quote
}

func (r *Runtime) fetchWithRetry(ctx context.Context, pair string, settings Settings) Quote {
	var last Quote
	for attempt := 0; attempt < settings.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, settings.RequestTimeout)
		quote := r.source.FetchRate(attemptCtx, pair)
		cancel()

		if quote.OK {
			return quote
		}
		last = quote
		r.logger.Debug().
			Str("pair", pair).
			Int("attempt", attempt+1).
			Str("error", quote.Err).
			Msg("fetch attempt failed")

		if ctx.Err() != nil {
			break
		}
		if attempt < settings.MaxRetries-1 {
			if !r.wait(ctx, settings.RetryBackoff<<attempt) {
				break
			}
		}
	}
	if last.Err == "" {
		last = FailedQuote(r.source.Name(), "all fetch attempts failed")
	}
	return last
}

func (r *Runtime) wait(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runtime) cached(pair string, ttl time.Duration) (Quote, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, found := r.cache[pair]
	if !found || time.Since(entry.storedAt) >= ttl {
		return Quote{}, false
	}
	return entry.quote, true
}

func (r *Runtime) store(pair string, quote Quote) {
	r.mu.Lock()
	r.cache[pair] = cacheEntry{quote: quote, storedAt: time.Now()}
	r.mu.Unlock()
}

// Invalidate drops the cached entry for pair, if any. Callers mutating the
// underlying source (simulation paths) use this to force a re-fetch.
func (r *Runtime) Invalidate(pair string) {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.cache, normalized)
	r.mu.Unlock()
}

// HealthCheck probes the canonical pair and reports whether the provider
// produced a usable quote.
func (r *Runtime) HealthCheck(ctx context.Context) bool {
	return r.FetchRate(ctx, HealthCheckPair).OK
}
