package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MockName identifies the internal feed adapter in the registry.
const MockName = "mock"

type mockRate struct {
	buy  decimal.Decimal
	sell decimal.Decimal
}

// MockSource simulates an authoritative internal feed from a static in-memory
// table. The artificial latency exists to exercise timeout paths.
type MockSource struct {
	latency time.Duration
	logger  zerolog.Logger

	mu    sync.RWMutex
	rates map[string]mockRate
}

// NewMockSource seeds the internal table with a fixed set of majors.
func NewMockSource(latency time.Duration, logger zerolog.Logger) *MockSource {
	return &MockSource{
		latency: latency,
		logger:  logger.With().Str("component", "mock_source").Logger(),
		rates: map[string]mockRate{
			"USD_EUR": {buy: decimal.NewFromFloat(0.92), sell: decimal.NewFromFloat(0.91)},
			"EUR_USD": {buy: decimal.NewFromFloat(1.09), sell: decimal.NewFromFloat(1.08)},
			"USD_GBP": {buy: decimal.NewFromFloat(0.79), sell: decimal.NewFromFloat(0.78)},
			"GBP_USD": {buy: decimal.NewFromFloat(1.27), sell: decimal.NewFromFloat(1.26)},
			"USD_JPY": {buy: decimal.NewFromFloat(147.20), sell: decimal.NewFromFloat(146.80)},
			"USD_TRY": {buy: decimal.NewFromFloat(41.05), sell: decimal.NewFromFloat(40.85)},
			"EUR_GBP": {buy: decimal.NewFromFloat(0.86), sell: decimal.NewFromFloat(0.85)},
		},
	}
}

// Name implements Source.
func (m *MockSource) Name() string { return MockName }

// FetchRate implements Source.
func (m *MockSource) FetchRate(ctx context.Context, pair string) Quote {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return FailedQuote(MockName, "invalid pair format: "+pair)
	}

	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return FailedQuote(MockName, "request canceled: "+ctx.Err().Error())
		case <-timer.C:
		}
	}

	m.mu.RLock()
	rate, found := m.rates[normalized]
	m.mu.RUnlock()
	if !found {
		return FailedQuote(MockName, "unsupported pair: "+normalized)
	}

	return NewQuote(MockName, rate.buy, rate.sell)
}

// SupportsPair implements Source.
func (m *MockSource) SupportsPair(pair string) bool {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, found := m.rates[normalized]
	return found
}

// ConfigSchema implements Source.
func (m *MockSource) ConfigSchema() map[string]ConfigField {
	return map[string]ConfigField{
		"latency": {
			Label:       "Simulated latency",
			Type:        FieldDuration,
			Description: "Artificial delay applied to every lookup",
		},
	}
}

// SetRate replaces or adds one table entry. Used by simulation paths; the
// caller owns invalidating any runtime cache holding the old value.
func (m *MockSource) SetRate(pair string, buy, sell decimal.Decimal) bool {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return false
	}
	m.mu.Lock()
	m.rates[normalized] = mockRate{buy: buy, sell: sell}
	m.mu.Unlock()
	m.logger.Debug().Str("pair", normalized).Str("buy", buy.String()).Msg("mock rate updated")
	return true
}
