package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestMockFetchKnownPair(t *testing.T) {
	src := NewMockSource(0, noopLogger())

	quote := src.FetchRate(context.Background(), "USD_EUR")
	if !quote.OK {
		t.Fatalf("seeded pair should succeed: %s", quote.Err)
	}
	if quote.Provider != MockName {
		t.Fatalf("provider = %q, want %q", quote.Provider, MockName)
	}
	if !quote.Buy.IsPositive() || !quote.Sell.IsPositive() {
		t.Fatalf("both prices must be positive: buy=%s sell=%s", quote.Buy, quote.Sell)
	}
	if quote.Sell.GreaterThan(quote.Buy) {
		t.Fatalf("seeded sell should not exceed buy: buy=%s sell=%s", quote.Buy, quote.Sell)
	}
}

func TestMockFetchNormalizesInput(t *testing.T) {
	src := NewMockSource(0, noopLogger())
	if quote := src.FetchRate(context.Background(), " usd_eur "); !quote.OK {
		t.Fatalf("lowercase padded input should normalize: %s", quote.Err)
	}
}

func TestMockFetchUnsupportedPair(t *testing.T) {
	src := NewMockSource(0, noopLogger())

	quote := src.FetchRate(context.Background(), "XAU_XAG")
	if quote.OK {
		t.Fatal("unknown pair must fail")
	}
	if quote.Err == "" {
		t.Fatal("failure quote must carry a reason")
	}
	if !quote.Buy.IsZero() || !quote.Sell.IsZero() {
		t.Fatal("failure quote must carry zero prices")
	}
}

func TestMockFetchInvalidFormat(t *testing.T) {
	src := NewMockSource(0, noopLogger())
	if quote := src.FetchRate(context.Background(), "usdeur"); quote.OK {
		t.Fatal("malformed pair must fail, not error out")
	}
}

func TestMockFetchCanceledContext(t *testing.T) {
	src := NewMockSource(time.Second, noopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	quote := src.FetchRate(ctx, "USD_EUR")
	if quote.OK {
		t.Fatal("fetch slower than deadline must fail")
	}
}

func TestMockSetRate(t *testing.T) {
	src := NewMockSource(0, noopLogger())

	if !src.SetRate("usd_chf", decimal.NewFromFloat(0.88), decimal.NewFromFloat(0.87)) {
		t.Fatal("SetRate should accept a well-formed pair")
	}
	if src.SetRate("nope", decimal.NewFromInt(1), decimal.NewFromInt(1)) {
		t.Fatal("SetRate should reject a malformed pair")
	}

	quote := src.FetchRate(context.Background(), "USD_CHF")
	if !quote.OK {
		t.Fatalf("pair added via SetRate should resolve: %s", quote.Err)
	}
	if quote.Buy.String() != "0.88" {
		t.Fatalf("buy = %s, want 0.88", quote.Buy)
	}
	if !src.SupportsPair("USD_CHF") {
		t.Fatal("SupportsPair should see the new entry")
	}
}
