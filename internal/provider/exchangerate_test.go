package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExchangeRateFreeTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/USD" {
			t.Fatalf("free tier should use bulk endpoint, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":               "success",
			"time_last_update_utc": "Fri, 27 Mar 2020 00:00:00 +0000",
			"rates":                map[string]float64{"EUR": 0.9176, "GBP": 0.81},
		})
	}))
	defer srv.Close()

	src := NewExchangeRateSource(ExchangeRateOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	quote := src.FetchRate(context.Background(), "USD_EUR")
	if !quote.OK {
		t.Fatalf("fetch should succeed: %s", quote.Err)
	}
	if quote.Buy.String() != "0.9176" {
		t.Fatalf("buy = %s, want 0.9176", quote.Buy)
	}
	if !quote.Buy.Equal(quote.Sell) {
		t.Fatal("mid-rate API should yield buy == sell")
	}
	if quote.AsOf.Year() != 2020 {
		t.Fatalf("AsOf should come from the upstream timestamp, got %s", quote.AsOf)
	}
}

func TestExchangeRatePaidTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/secret/pair/USD/TRY" {
			t.Fatalf("keyed request should use pair endpoint, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":          "success",
			"conversion_rate": 41.0312,
		})
	}))
	defer srv.Close()

	src := NewExchangeRateSource(ExchangeRateOptions{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second}, noopLogger())

	quote := src.FetchRate(context.Background(), "USD_TRY")
	if !quote.OK {
		t.Fatalf("fetch should succeed: %s", quote.Err)
	}
	if quote.Buy.String() != "41.0312" {
		t.Fatalf("buy = %s, want 41.0312", quote.Buy)
	}
}

func TestExchangeRateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":     "error",
			"error-type": "unsupported-code",
		})
	}))
	defer srv.Close()

	src := NewExchangeRateSource(ExchangeRateOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	quote := src.FetchRate(context.Background(), "USD_EUR")
	if quote.OK {
		t.Fatal("result=error must fail the quote")
	}
	if quote.Err != "upstream error: unsupported-code" {
		t.Fatalf("unexpected reason: %q", quote.Err)
	}
}

func TestExchangeRateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error-type": "invalid-key"})
	}))
	defer srv.Close()

	src := NewExchangeRateSource(ExchangeRateOptions{BaseURL: srv.URL, APIKey: "bad", Timeout: time.Second}, noopLogger())

	quote := src.FetchRate(context.Background(), "USD_EUR")
	if quote.OK {
		t.Fatal("HTTP 403 must fail the quote")
	}
}

func TestExchangeRateMissingPairInBulk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": "success",
			"rates":  map[string]float64{"GBP": 0.81},
		})
	}))
	defer srv.Close()

	src := NewExchangeRateSource(ExchangeRateOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	if quote := src.FetchRate(context.Background(), "USD_EUR"); quote.OK {
		t.Fatal("missing quote leg must fail")
	}
}

func TestExchangeRateNonPositiveRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": "success",
			"rates":  map[string]float64{"EUR": 0},
		})
	}))
	defer srv.Close()

	src := NewExchangeRateSource(ExchangeRateOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	if quote := src.FetchRate(context.Background(), "USD_EUR"); quote.OK {
		t.Fatal("zero rate must fail")
	}
}
