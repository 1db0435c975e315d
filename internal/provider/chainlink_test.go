package provider

import (
	"context"
	"testing"
)

func TestChainlinkMissingRPCURL(t *testing.T) {
	src := NewChainlinkSource(ChainlinkOptions{
		Feeds: map[string]string{"EUR_USD": "0xb49f677943BC038e9857d61E7d053CaA2C1734C1"},
	}, noopLogger())

	quote := src.FetchRate(context.Background(), "EUR_USD")
	if quote.OK {
		t.Fatal("missing rpc url must fail the quote")
	}
	if quote.Err != "ethereum rpc url not configured" {
		t.Fatalf("unexpected reason: %q", quote.Err)
	}
}

func TestChainlinkUnknownFeed(t *testing.T) {
	src := NewChainlinkSource(ChainlinkOptions{
		RPCURL: "http://localhost:8545",
		Feeds:  map[string]string{"EUR_USD": "0xb49f677943BC038e9857d61E7d053CaA2C1734C1"},
	}, noopLogger())

	if quote := src.FetchRate(context.Background(), "USD_JPY"); quote.OK {
		t.Fatal("pair without a feed must fail")
	}
}

func TestChainlinkSupportsPair(t *testing.T) {
	src := NewChainlinkSource(ChainlinkOptions{
		Feeds: map[string]string{
			"eur_usd": "0xb49f677943BC038e9857d61E7d053CaA2C1734C1",
			"bogus":   "0x1111111111111111111111111111111111111111",
		},
	}, noopLogger())

	if !src.SupportsPair("EUR_USD") {
		t.Fatal("configured feed key should normalize and match")
	}
	if src.SupportsPair("bogus") {
		t.Fatal("malformed feed keys must be dropped at construction")
	}
}

func TestChainlinkInvalidPairFormat(t *testing.T) {
	src := NewChainlinkSource(ChainlinkOptions{}, noopLogger())
	if quote := src.FetchRate(context.Background(), "eurusd"); quote.OK {
		t.Fatal("malformed pair must fail")
	}
}
