package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the normalized result of a single rate lookup. Either both prices
// are positive and OK is true, or both are zero and OK is false with Err set;
// a quote is never partially valid.
type Quote struct {
	Provider string
	Buy      decimal.Decimal
	Sell     decimal.Decimal
	AsOf     time.Time
	OK       bool
	Err      string
}

// NewQuote builds a successful quote stamped with the current time.
func NewQuote(providerName string, buy, sell decimal.Decimal) Quote {
	return Quote{
		Provider: providerName,
		Buy:      buy,
		Sell:     sell,
		AsOf:     time.Now().UTC(),
		OK:       true,
	}
}

// FailedQuote builds a failure quote carrying the reason.
func FailedQuote(providerName, reason string) Quote {
	return Quote{
		Provider: providerName,
		AsOf:     time.Now().UTC(),
		Err:      reason,
	}
}
