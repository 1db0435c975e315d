package provider

import (
	"regexp"
	"strings"
)

// pairPattern is the wire contract for pair identifiers: BASE_QUOTE with
// uppercase 3-letter ISO codes, e.g. USD_EUR.
var pairPattern = regexp.MustCompile(`^[A-Z]{3}_[A-Z]{3}$`)

// NormalizePair trims and uppercases a pair string and reports whether the
// result matches the BASE_QUOTE contract.
func NormalizePair(pair string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(pair))
	if !pairPattern.MatchString(normalized) {
		return "", false
	}
	return normalized, true
}

// ValidPair reports whether pair matches the BASE_QUOTE contract exactly.
func ValidPair(pair string) bool {
	return pairPattern.MatchString(pair)
}

// SplitPair returns the base and quote legs of a normalized pair.
func SplitPair(pair string) (base, quote string) {
	base, quote, _ = strings.Cut(pair, "_")
	return base, quote
}

// DisplayPair renders a normalized pair for human-facing messages, USD/EUR.
func DisplayPair(pair string) string {
	return strings.ReplaceAll(pair, "_", "/")
}
