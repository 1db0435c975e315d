package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ExchangeRateName identifies the public REST adapter in the registry.
const ExchangeRateName = "exchangerate"

// upstream timestamps look like "Fri, 27 Mar 2020 00:00:00 +0000".
const upstreamTimeLayout = time.RFC1123Z

// ExchangeRateOptions parameterise the public REST adapter. An empty APIKey
// selects the keyless free tier (bulk /latest/{base} endpoint); a key selects
// the direct pair endpoint.
type ExchangeRateOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// ExchangeRateSource fetches conversion rates from a third-party REST API.
type ExchangeRateSource struct {
	opts    ExchangeRateOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewExchangeRateSource constructs the REST adapter.
func NewExchangeRateSource(opts ExchangeRateOptions, logger zerolog.Logger) *ExchangeRateSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://v6.exchangerate-api.com/v6"
	}

	return &ExchangeRateSource{
		opts:    opts,
		logger:  logger.With().Str("component", "exchangerate_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name implements Source.
func (e *ExchangeRateSource) Name() string { return ExchangeRateName }

// FetchRate implements Source.
func (e *ExchangeRateSource) FetchRate(ctx context.Context, pair string) Quote {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return FailedQuote(ExchangeRateName, "invalid pair format: "+pair)
	}
	base, quote := SplitPair(normalized)

	var endpoint string
	if e.opts.APIKey == "" {
		endpoint = fmt.Sprintf("%s/latest/%s", e.baseURL, base)
	} else {
		endpoint = fmt.Sprintf("%s/%s/pair/%s/%s", e.baseURL, e.opts.APIKey, base, quote)
	}

	payload, err := e.get(ctx, endpoint)
	if err != nil {
		return FailedQuote(ExchangeRateName, err.Error())
	}

	if payload.Result == "error" {
		reason := payload.ErrorType
		if reason == "" {
			reason = "unspecified upstream error"
		}
		return FailedQuote(ExchangeRateName, "upstream error: "+reason)
	}

	var rate decimal.Decimal
	if e.opts.APIKey == "" {
		raw, found := payload.Rates[quote]
		if !found {
			return FailedQuote(ExchangeRateName, "pair not present in bulk response: "+normalized)
		}
		rate, err = decimal.NewFromString(raw.String())
	} else {
		rate, err = decimal.NewFromString(payload.ConversionRate.String())
	}
	if err != nil {
		return FailedQuote(ExchangeRateName, "parse conversion rate: "+err.Error())
	}
	if !rate.IsPositive() {
		return FailedQuote(ExchangeRateName, "upstream returned non-positive rate for "+normalized)
	}

	// The conversion API publishes a single mid rate.
	result := NewQuote(ExchangeRateName, rate, rate)
	if asOf, parseErr := time.Parse(upstreamTimeLayout, payload.TimeLastUpdate); parseErr == nil {
		result.AsOf = asOf.UTC()
	}
	return result
}

// SupportsPair implements Source. The conversion API covers every ISO code
// combination, so support is a pure format check.
func (e *ExchangeRateSource) SupportsPair(pair string) bool {
	_, ok := NormalizePair(pair)
	return ok
}

// ConfigSchema implements Source.
func (e *ExchangeRateSource) ConfigSchema() map[string]ConfigField {
	return map[string]ConfigField{
		"base_url": {
			Label:       "API base URL",
			Type:        FieldString,
			Description: "Root of the conversion API",
		},
		"api_key": {
			Label:       "API key",
			Type:        FieldString,
			Secret:      true,
			Description: "Leave empty for the free tier bulk endpoint",
		},
	}
}

type exchangeRatePayload struct {
	Result         string                 `json:"result"`
	ErrorType      string                 `json:"error-type"`
	ConversionRate json.Number            `json:"conversion_rate"`
	Rates          map[string]json.Number `json:"rates"`
	TimeLastUpdate string                 `json:"time_last_update_utc"`
}

func (e *ExchangeRateSource) get(ctx context.Context, endpoint string) (*exchangeRatePayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(e.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "fxwatch/1.0")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var payload exchangeRatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &payload, nil
}

func parseAPIError(status int, body []byte) error {
	var payload exchangeRatePayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.ErrorType != "" {
		return fmt.Errorf("conversion api error (%d): %s", status, payload.ErrorType)
	}
	if len(body) > 0 {
		return fmt.Errorf("conversion api error (%d): %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("conversion api error (%d)", status)
}

var _ Source = (*ExchangeRateSource)(nil)
