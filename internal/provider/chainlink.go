package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ChainlinkName identifies the on-chain feed adapter in the registry.
const ChainlinkName = "chainlink"

const aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ChainlinkOptions parameterise the on-chain adapter. Feeds maps normalized
// pairs to aggregator contract addresses.
type ChainlinkOptions struct {
	RPCURL  string
	Feeds   map[string]string
	Timeout time.Duration
}

// ChainlinkSource reads FX price feeds published on-chain.
type ChainlinkSource struct {
	opts   ChainlinkOptions
	logger zerolog.Logger
	feeds  map[string]common.Address

	clientMux sync.Mutex
	client    *ethclient.Client

	decimalsMux sync.Mutex
	decimals    map[common.Address]int32
}

// NewChainlinkSource builds the on-chain feed adapter. Feed entries with
// malformed pair keys are dropped.
func NewChainlinkSource(opts ChainlinkOptions, logger zerolog.Logger) *ChainlinkSource {
	feeds := make(map[string]common.Address, len(opts.Feeds))
	for pair, address := range opts.Feeds {
		normalized, ok := NormalizePair(pair)
		if !ok {
			continue
		}
		feeds[normalized] = common.HexToAddress(address)
	}

	return &ChainlinkSource{
		opts:     opts,
		logger:   logger.With().Str("component", "chainlink_source").Logger(),
		feeds:    feeds,
		decimals: make(map[common.Address]int32),
	}
}

// Name implements Source.
func (c *ChainlinkSource) Name() string { return ChainlinkName }

// FetchRate implements Source.
func (c *ChainlinkSource) FetchRate(ctx context.Context, pair string) Quote {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return FailedQuote(ChainlinkName, "invalid pair format: "+pair)
	}

	rate, updatedAt, err := c.fetch(ctx, normalized)
	if err != nil {
		return FailedQuote(ChainlinkName, err.Error())
	}

	quote := NewQuote(ChainlinkName, rate, rate)
	if !updatedAt.IsZero() {
		quote.AsOf = updatedAt.UTC()
	}
	return quote
}

// SupportsPair implements Source.
func (c *ChainlinkSource) SupportsPair(pair string) bool {
	normalized, ok := NormalizePair(pair)
	if !ok {
		return false
	}
	_, found := c.feeds[normalized]
	return found
}

// ConfigSchema implements Source.
func (c *ChainlinkSource) ConfigSchema() map[string]ConfigField {
	return map[string]ConfigField{
		"rpc_url": {
			Label:       "Ethereum RPC URL",
			Type:        FieldString,
			Required:    true,
			Description: "JSON-RPC endpoint used for feed reads",
		},
		"feeds": {
			Label:       "Feed addresses",
			Type:        FieldString,
			Description: "Pair to aggregator contract address mapping",
		},
	}
}

func (c *ChainlinkSource) fetch(ctx context.Context, pair string) (decimal.Decimal, time.Time, error) {
	if c.opts.RPCURL == "" {
		return decimal.Decimal{}, time.Time{}, errors.New("ethereum rpc url not configured")
	}

	feed, found := c.feeds[pair]
	if !found {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("no on-chain feed configured for %s", pair)
	}

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	feedDecimals, err := c.feedDecimals(ctx, client, feed)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	if len(outputs) != 5 {
		return decimal.Decimal{}, time.Time{}, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return decimal.Decimal{}, time.Time{}, errors.New("failed to decode feed answer")
	}
	if answer.Sign() <= 0 {
		return decimal.Decimal{}, time.Time{}, errors.New("feed returned non-positive answer")
	}

	var updatedAt time.Time
	if ts, ok := outputs[3].(*big.Int); ok && ts.Sign() > 0 {
		updatedAt = time.Unix(ts.Int64(), 0)
	}

	return decimal.NewFromBigInt(answer, -feedDecimals), updatedAt, nil
}

func (c *ChainlinkSource) feedDecimals(ctx context.Context, client *ethclient.Client, feed common.Address) (int32, error) {
	c.decimalsMux.Lock()
	cached, found := c.decimals[feed]
	c.decimalsMux.Unlock()
	if found {
		return cached, nil
	}

	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return 0, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: payload}, nil)
	if err != nil {
		return 0, err
	}

	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, errors.New("unexpected decimals response")
	}
	value, ok := outputs[0].(uint8)
	if !ok {
		return 0, errors.New("failed to decode feed decimals")
	}

	c.decimalsMux.Lock()
	c.decimals[feed] = int32(value)
	c.decimalsMux.Unlock()
	return int32(value), nil
}

func (c *ChainlinkSource) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

var _ Source = (*ChainlinkSource)(nil)
var _ Source = (*MockSource)(nil)
