// Package oracle reads spot prices from on-chain Chainlink-style aggregator
// feeds, one feed per supported asset.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// aggregatorABIJSON is the minimal read surface of a price feed aggregator.
const aggregatorABIJSON = `[
  {"name":"latestRoundData","type":"function","stateMutability":"view","inputs":[],
   "outputs":[{"name":"roundId","type":"uint80"},{"name":"answer","type":"int256"},
    {"name":"startedAt","type":"uint256"},{"name":"updatedAt","type":"uint256"},
    {"name":"answeredInRound","type":"uint80"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint8"}]}
]`

// PriceSource provides a spot price for an asset symbol. Implemented by the
// on-chain Client; faked in tests.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	Symbols() []string
}

// Client reads prices from one aggregator feed per configured symbol.
type Client struct {
	client *ethclient.Client
	abi    abi.ABI
	feeds  map[string]common.Address

	// Cached per-feed decimals; populated lazily on first read.
	mu       sync.Mutex
	decimals map[string]uint8
}

// NewClient dials the RPC endpoint and prepares a reader for the given
// symbol -> feed address map.
func NewClient(rpcURL string, feeds map[string]string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}

	addrs := make(map[string]common.Address, len(feeds))
	for symbol, addr := range feeds {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid feed address %q for %s", addr, symbol)
		}
		addrs[symbol] = common.HexToAddress(addr)
	}

	return &Client{
		client:   client,
		abi:      parsedABI,
		feeds:    addrs,
		decimals: make(map[string]uint8),
	}, nil
}

// Symbols returns the configured asset symbols.
func (c *Client) Symbols() []string {
	symbols := make([]string, 0, len(c.feeds))
	for s := range c.feeds {
		symbols = append(symbols, s)
	}
	return symbols
}

// GetPrice fetches the latest answer for a symbol's feed and scales it by the
// feed's decimals.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	feed, ok := c.feeds[symbol]
	if !ok {
		return 0, fmt.Errorf("no price feed configured for %s", symbol)
	}

	dec, err := c.feedDecimals(ctx, symbol, feed)
	if err != nil {
		return 0, err
	}

	out, err := c.call(ctx, feed, "latestRoundData")
	if err != nil {
		return 0, fmt.Errorf("failed to read price for %s: %w", symbol, err)
	}
	if len(out) < 5 {
		return 0, fmt.Errorf("unexpected latestRoundData output for %s: got %d values", symbol, len(out))
	}

	answer, ok := out[1].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("failed to extract answer for %s", symbol)
	}
	if answer.Sign() <= 0 {
		return 0, fmt.Errorf("non-positive oracle answer for %s", symbol)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)
	price, _ := new(big.Rat).SetFrac(answer, scale).Float64()
	return price, nil
}

func (c *Client) feedDecimals(ctx context.Context, symbol string, feed common.Address) (uint8, error) {
	c.mu.Lock()
	dec, ok := c.decimals[symbol]
	c.mu.Unlock()
	if ok {
		return dec, nil
	}

	out, err := c.call(ctx, feed, "decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to read feed decimals for %s: %w", symbol, err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("empty decimals output for %s", symbol)
	}
	dec, ok = out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("failed to extract feed decimals for %s", symbol)
	}

	c.mu.Lock()
	c.decimals[symbol] = dec
	c.mu.Unlock()
	return dec, nil
}

// call performs a read-only contract call and unpacks the raw return values.
func (c *Client) call(ctx context.Context, to common.Address, methodName string) ([]interface{}, error) {
	method, exists := c.abi.Methods[methodName]
	if !exists {
		return nil, fmt.Errorf("method %s not found in ABI", methodName)
	}

	msg := ethereum.CallMsg{
		To:   &to,
		Data: method.ID,
	}

	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}

	return method.Outputs.UnpackValues(result)
}

// Close closes the RPC connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
