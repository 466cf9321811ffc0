// Package chain wraps the on-chain position registry and settlement
// contracts behind a single RPC client. Positions are owned by the
// contracts; this package only reads them and triggers settlement.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/nawasena/options-api/internal/types"
)

const registryABIJSON = `[
  {"name":"getPosition","type":"function","stateMutability":"view",
   "inputs":[{"name":"id","type":"uint256"}],
   "outputs":[
     {"name":"user","type":"address"},
     {"name":"underlyingAsset","type":"string"},
     {"name":"isCall","type":"bool"},
     {"name":"strikes","type":"uint256[]"},
     {"name":"expiry","type":"uint256"},
     {"name":"createdAt","type":"uint256"},
     {"name":"status","type":"uint8"},
     {"name":"premiumPaid","type":"uint256"},
     {"name":"settlementPrice","type":"uint256"},
     {"name":"payout","type":"uint256"},
     {"name":"claimable","type":"bool"}]}
]`

const settlementABIJSON = `[
  {"name":"settleBatch","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"positionIds","type":"uint256[]"}],"outputs":[]}
]`

// Client talks to the position registry and settlement contracts.
type Client struct {
	client         *ethclient.Client
	chainID        *big.Int
	registryAddr   common.Address
	settlementAddr common.Address
	registryABI    abi.ABI
	settlementABI  abi.ABI
	settlementC    *bind.BoundContract

	key    *ecdsa.PrivateKey
	sender common.Address
}

// NewClient dials the RPC endpoint and prepares both contract bindings. The
// signing key is required because settlement submits transactions; a missing
// key is a fatal configuration error.
func NewClient(rpcURL string, chainID int64, registryAddr, settlementAddr, privateKeyHex string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	if privateKeyHex == "" {
		return nil, fmt.Errorf("settlement signing key not configured")
	}

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement signing key: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	registryABI, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	settlementABI, err := abi.JSON(strings.NewReader(settlementABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement ABI: %w", err)
	}

	settleAddr := common.HexToAddress(settlementAddr)

	return &Client{
		client:         client,
		chainID:        big.NewInt(chainID),
		registryAddr:   common.HexToAddress(registryAddr),
		settlementAddr: settleAddr,
		registryABI:    registryABI,
		settlementABI:  settlementABI,
		settlementC:    bind.NewBoundContract(settleAddr, settlementABI, client, client, client),
		key:            key,
		sender:         crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// GetPosition reads a single position from the registry. A position whose
// user is the zero address has never been allocated.
func (c *Client) GetPosition(ctx context.Context, id uint64) (*types.Position, error) {
	method := c.registryABI.Methods["getPosition"]

	input, err := method.Inputs.Pack(new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to pack position id %d: %w", id, err)
	}

	msg := ethereum.CallMsg{
		To:   &c.registryAddr,
		Data: append(method.ID, input...),
	}

	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read position %d: %w", id, err)
	}

	out, err := method.Outputs.UnpackValues(result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack position %d: %w", id, err)
	}
	if len(out) < 11 {
		return nil, fmt.Errorf("unexpected getPosition output for %d: got %d values", id, len(out))
	}

	pos := &types.Position{ID: id}
	var ok bool
	if pos.User, ok = out[0].(common.Address); !ok {
		return nil, fmt.Errorf("failed to extract user for position %d", id)
	}
	pos.UnderlyingAsset, _ = out[1].(string)
	pos.IsCall, _ = out[2].(bool)
	pos.Strikes, _ = out[3].([]*big.Int)

	expiry, ok := out[4].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to extract expiry for position %d", id)
	}
	pos.Expiry = expiry.Int64()

	if createdAt, ok := out[5].(*big.Int); ok {
		pos.CreatedAt = createdAt.Int64()
	}

	status, ok := out[6].(uint8)
	if !ok {
		return nil, fmt.Errorf("failed to extract status for position %d", id)
	}
	pos.Status = types.PositionStatus(status)

	pos.PremiumPaid, _ = out[7].(*big.Int)
	pos.SettlementPrice, _ = out[8].(*big.Int)
	pos.Payout, _ = out[9].(*big.Int)
	pos.Claimable, _ = out[10].(bool)

	return pos, nil
}

// ScanPositions enumerates positions by incrementing IDs from 0 until a read
// fails, a zero-address user appears, or the scan cap is reached. The cap
// bounds cost per invocation.
func (c *Client) ScanPositions(ctx context.Context, limit uint64) ([]types.Position, error) {
	var positions []types.Position
	for id := uint64(0); id < limit; id++ {
		pos, err := c.GetPosition(ctx, id)
		if err != nil {
			// A failed read past the first ID is the end of the registry.
			// On ID 0 a revert means an empty registry; only transport
			// errors surface.
			if id == 0 && !isRevertError(err) {
				return nil, err
			}
			break
		}
		if pos.User == (common.Address{}) {
			break
		}
		positions = append(positions, *pos)
	}
	return positions, nil
}

// SimulateSettle dry-runs settleBatch via eth_call from the keeper address,
// catching reverts before any gas is spent.
func (c *Client) SimulateSettle(ctx context.Context, positionIDs []uint64) error {
	data, err := c.packSettleBatch(positionIDs)
	if err != nil {
		return err
	}

	msg := ethereum.CallMsg{
		From: c.sender,
		To:   &c.settlementAddr,
		Data: data,
	}

	if _, err := c.client.CallContract(ctx, msg, nil); err != nil {
		return fmt.Errorf("settlement simulation reverted: %w", err)
	}
	return nil
}

// SettleBatch submits the settlement transaction and waits for it to mine.
// Returns the transaction hash.
func (c *Client) SettleBatch(ctx context.Context, positionIDs []uint64) (string, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx

	ids := make([]*big.Int, len(positionIDs))
	for i, id := range positionIDs {
		ids[i] = new(big.Int).SetUint64(id)
	}

	tx, err := c.settlementC.Transact(opts, "settleBatch", ids)
	if err != nil {
		return "", fmt.Errorf("failed to submit settlement: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("failed waiting for settlement confirmation: %w", err)
	}
	if receipt.Status != 1 {
		return tx.Hash().Hex(), fmt.Errorf("settlement transaction %s reverted", tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

func (c *Client) packSettleBatch(positionIDs []uint64) ([]byte, error) {
	method := c.settlementABI.Methods["settleBatch"]

	ids := make([]*big.Int, len(positionIDs))
	for i, id := range positionIDs {
		ids[i] = new(big.Int).SetUint64(id)
	}

	input, err := method.Inputs.Pack(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to pack settlement batch: %w", err)
	}
	return append(method.ID, input...), nil
}

// isRevertError reports whether a call failed inside the EVM rather than in
// transport. Reverts carry return data through rpc.DataError; nodes that
// strip it still put "execution reverted" in the message.
func isRevertError(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

// Sender returns the keeper's transaction-signing address.
func (c *Client) Sender() common.Address {
	return c.sender
}

// Close closes the RPC connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
