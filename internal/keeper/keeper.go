// Package keeper periodically reconciles on-chain option positions against
// wall-clock expiry and settles expired ones in batches. The keeper holds no
// state between runs; every invocation re-derives eligibility from chain
// state, which makes re-invocation after any failure safe.
package keeper

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nawasena/options-api/internal/types"
)

// PositionSource enumerates positions from the on-chain registry.
type PositionSource interface {
	ScanPositions(ctx context.Context, limit uint64) ([]types.Position, error)
}

// Settler submits settlement for a batch of position IDs. Simulation runs
// first so a revert is caught before gas is spent.
type Settler interface {
	SimulateSettle(ctx context.Context, positionIDs []uint64) error
	SettleBatch(ctx context.Context, positionIDs []uint64) (string, error)
}

// Result is the structured outcome of one keeper run. Errors never escape
// the keeper boundary; they are carried here instead.
type Result struct {
	Success   bool      `json:"success"`
	Settled   int       `json:"settled"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Service runs settlement passes over the registry.
type Service struct {
	positions PositionSource
	settler   Settler
	batchSize int
	scanLimit uint64
	now       func() time.Time
}

// NewService builds a keeper over the given chain accessors.
func NewService(positions PositionSource, settler Settler, batchSize int, scanLimit uint64) *Service {
	return &Service{
		positions: positions,
		settler:   settler,
		batchSize: batchSize,
		scanLimit: scanLimit,
		now:       time.Now,
	}
}

// Run executes a single settlement pass: scan, filter expired actives, take
// the oldest-discovered batch, simulate, submit, confirm.
func (s *Service) Run(ctx context.Context) Result {
	logger := log.With().Str("component", "settlement_keeper").Logger()
	started := s.now()

	positions, err := s.positions.ScanPositions(ctx, s.scanLimit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to scan positions")
		return Result{Success: false, Error: err.Error(), Timestamp: started}
	}

	now := s.now().Unix()
	var expired []types.Position
	for _, pos := range positions {
		if pos.Status == types.PositionActive && pos.Expiry <= now {
			expired = append(expired, pos)
		}
	}

	if len(expired) == 0 {
		logger.Info().Int("scanned", len(positions)).Msg("no expired positions to settle")
		return Result{Success: true, Settled: 0, Timestamp: started}
	}

	// Oldest first
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	if len(expired) > s.batchSize {
		expired = expired[:s.batchSize]
	}

	ids := make([]uint64, len(expired))
	for i, pos := range expired {
		ids[i] = pos.ID
	}

	logger.Info().
		Int("scanned", len(positions)).
		Int("batch", len(ids)).
		Msg("settling expired positions")

	if err := s.settler.SimulateSettle(ctx, ids); err != nil {
		logger.Error().Err(err).Uints64("position_ids", ids).Msg("settlement simulation failed")
		return Result{Success: false, Error: err.Error(), Timestamp: started}
	}

	txHash, err := s.settler.SettleBatch(ctx, ids)
	if err != nil {
		logger.Error().Err(err).Uints64("position_ids", ids).Msg("settlement submission failed")
		return Result{Success: false, TxHash: txHash, Error: err.Error(), Timestamp: started}
	}

	logger.Info().
		Int("settled", len(ids)).
		Str("tx_hash", txHash).
		Msg("settlement batch confirmed")

	return Result{Success: true, Settled: len(ids), TxHash: txHash, Timestamp: started}
}
