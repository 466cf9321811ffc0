package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nawasena/options-api/internal/types"
)

// fakeChain backs both keeper interfaces with an in-memory registry whose
// positions flip to SETTLED when a batch lands, mirroring the contract.
type fakeChain struct {
	positions   []types.Position
	scanErr     error
	simulateErr error
	settleErr   error
	settleCalls [][]uint64
}

func (f *fakeChain) ScanPositions(_ context.Context, limit uint64) ([]types.Position, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := f.positions
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	cp := make([]types.Position, len(out))
	copy(cp, out)
	return cp, nil
}

func (f *fakeChain) SimulateSettle(context.Context, []uint64) error {
	return f.simulateErr
}

func (f *fakeChain) SettleBatch(_ context.Context, ids []uint64) (string, error) {
	if f.settleErr != nil {
		return "", f.settleErr
	}
	f.settleCalls = append(f.settleCalls, ids)
	for _, id := range ids {
		for i := range f.positions {
			if f.positions[i].ID == id {
				f.positions[i].Status = types.PositionSettled
			}
		}
	}
	return "0xabc123", nil
}

func expiredActive(id uint64, expiry int64) types.Position {
	return types.Position{ID: id, Expiry: expiry, Status: types.PositionActive}
}

func TestRun_SettlesExpiredBatch(t *testing.T) {
	now := time.Now().Unix()
	chain := &fakeChain{positions: []types.Position{
		expiredActive(0, now-100),
		{ID: 1, Expiry: now + 3600, Status: types.PositionActive}, // not expired
		expiredActive(2, now-50),
		{ID: 3, Expiry: now - 200, Status: types.PositionSettled}, // already settled
	}}

	svc := NewService(chain, chain, 10, 1000)
	result := svc.Run(context.Background())

	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Settled != 2 {
		t.Errorf("expected 2 settled, got %d", result.Settled)
	}
	if result.TxHash == "" {
		t.Error("expected tx hash on successful settlement")
	}
	if len(chain.settleCalls) != 1 {
		t.Fatalf("expected one batch, got %d", len(chain.settleCalls))
	}
	got := chain.settleCalls[0]
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("unexpected batch ids: %v", got)
	}
}

func TestRun_Idempotent(t *testing.T) {
	now := time.Now().Unix()
	chain := &fakeChain{positions: []types.Position{
		expiredActive(0, now-100),
		expiredActive(1, now-100),
	}}

	svc := NewService(chain, chain, 10, 1000)

	first := svc.Run(context.Background())
	if first.Settled != 2 {
		t.Fatalf("first run: expected 2 settled, got %d", first.Settled)
	}

	// No new expirations between runs: the second pass finds nothing
	second := svc.Run(context.Background())
	if !second.Success {
		t.Fatalf("second run failed: %s", second.Error)
	}
	if second.Settled != 0 {
		t.Errorf("second run: expected 0 settled, got %d", second.Settled)
	}
	if len(chain.settleCalls) != 1 {
		t.Errorf("expected no second settlement call, got %d", len(chain.settleCalls))
	}
}

func TestRun_BatchCap(t *testing.T) {
	now := time.Now().Unix()
	chain := &fakeChain{}
	for i := uint64(0); i < 25; i++ {
		chain.positions = append(chain.positions, expiredActive(i, now-int64(i)-1))
	}

	svc := NewService(chain, chain, 10, 1000)
	result := svc.Run(context.Background())

	if result.Settled != 10 {
		t.Errorf("expected batch capped at 10, got %d", result.Settled)
	}
	// Oldest-discovered (lowest IDs) settle first
	if chain.settleCalls[0][0] != 0 || chain.settleCalls[0][9] != 9 {
		t.Errorf("unexpected batch ordering: %v", chain.settleCalls[0])
	}
}

func TestRun_ScanFailure(t *testing.T) {
	chain := &fakeChain{scanErr: errors.New("rpc unavailable")}
	svc := NewService(chain, chain, 10, 1000)

	result := svc.Run(context.Background())
	if result.Success {
		t.Error("expected failure result")
	}
	if result.Settled != 0 {
		t.Errorf("expected 0 settled, got %d", result.Settled)
	}
	if result.Error == "" {
		t.Error("expected error message in result")
	}
}

func TestRun_SimulationRevert(t *testing.T) {
	now := time.Now().Unix()
	chain := &fakeChain{
		positions:   []types.Position{expiredActive(0, now-100)},
		simulateErr: errors.New("execution reverted"),
	}
	svc := NewService(chain, chain, 10, 1000)

	result := svc.Run(context.Background())
	if result.Success {
		t.Error("expected failure on simulation revert")
	}
	if len(chain.settleCalls) != 0 {
		t.Error("must not submit after a failed simulation")
	}
}

func TestRun_NoPositions(t *testing.T) {
	chain := &fakeChain{}
	svc := NewService(chain, chain, 10, 1000)

	result := svc.Run(context.Background())
	if !result.Success || result.Settled != 0 {
		t.Errorf("expected clean empty run, got %+v", result)
	}
}
