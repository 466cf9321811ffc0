package recommend

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/nawasena/options-api/internal/explain"
	"github.com/nawasena/options-api/internal/signer"
	"github.com/nawasena/options-api/internal/types"
)

type fakePrices struct {
	prices map[string]float64
	errors map[string]error
}

func (f *fakePrices) GetPrice(_ context.Context, symbol string) (float64, error) {
	if err, ok := f.errors[symbol]; ok {
		return 0, err
	}
	return f.prices[symbol], nil
}

func (f *fakePrices) Symbols() []string {
	symbols := make([]string, 0, len(f.prices)+len(f.errors))
	for s := range f.prices {
		symbols = append(symbols, s)
	}
	for s := range f.errors {
		symbols = append(symbols, s)
	}
	return symbols
}

type fakeSigner struct {
	err   error
	calls int
}

func (f *fakeSigner) SignOrder(in signer.OrderInput) (*types.SignedOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	return &types.SignedOrder{
		Nonce:     big.NewInt(int64(f.calls)),
		OrderHash: "0xhash",
		Signature: "0xsig",
	}, nil
}

func moderateProfile() *types.UserProfile {
	return &types.UserProfile{
		Goal:        types.GoalCaptureUpside,
		RiskComfort: types.RiskModerate,
		Confidence:  types.ConfidenceMid,
		Amount:      1000,
	}
}

func TestGenerateRecommendations(t *testing.T) {
	prices := &fakePrices{prices: map[string]float64{"ETH": 2000, "BTC": 60000}}
	svc := NewService(prices, &fakeSigner{}, explain.NewTemplateGenerator())

	recs := svc.GenerateRecommendations(context.Background(), moderateProfile())
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}

	// Sorted by symbol: BTC first
	eth := recs[1]
	if eth.Asset != "ETH" {
		t.Fatalf("expected ETH second, got %s", eth.Asset)
	}
	if eth.OptionType != types.OptionCall {
		t.Errorf("CAPTURE_UPSIDE should produce CALL, got %s", eth.OptionType)
	}
	if eth.Strike != 2200 {
		t.Errorf("expected moderate CALL strike 2200, got %.2f", eth.Strike)
	}
	// ATM-adjacent 14-day premium is floored at 1% of spot
	if eth.Premium != 20 {
		t.Errorf("expected floor premium 20, got %.4f", eth.Premium)
	}
	if eth.MaxPositions != 50 {
		t.Errorf("expected 50 max positions for amount 1000, got %d", eth.MaxPositions)
	}
	if eth.Metadata.Breakeven != 2220 {
		t.Errorf("expected breakeven 2220, got %.2f", eth.Metadata.Breakeven)
	}
	if eth.Metadata.MaxProfit != 200 || eth.Metadata.MaxLoss != 20 {
		t.Errorf("unexpected profit/loss caps: %+v", eth.Metadata)
	}
	if eth.Metadata.Explanation == "" {
		t.Error("expected explanation text")
	}
	if eth.SignedOrder == nil {
		t.Error("expected signed order attached")
	}
}

func TestGenerateRecommendations_PutBreakeven(t *testing.T) {
	prices := &fakePrices{prices: map[string]float64{"ETH": 2000}}
	svc := NewService(prices, &fakeSigner{}, explain.NewTemplateGenerator())

	profile := moderateProfile()
	profile.Goal = types.GoalProtectAsset
	profile.RiskComfort = types.RiskConservative

	recs := svc.GenerateRecommendations(context.Background(), profile)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0]
	if rec.OptionType != types.OptionPut {
		t.Fatalf("PROTECT_ASSET should produce PUT, got %s", rec.OptionType)
	}
	if rec.Strike != 1900 {
		t.Errorf("expected conservative PUT strike 1900, got %.2f", rec.Strike)
	}
	want := rec.Strike - rec.Premium
	if rec.Metadata.Breakeven != want {
		t.Errorf("PUT breakeven: expected %.2f, got %.2f", want, rec.Metadata.Breakeven)
	}
}

func TestGenerateRecommendations_PartialFailure(t *testing.T) {
	prices := &fakePrices{
		prices: map[string]float64{"ETH": 2000},
		errors: map[string]error{"BTC": errors.New("oracle read failed")},
	}
	svc := NewService(prices, &fakeSigner{}, explain.NewTemplateGenerator())

	recs := svc.GenerateRecommendations(context.Background(), moderateProfile())
	if len(recs) != 1 {
		t.Fatalf("expected the surviving asset, got %d recommendations", len(recs))
	}
	if recs[0].Asset != "ETH" {
		t.Errorf("expected ETH, got %s", recs[0].Asset)
	}
}

func TestGenerateRecommendations_TotalFailure(t *testing.T) {
	prices := &fakePrices{
		errors: map[string]error{
			"ETH": errors.New("oracle read failed"),
			"BTC": errors.New("oracle read failed"),
		},
	}
	svc := NewService(prices, &fakeSigner{}, explain.NewTemplateGenerator())

	recs := svc.GenerateRecommendations(context.Background(), moderateProfile())
	if recs == nil {
		t.Fatal("expected empty list, not nil")
	}
	if len(recs) != 0 {
		t.Errorf("expected empty list, got %d", len(recs))
	}
}

func TestGenerateRecommendations_SignerFailureSkipsAsset(t *testing.T) {
	prices := &fakePrices{prices: map[string]float64{"ETH": 2000}}
	svc := NewService(prices, &fakeSigner{err: errors.New("signer unavailable")}, explain.NewTemplateGenerator())

	recs := svc.GenerateRecommendations(context.Background(), moderateProfile())
	if len(recs) != 0 {
		t.Errorf("expected no recommendations when signing fails, got %d", len(recs))
	}
}
