package strategy

import (
	"time"

	"github.com/nawasena/options-api/internal/types"
)

// goalToType maps an investment goal to the option side that serves it.
// EARN_SAFELY sells downside protection, so it also resolves to PUT.
var goalToType = map[types.Goal]types.OptionType{
	types.GoalProtectAsset:  types.OptionPut,
	types.GoalCaptureUpside: types.OptionCall,
	types.GoalEarnSafely:    types.OptionPut,
}

// strikeOffsets defines how far out-of-the-money a strike sits per risk level.
var strikeOffsets = map[types.RiskComfort]float64{
	types.RiskConservative: 0.05,
	types.RiskModerate:     0.10,
	types.RiskAggressive:   0.20,
}

// expiryDays defines the holding window per confidence level. Lower
// confidence means a longer runway.
var expiryDays = map[types.Confidence]int{
	types.ConfidenceLow:  30,
	types.ConfidenceMid:  14,
	types.ConfidenceHigh: 7,
}

// DetermineOptionType resolves the option side for a goal.
func DetermineOptionType(goal types.Goal) types.OptionType {
	return goalToType[goal]
}

// CalculateStrike returns the strike for the given spot price, option side
// and risk level. CALL strikes sit above spot, PUT strikes below.
func CalculateStrike(currentPrice float64, optionType types.OptionType, risk types.RiskComfort) float64 {
	offset := strikeOffsets[risk]
	if optionType == types.OptionCall {
		return currentPrice * (1 + offset)
	}
	return currentPrice * (1 - offset)
}

// CalculateExpiry returns the expiry as unix seconds, offset from now by the
// confidence-mapped day count.
func CalculateExpiry(confidence types.Confidence) int64 {
	return time.Now().Add(time.Duration(expiryDays[confidence]) * 24 * time.Hour).Unix()
}

// ExpiryDays returns the day count used by CalculateExpiry for a confidence
// level, for display metadata.
func ExpiryDays(confidence types.Confidence) int {
	return expiryDays[confidence]
}

// StrikeOffset returns the OTM fraction used for a risk level, for display
// metadata.
func StrikeOffset(risk types.RiskComfort) float64 {
	return strikeOffsets[risk]
}
