package strategy

import (
	"math"

	"github.com/nawasena/options-api/internal/types"
)

// minPremiumRatio floors the premium at 1% of spot so deep-OTM short-dated
// options never price at zero.
const minPremiumRatio = 0.01

// PremiumInput are the parameters for a premium estimate.
type PremiumInput struct {
	CurrentPrice float64
	Strike       float64
	DaysToExpiry int
	OptionType   types.OptionType
}

// EstimatePremium approximates an option premium as intrinsic value plus a
// sqrt-of-time volatility proxy. This is a simplified estimate, not a
// Black-Scholes fair value; callers must not treat it as such.
func EstimatePremium(in PremiumInput) float64 {
	var intrinsic float64
	if in.OptionType == types.OptionCall {
		intrinsic = math.Max(0, in.CurrentPrice-in.Strike)
	} else {
		intrinsic = math.Max(0, in.Strike-in.CurrentPrice)
	}

	timeValue := in.CurrentPrice * 0.01 * math.Sqrt(float64(in.DaysToExpiry)/365.0)

	return math.Max(intrinsic+timeValue, in.CurrentPrice*minPremiumRatio)
}
