package recommend

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nawasena/options-api/internal/explain"
	"github.com/nawasena/options-api/internal/oracle"
	"github.com/nawasena/options-api/internal/signer"
	"github.com/nawasena/options-api/internal/strategy"
	"github.com/nawasena/options-api/internal/types"
	"github.com/nawasena/options-api/pkg/response"
)

// OrderSigner produces a signed maker order for a recommendation.
type OrderSigner interface {
	SignOrder(in signer.OrderInput) (*types.SignedOrder, error)
}

// Service turns a user profile into signed, fully-specified option
// recommendations, one per supported asset.
type Service struct {
	prices    oracle.PriceSource
	signer    OrderSigner
	explainer explain.Generator
}

// NewService creates a recommendation service over the given price source,
// order signer and explanation generator.
func NewService(prices oracle.PriceSource, orderSigner OrderSigner, explainer explain.Generator) *Service {
	return &Service{
		prices:    prices,
		signer:    orderSigner,
		explainer: explainer,
	}
}

// GenerateRecommendations prices one option per supported asset. A failure
// on one asset is logged and skipped; the rest of the batch proceeds. When
// every asset fails the result is an empty list, not an error.
func (s *Service) GenerateRecommendations(ctx context.Context, profile *types.UserProfile) []types.Recommendation {
	logger := log.With().Str("component", "recommendation").Logger()

	symbols := s.prices.Symbols()
	sort.Strings(symbols)

	recommendations := make([]types.Recommendation, 0, len(symbols))
	for _, asset := range symbols {
		rec, err := s.recommendAsset(ctx, asset, profile)
		if err != nil {
			logger.Warn().Err(err).Str("asset", asset).Msg("skipping asset")
			continue
		}
		recommendations = append(recommendations, *rec)
	}

	logger.Info().
		Int("assets", len(symbols)).
		Int("recommendations", len(recommendations)).
		Msg("generated recommendations")

	return recommendations
}

func (s *Service) recommendAsset(ctx context.Context, asset string, profile *types.UserProfile) (*types.Recommendation, error) {
	currentPrice, err := s.prices.GetPrice(ctx, asset)
	if err != nil {
		return nil, err
	}

	optionType := strategy.DetermineOptionType(profile.Goal)
	strike := strategy.CalculateStrike(currentPrice, optionType, profile.RiskComfort)
	expiry := strategy.CalculateExpiry(profile.Confidence)
	days := strategy.ExpiryDays(profile.Confidence)

	premium := strategy.EstimatePremium(strategy.PremiumInput{
		CurrentPrice: currentPrice,
		Strike:       strike,
		DaysToExpiry: days,
		OptionType:   optionType,
	})

	breakeven := strike + premium
	if optionType == types.OptionPut {
		breakeven = strike - premium
	}

	explanation, err := s.explainer.Generate(ctx, explain.Params{
		Asset:        asset,
		OptionType:   optionType,
		Strike:       strike,
		DaysToExpiry: days,
		Goal:         profile.Goal,
	})
	if err != nil {
		// The fallback generator is infallible; reaching this means it was
		// miswired, not that an upstream degraded.
		return nil, err
	}

	signed, err := s.signer.SignOrder(signer.OrderInput{
		Asset:      asset,
		OptionType: optionType,
		Strike:     strike,
		Expiry:     expiry,
		Premium:    premium,
	})
	if err != nil {
		return nil, err
	}

	return &types.Recommendation{
		ID:           uuid.New().String(),
		Asset:        asset,
		OptionType:   optionType,
		CurrentPrice: currentPrice,
		Strike:       strike,
		Expiry:       expiry,
		Premium:      premium,
		MaxPositions: int64(math.Floor(profile.Amount / premium)),
		Metadata: types.RecommendationMetadata{
			OTMPercentage: strategy.StrikeOffset(profile.RiskComfort) * 100,
			DaysToExpiry:  days,
			Breakeven:     breakeven,
			MaxProfit:     premium * 10,
			MaxLoss:       premium,
			Explanation:   explanation,
		},
		SignedOrder: signed,
	}, nil
}

// GinHandlers contains HTTP handlers for recommendation endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// GenerateHandler handles POST requests for recommendations.
// Request body is the user profile; each returned recommendation carries a
// ready-to-submit signed order.
func (h *GinHandlers) GenerateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var profile types.UserProfile
		if err := c.ShouldBindJSON(&profile); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if err := profile.Validate(); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		recommendations := h.service.GenerateRecommendations(ctx, &profile)
		response.Success(c, recommendations)
	}
}
