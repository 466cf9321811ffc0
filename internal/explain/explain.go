// Package explain produces the plain-language rationale attached to each
// recommendation. Two generators exist: an LLM-backed one and a template one;
// a fallback wrapper selects between them at call time.
package explain

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/nawasena/options-api/internal/types"
)

// Params carries the facts an explanation is built from.
type Params struct {
	Asset        string
	OptionType   types.OptionType
	Strike       float64
	DaysToExpiry int
	Goal         types.Goal
}

// Generator produces a human-readable explanation for a recommendation.
type Generator interface {
	Generate(ctx context.Context, params Params) (string, error)
}

// TemplateGenerator renders a deterministic explanation from a fixed
// template. It never fails.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Generate(_ context.Context, p Params) (string, error) {
	if p.OptionType == types.OptionCall {
		return fmt.Sprintf(
			"This %s CALL option profits if %s rises above the $%.2f strike within %d days. Your maximum loss is limited to the premium paid.",
			p.Asset, p.Asset, p.Strike, p.DaysToExpiry), nil
	}
	return fmt.Sprintf(
		"This %s PUT option protects your holdings if %s falls below the $%.2f strike within %d days. Your maximum loss is limited to the premium paid.",
		p.Asset, p.Asset, p.Strike, p.DaysToExpiry), nil
}

// FallbackGenerator tries a primary generator and falls back to a secondary
// one when the primary fails. The secondary is expected to be infallible.
type FallbackGenerator struct {
	primary   Generator
	secondary Generator
}

func NewFallbackGenerator(primary, secondary Generator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, secondary: secondary}
}

func (g *FallbackGenerator) Generate(ctx context.Context, p Params) (string, error) {
	if g.primary != nil {
		text, err := g.primary.Generate(ctx, p)
		if err == nil && text != "" {
			return text, nil
		}
		if err != nil {
			log.Warn().Err(err).Str("asset", p.Asset).Msg("explanation generator failed, using template fallback")
		}
	}
	return g.secondary.Generate(ctx, p)
}
