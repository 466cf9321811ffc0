package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Goal is the stated investment objective of a user profile.
type Goal string

const (
	GoalProtectAsset  Goal = "PROTECT_ASSET"
	GoalCaptureUpside Goal = "CAPTURE_UPSIDE"
	GoalEarnSafely    Goal = "EARN_SAFELY"
)

// RiskComfort controls how far out-of-the-money a recommended strike sits.
type RiskComfort string

const (
	RiskConservative RiskComfort = "CONSERVATIVE"
	RiskModerate     RiskComfort = "MODERATE"
	RiskAggressive   RiskComfort = "AGGRESSIVE"
)

// Confidence controls how far out a recommended expiry sits.
type Confidence string

const (
	ConfidenceLow  Confidence = "LOW"
	ConfidenceMid  Confidence = "MID"
	ConfidenceHigh Confidence = "HIGH"
)

// OptionType is the side of an option contract.
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// PositionStatus mirrors the status enum of the on-chain position registry.
type PositionStatus uint8

const (
	PositionActive  PositionStatus = 0
	PositionSettled PositionStatus = 1
	PositionClaimed PositionStatus = 2
)

// UserProfile is the per-request input to recommendation generation.
// It is transient and never persisted.
type UserProfile struct {
	Goal        Goal        `json:"goal" binding:"required"`
	RiskComfort RiskComfort `json:"risk_comfort" binding:"required"`
	Confidence  Confidence  `json:"confidence" binding:"required"`
	Amount      float64     `json:"amount" binding:"required,gt=0"`
}

// Validate checks enum membership beyond the binding-level required checks.
func (p *UserProfile) Validate() error {
	switch p.Goal {
	case GoalProtectAsset, GoalCaptureUpside, GoalEarnSafely:
	default:
		return fmt.Errorf("invalid goal %q, must be one of: PROTECT_ASSET, CAPTURE_UPSIDE, EARN_SAFELY", p.Goal)
	}
	switch p.RiskComfort {
	case RiskConservative, RiskModerate, RiskAggressive:
	default:
		return fmt.Errorf("invalid risk_comfort %q, must be one of: CONSERVATIVE, MODERATE, AGGRESSIVE", p.RiskComfort)
	}
	switch p.Confidence {
	case ConfidenceLow, ConfidenceMid, ConfidenceHigh:
	default:
		return fmt.Errorf("invalid confidence %q, must be one of: LOW, MID, HIGH", p.Confidence)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// RecommendationMetadata carries the display-only derived figures for a
// recommendation. MaxProfit is a fixed payout cap used for display; the true
// payout is governed by the settlement contract.
type RecommendationMetadata struct {
	OTMPercentage float64 `json:"otm_percentage"`
	DaysToExpiry  int     `json:"days_to_expiry"`
	Breakeven     float64 `json:"breakeven"`
	MaxProfit     float64 `json:"max_profit"`
	MaxLoss       float64 `json:"max_loss"`
	Explanation   string  `json:"explanation"`
}

// Recommendation is a fully-specified option suggestion for one asset.
// Created fresh per request, never mutated, never persisted.
type Recommendation struct {
	ID           string                 `json:"id"`
	Asset        string                 `json:"asset"`
	OptionType   OptionType             `json:"option_type"`
	CurrentPrice float64                `json:"current_price"`
	Strike       float64                `json:"strike"`
	Expiry       int64                  `json:"expiry"`
	Premium      float64                `json:"premium"`
	MaxPositions int64                  `json:"max_positions"`
	Metadata     RecommendationMetadata `json:"metadata"`
	SignedOrder  *SignedOrder           `json:"signed_order,omitempty"`
}

// Order is the canonical record a market maker signs to authorize an
// on-chain fill. Immutable once signed; its identity is the keccak256 hash
// over the packed (maker, strike, expiry, nonce) encoding.
type Order struct {
	Maker               common.Address `json:"maker"`
	CollateralToken     common.Address `json:"collateral_token"`
	UnderlyingAsset     string         `json:"underlying_asset"`
	IsCall              bool           `json:"is_call"`
	Strikes             []*big.Int     `json:"strikes"`
	Expiry              int64          `json:"expiry"`
	Price               *big.Int       `json:"price"`
	MaxCollateralUsable *big.Int       `json:"max_collateral_usable"`
	IsLong              bool           `json:"is_long"`
	ExtraOptionData     []byte         `json:"extra_option_data"`
}

// SignedOrder is an Order plus the authorization artifacts a client needs
// to submit the fill on-chain.
type SignedOrder struct {
	Order     Order    `json:"order"`
	Nonce     *big.Int `json:"nonce"`
	OrderHash string   `json:"order_hash"`
	Signature string   `json:"signature"`
}

// Position is the registry's view of an open or finished option position.
// Owned and mutated by the on-chain contracts; read-only here.
type Position struct {
	ID              uint64         `json:"id"`
	User            common.Address `json:"user"`
	UnderlyingAsset string         `json:"underlying_asset"`
	IsCall          bool           `json:"is_call"`
	Strikes         []*big.Int     `json:"strikes"`
	Expiry          int64          `json:"expiry"`
	CreatedAt       int64          `json:"created_at"`
	Status          PositionStatus `json:"status"`
	PremiumPaid     *big.Int       `json:"premium_paid"`
	SettlementPrice *big.Int       `json:"settlement_price"`
	Payout          *big.Int       `json:"payout"`
	Claimable       bool           `json:"claimable"`
}
