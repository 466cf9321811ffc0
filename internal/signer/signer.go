// Package signer builds and signs the market-maker order that authorizes a
// counterparty to fill a recommended option on-chain.
package signer

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/nawasena/options-api/internal/types"
)

const (
	// priceDecimals is the fixed-point scale for strikes (wad).
	priceDecimals = 18
	// premiumDecimals is the fixed-point scale for the USDC premium.
	premiumDecimals = 6
	// payoutMultiple caps the collateral the maker commits per position.
	payoutMultiple = 10
)

// OrderInput are the economic terms of the order to sign.
type OrderInput struct {
	Asset      string
	OptionType types.OptionType
	Strike     float64
	Expiry     int64
	Premium    float64
}

// Service signs orders with the market-maker key. The key is loaded once at
// construction and never leaves the process.
type Service struct {
	key             *ecdsa.PrivateKey
	maker           common.Address
	collateralToken common.Address
}

// NewService loads the market-maker key from its hex encoding. A missing or
// malformed key is a fatal configuration error.
func NewService(privateKeyHex, collateralToken string) (*Service, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("market maker private key not configured")
	}

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid market maker private key: %w", err)
	}

	return &Service{
		key:             key,
		maker:           crypto.PubkeyToAddress(key.PublicKey),
		collateralToken: common.HexToAddress(collateralToken),
	}, nil
}

// Maker returns the signing address.
func (s *Service) Maker() common.Address {
	return s.maker
}

// SignOrder builds the canonical order record for the given terms, assigns a
// random 128-bit nonce, and signs the raw order hash. The signature is over
// the unprefixed digest, matching what the on-chain verifier recovers.
func (s *Service) SignOrder(in OrderInput) (*types.SignedOrder, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	strike := ToFixed(in.Strike, priceDecimals)
	premium := ToFixed(in.Premium, premiumDecimals)
	maxCollateral := new(big.Int).Mul(premium, big.NewInt(payoutMultiple))

	order := types.Order{
		Maker:               s.maker,
		CollateralToken:     s.collateralToken,
		UnderlyingAsset:     in.Asset,
		IsCall:              in.OptionType == types.OptionCall,
		Strikes:             []*big.Int{strike},
		Expiry:              in.Expiry,
		Price:               premium,
		MaxCollateralUsable: maxCollateral,
		IsLong:              false,
		ExtraOptionData:     []byte{},
	}

	hash := ComputeOrderHash(s.maker, strike, in.Expiry, nonce)

	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	return &types.SignedOrder{
		Order:     order,
		Nonce:     nonce,
		OrderHash: hash.Hex(),
		Signature: "0x" + common.Bytes2Hex(sig),
	}, nil
}

// ComputeOrderHash is the keccak256 over the packed encoding of
// (maker ‖ strike ‖ expiry ‖ nonce), with the three integers left-padded to
// 32 bytes. The field order and widths must match the on-chain verifier.
func ComputeOrderHash(maker common.Address, strike *big.Int, expiry int64, nonce *big.Int) common.Hash {
	packed := make([]byte, 0, 20+32*3)
	packed = append(packed, maker.Bytes()...)
	packed = append(packed, common.LeftPadBytes(strike.Bytes(), 32)...)
	packed = append(packed, common.LeftPadBytes(big.NewInt(expiry).Bytes(), 32)...)
	packed = append(packed, common.LeftPadBytes(nonce.Bytes(), 32)...)
	return crypto.Keccak256Hash(packed)
}

// ToFixed converts a float amount to a fixed-point integer with the given
// number of decimals, rounding half up through the decimal library to avoid
// float truncation artifacts.
func ToFixed(amount float64, decimals int32) *big.Int {
	return decimal.NewFromFloat(amount).Shift(decimals).Round(0).BigInt()
}

// newNonce draws a random 128-bit order nonce. Randomness rather than a
// millisecond clock keeps concurrent signing requests collision-free.
func newNonce() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}
