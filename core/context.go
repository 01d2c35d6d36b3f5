package core

import (
	"fmt"

	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
)

// Fraction is a participation threshold.
type Fraction struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

// DefaultTrustLevel requires two thirds of the sync committee to sign.
var DefaultTrustLevel = Fraction{Numerator: 2, Denominator: 3}

func NewFraction(numerator, denominator uint64) (Fraction, error) {
	f := Fraction{Numerator: numerator, Denominator: denominator}
	return f, f.Validate()
}

func (f Fraction) Validate() error {
	if f.Denominator == 0 || f.Numerator == 0 || f.Numerator > f.Denominator {
		return ErrInvalidFraction{Fraction: f}
	}
	return nil
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// ChainContext is everything besides the store that verification depends
// on. CurrentTimestamp comes from a trusted clock.
type ChainContext struct {
	*config.Config

	GenesisTime           uint64
	GenesisValidatorsRoot common.Hash
	TrustLevel            Fraction
	CurrentTimestamp      uint64
}

// NewChainContext checks that genesis belongs to the configured network.
func NewChainContext(cfg *config.Config, genesis *types.Genesis, trustLevel Fraction, now uint64) (*ChainContext, error) {
	if genesis.GenesisForkVersion != cfg.GenesisVersion {
		return nil, fmt.Errorf("invalid genesis fork version: got %v, want %v", genesis.GenesisForkVersion, cfg.GenesisVersion)
	}
	if err := trustLevel.Validate(); err != nil {
		return nil, err
	}
	return &ChainContext{
		Config:                cfg,
		GenesisTime:           genesis.GenesisTime,
		GenesisValidatorsRoot: genesis.GenesisValidatorsRoot,
		TrustLevel:            trustLevel,
		CurrentTimestamp:      now,
	}, nil
}

// CurrentSlot is the wall clock slot according to the trusted timestamp.
func (cc *ChainContext) CurrentSlot() types.Slot {
	return cc.SlotAtTimestamp(cc.GenesisTime, cc.CurrentTimestamp)
}

// WithTimestamp returns a copy of the context at another trusted time.
func (cc *ChainContext) WithTimestamp(now uint64) *ChainContext {
	cpy := *cc
	cpy.CurrentTimestamp = now
	return &cpy
}
