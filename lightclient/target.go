package lightclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/types"
)

type TargetKind int

const (
	// TargetNone stops after a single update round.
	TargetNone TargetKind = iota
	// TargetInfinity keeps updating while the beacon node has news.
	TargetInfinity
	TargetSlot
	TargetBlockNumber
)

// Target tells UpdateUntilTarget when to stop.
type Target struct {
	Kind  TargetKind
	Value uint64
}

// ParseTarget parses none, infinity, <n>slot, <n>period or <n>bn. Block
// numbers may be given in hex with a 0x prefix. A period target is the last
// slot of the period before it, so "3period" means the store has finalized
// all of period 2.
func ParseTarget(cfg *config.Config, value string) (Target, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch {
	case value == "" || value == "none":
		return Target{Kind: TargetNone}, nil
	case value == "infinity":
		return Target{Kind: TargetInfinity}, nil
	case strings.HasSuffix(value, "period"):
		period, err := strconv.ParseUint(strings.TrimSuffix(value, "period"), 10, 64)
		if err != nil {
			return Target{}, fmt.Errorf("invalid target %q: %v", value, err)
		}
		if period == 0 {
			return Target{Kind: TargetSlot}, nil
		}
		return Target{Kind: TargetSlot, Value: uint64(cfg.LastSlotAtPeriod(period - 1))}, nil
	case strings.HasSuffix(value, "slot"):
		slot, err := strconv.ParseUint(strings.TrimSuffix(value, "slot"), 10, 64)
		if err != nil {
			return Target{}, fmt.Errorf("invalid target %q: %v", value, err)
		}
		return Target{Kind: TargetSlot, Value: slot}, nil
	case strings.HasSuffix(value, "bn"):
		bn := strings.TrimSuffix(value, "bn")
		var (
			number uint64
			err    error
		)
		if strings.HasPrefix(bn, "0x") {
			number, err = strconv.ParseUint(bn[2:], 16, 64)
		} else {
			number, err = strconv.ParseUint(bn, 10, 64)
		}
		if err != nil {
			return Target{}, fmt.Errorf("invalid target %q: %v", value, err)
		}
		return Target{Kind: TargetBlockNumber, Value: number}, nil
	}
	return Target{}, fmt.Errorf("unsupported target format %q", value)
}

// Reached reports whether a store finalized at slot with the given
// execution block number satisfies the target.
func (t Target) Reached(slot types.Slot, blockNumber uint64) bool {
	switch t.Kind {
	case TargetNone:
		return true
	case TargetSlot:
		return uint64(slot) >= t.Value
	case TargetBlockNumber:
		return blockNumber >= t.Value
	}
	return false
}

func (t Target) String() string {
	switch t.Kind {
	case TargetNone:
		return "none"
	case TargetInfinity:
		return "infinity"
	case TargetSlot:
		return fmt.Sprintf("%dslot", t.Value)
	}
	return fmt.Sprintf("%dbn", t.Value)
}
