package core

import (
	"github.com/MariusVanDerWijden/eth2-lc/types"
)

// Misbehaviour is a pair of updates that are each valid but cannot both be
// true.
type Misbehaviour interface {
	Updates() (*types.LightClientUpdate, *types.LightClientUpdate)
	// ValidateBasic checks that the updates conflict. It does not verify
	// the updates themselves.
	ValidateBasic(cc *ChainContext) error
}

// FinalizedHeaderMisbehaviour is two updates finalizing different headers at
// the same slot.
type FinalizedHeaderMisbehaviour struct {
	Update1 *types.LightClientUpdate `json:"update_1"`
	Update2 *types.LightClientUpdate `json:"update_2"`
}

func (m *FinalizedHeaderMisbehaviour) Updates() (*types.LightClientUpdate, *types.LightClientUpdate) {
	return m.Update1, m.Update2
}

func (m *FinalizedHeaderMisbehaviour) ValidateBasic(cc *ChainContext) error {
	if err := checkPair(m.Update1, m.Update2); err != nil {
		return err
	}
	h1, h2 := &m.Update1.FinalizedHeader.Beacon, &m.Update2.FinalizedHeader.Beacon
	if h1.Slot != h2.Slot {
		return ErrDifferentSlotInMisbehaviour{Slot1: h1.Slot, Slot2: h2.Slot}
	}
	if root := h1.Root(); root == h2.Root() {
		return ErrSameFinalizedHeaderInMisbehaviour{Root: root}
	}
	return nil
}

// NextSyncCommitteeMisbehaviour is two updates attested in the same period
// that disagree on the next sync committee.
type NextSyncCommitteeMisbehaviour struct {
	Update1 *types.LightClientUpdate `json:"update_1"`
	Update2 *types.LightClientUpdate `json:"update_2"`
}

func (m *NextSyncCommitteeMisbehaviour) Updates() (*types.LightClientUpdate, *types.LightClientUpdate) {
	return m.Update1, m.Update2
}

func (m *NextSyncCommitteeMisbehaviour) ValidateBasic(cc *ChainContext) error {
	if err := checkPair(m.Update1, m.Update2); err != nil {
		return err
	}
	var periods [2]uint64
	for i, update := range []*types.LightClientUpdate{m.Update1, m.Update2} {
		if update.NextSyncCommittee == nil {
			return ErrNoNextSyncCommitteeInMisbehaviour
		}
		finalized := cc.SyncCommitteePeriodAtSlot(update.FinalizedHeader.Beacon.Slot)
		attested := cc.SyncCommitteePeriodAtSlot(update.AttestedHeader.Beacon.Slot)
		if finalized != attested {
			return ErrNotFinalizedNextSyncCommittee{FinalizedPeriod: finalized, AttestedPeriod: attested}
		}
		periods[i] = attested
	}
	if periods[0] != periods[1] {
		return ErrDifferentPeriodInMisbehaviour{Period1: periods[0], Period2: periods[1]}
	}
	if m.Update1.NextSyncCommittee.Equal(m.Update2.NextSyncCommittee) {
		return ErrSameNextSyncCommitteeInMisbehaviour{AggregatePubkey: m.Update1.NextSyncCommittee.AggregatePubkey}
	}
	return nil
}

func checkPair(update1, update2 *types.LightClientUpdate) error {
	switch {
	case update1 == nil:
		return malformed("misbehaviour without first update")
	case update2 == nil:
		return malformed("misbehaviour without second update")
	}
	return nil
}
