package core

import (
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
)

// Store is the trusted state of a light client. It only ever holds the
// committees of the current period and the one after.
type Store struct {
	LatestFinalizedHeader        types.BeaconBlockHeader       `json:"latest_finalized_header"`
	CurrentSyncCommittee         types.SyncCommittee           `json:"current_sync_committee"`
	NextSyncCommittee            *types.SyncCommittee          `json:"next_sync_committee,omitempty"`
	LatestExecutionPayloadHeader *types.ExecutionPayloadHeader `json:"latest_execution_payload_header,omitempty"`
}

// NewStore validates a bootstrap and seeds a store from it. If trustedRoot
// is set the bootstrap header must have that root.
func NewStore(cc *ChainContext, bootstrap *types.LightClientBootstrap, trustedRoot *common.Hash) (*Store, error) {
	if err := ValidateBootstrap(cc, bootstrap, trustedRoot); err != nil {
		return nil, err
	}
	return &Store{
		LatestFinalizedHeader:        bootstrap.Header.Beacon,
		CurrentSyncCommittee:         bootstrap.CurrentSyncCommittee,
		LatestExecutionPayloadHeader: bootstrap.Header.Execution,
	}, nil
}

// CurrentPeriod is the sync committee period of the latest finalized header.
func (s *Store) CurrentPeriod(cc *ChainContext) uint64 {
	return cc.SyncCommitteePeriodAtSlot(s.LatestFinalizedHeader.Slot)
}

// SyncCommitteeAt returns the committee of period, or nil if the store does
// not know it.
func (s *Store) SyncCommitteeAt(cc *ChainContext, period uint64) *types.SyncCommittee {
	current := s.CurrentPeriod(cc)
	switch {
	case period == current:
		return &s.CurrentSyncCommittee
	case period == current+1 && s.NextSyncCommittee != nil:
		return s.NextSyncCommittee
	}
	return nil
}

// EnsureRelevantUpdate rejects updates that would not teach the store
// anything: they must either advance the finalized header or carry the
// next sync committee the store is missing.
func (s *Store) EnsureRelevantUpdate(cc *ChainContext, update *types.LightClientUpdate) error {
	finalizedSlot := update.FinalizedHeader.Beacon.Slot
	finalizedPeriod := cc.SyncCommitteePeriodAtSlot(finalizedSlot)
	attestedPeriod := cc.SyncCommitteePeriodAtSlot(update.AttestedHeader.Beacon.Slot)
	if attestedPeriod != finalizedPeriod && attestedPeriod != finalizedPeriod+1 {
		return ErrUnexpectedAttestedPeriod{FinalizedPeriod: finalizedPeriod, AttestedPeriod: attestedPeriod}
	}
	learnsNext := s.NextSyncCommittee == nil && update.NextSyncCommittee != nil && attestedPeriod == s.CurrentPeriod(cc)
	if finalizedSlot <= s.LatestFinalizedHeader.Slot && !learnsNext {
		return ErrIrrelevantUpdate{
			FinalizedSlot:        finalizedSlot,
			StoreSlot:            s.LatestFinalizedHeader.Slot,
			HasNextSyncCommittee: learnsNext,
		}
	}
	return nil
}

// ApplyLightClientUpdate returns the store after a validated update, or nil
// if the update does not advance it. The receiver is never modified.
//
// An update finalizing the period after the store's rotates the committees:
// the known next committee becomes current and the update's committee, if
// any, becomes next.
func (s *Store) ApplyLightClientUpdate(cc *ChainContext, update *types.LightClientUpdate) (*Store, error) {
	var (
		storePeriod     = s.CurrentPeriod(cc)
		finalizedSlot   = update.FinalizedHeader.Beacon.Slot
		finalizedPeriod = cc.SyncCommitteePeriodAtSlot(finalizedSlot)
		attestedPeriod  = cc.SyncCommitteePeriodAtSlot(update.AttestedHeader.Beacon.Slot)
		next            = *s
		changed         bool
	)
	switch finalizedPeriod {
	case storePeriod:
		if s.NextSyncCommittee == nil && update.NextSyncCommittee != nil && attestedPeriod == storePeriod {
			next.NextSyncCommittee = update.NextSyncCommittee
			changed = true
		}
	case storePeriod + 1:
		if s.NextSyncCommittee == nil {
			return nil, ErrCannotRotateNextSyncCommittee{StorePeriod: storePeriod, FinalizedPeriod: finalizedPeriod}
		}
		next.CurrentSyncCommittee = *s.NextSyncCommittee
		next.NextSyncCommittee = nil
		// The update's committee belongs to attested period + 1.
		if attestedPeriod == finalizedPeriod {
			next.NextSyncCommittee = update.NextSyncCommittee
		}
		changed = true
	default:
		return nil, ErrUnexpectedFinalizedPeriod{StorePeriod: storePeriod, FinalizedPeriod: finalizedPeriod}
	}
	if finalizedSlot > s.LatestFinalizedHeader.Slot {
		next.LatestFinalizedHeader = update.FinalizedHeader.Beacon
		next.LatestExecutionPayloadHeader = update.FinalizedHeader.Execution
		changed = true
	}
	if !changed {
		return nil, nil
	}
	return &next, nil
}
