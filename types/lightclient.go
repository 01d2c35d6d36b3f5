package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// LightClientHeader is a beacon header together with, from Capella on, the
// execution payload header it commits to.
type LightClientHeader struct {
	Beacon          BeaconBlockHeader       `json:"beacon"`
	Execution       *ExecutionPayloadHeader `json:"execution,omitempty"`
	ExecutionBranch []common.Hash           `json:"execution_branch,omitempty"`
}

type LightClientBootstrap struct {
	Header                     LightClientHeader `json:"header"`
	CurrentSyncCommittee       SyncCommittee     `json:"current_sync_committee"`
	CurrentSyncCommitteeBranch []common.Hash     `json:"current_sync_committee_branch"`
}

// LightClientUpdate is a consensus update. NextSyncCommittee and its branch
// are either both set or both nil.
type LightClientUpdate struct {
	AttestedHeader          LightClientHeader `json:"attested_header"`
	NextSyncCommittee       *SyncCommittee    `json:"next_sync_committee,omitempty"`
	NextSyncCommitteeBranch []common.Hash     `json:"next_sync_committee_branch,omitempty"`
	FinalizedHeader         LightClientHeader `json:"finalized_header"`
	FinalityBranch          []common.Hash     `json:"finality_branch"`
	SyncAggregate           SyncAggregate     `json:"sync_aggregate"`
	SignatureSlot           Slot              `json:"signature_slot,string"`
}

func isZeroBranch(branch []common.Hash) bool {
	for _, node := range branch {
		if node != (common.Hash{}) {
			return false
		}
	}
	return true
}

// Normalize drops the next sync committee of an update whose committee
// branch is all zero, which is how beacon nodes encode its absence.
func (u *LightClientUpdate) Normalize() {
	if isZeroBranch(u.NextSyncCommitteeBranch) {
		u.NextSyncCommittee = nil
		u.NextSyncCommitteeBranch = nil
	}
}

// LightClientFinalityUpdate is an update without a next sync committee,
// served for the latest finalized header.
type LightClientFinalityUpdate struct {
	AttestedHeader  LightClientHeader `json:"attested_header"`
	FinalizedHeader LightClientHeader `json:"finalized_header"`
	FinalityBranch  []common.Hash     `json:"finality_branch"`
	SyncAggregate   SyncAggregate     `json:"sync_aggregate"`
	SignatureSlot   Slot              `json:"signature_slot,string"`
}

func (u *LightClientFinalityUpdate) ToUpdate() *LightClientUpdate {
	return &LightClientUpdate{
		AttestedHeader:  u.AttestedHeader,
		FinalizedHeader: u.FinalizedHeader,
		FinalityBranch:  u.FinalityBranch,
		SyncAggregate:   u.SyncAggregate,
		SignatureSlot:   u.SignatureSlot,
	}
}
