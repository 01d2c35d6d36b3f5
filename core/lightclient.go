package core

import (
	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ValidateBootstrap checks that the current sync committee of bootstrap is
// part of the state its header commits to. If trustedRoot is set the header
// must have that root.
func ValidateBootstrap(cc *ChainContext, bootstrap *types.LightClientBootstrap, trustedRoot *common.Hash) error {
	header := &bootstrap.Header.Beacon
	if trustedRoot != nil {
		if root := header.Root(); root != *trustedRoot {
			return ErrTrustedRootMismatch{Expected: *trustedRoot, Actual: root}
		}
	}
	if err := bootstrap.CurrentSyncCommittee.Validate(cc.SyncCommitteeSize); err != nil {
		return malformed("%v", err)
	}
	spec, err := cc.ForkSpecAtSlot(header.Slot)
	if err != nil {
		return err
	}
	if err := validateLightClientHeader(cc, &bootstrap.Header); err != nil {
		return err
	}
	return verifyProof(CurrentSyncCommitteeProof, bootstrap.CurrentSyncCommittee.Root(),
		bootstrap.CurrentSyncCommitteeBranch, spec.CurrentSyncCommitteeGindex, header.StateRoot)
}

// validateLightClientHeader checks the execution payload of a header. Before
// Capella headers carry none, after it the payload must be proven against
// the block body.
func validateLightClientHeader(cc *ChainContext, header *types.LightClientHeader) error {
	epoch := cc.EpochAtSlot(header.Beacon.Slot)
	if !cc.IsActive(config.Capella, epoch) {
		if header.Execution != nil || len(header.ExecutionBranch) != 0 {
			return malformed("execution payload in pre-capella header at slot %d", header.Beacon.Slot)
		}
		return nil
	}
	if header.Execution == nil {
		return errors.Wrapf(ErrNoExecutionPayload, "header at slot %d", header.Beacon.Slot)
	}
	spec, err := cc.ComputeForkSpec(epoch)
	if err != nil {
		return err
	}
	root, err := header.Execution.HashTreeRoot(spec)
	if err != nil {
		return malformed("%v", err)
	}
	return verifyProof(ExecutionPayloadProof, root, header.ExecutionBranch, spec.ExecutionPayloadGindex, header.Beacon.BodyRoot)
}

// validateBasic performs the checks that need neither proofs nor
// signatures.
func validateBasic(cc *ChainContext, update *types.LightClientUpdate) error {
	var (
		current   = cc.CurrentSlot()
		signature = update.SignatureSlot
		attested  = update.AttestedHeader.Beacon.Slot
		finalized = update.FinalizedHeader.Beacon.Slot
	)
	if !(current >= signature && signature > attested && attested >= finalized) {
		return ErrInconsistentSlotOrder{Current: current, Signature: signature, Attested: attested, Finalized: finalized}
	}
	if update.AttestedHeader.Beacon.IsZero() {
		return malformed("empty attested header")
	}
	if update.NextSyncCommittee != nil {
		if len(update.NextSyncCommitteeBranch) == 0 {
			return malformed("next sync committee without branch")
		}
		if err := update.NextSyncCommittee.Validate(cc.SyncCommitteeSize); err != nil {
			return malformed("%v", err)
		}
	}
	if _, err := update.SyncAggregate.Bits(cc.SyncCommitteeSize); err != nil {
		return malformed("%v", err)
	}
	return validateLightClientHeader(cc, &update.AttestedHeader)
}

// validateFinality proves the finalized header against the attested state.
// At the genesis slot the finalized checkpoint root is zero, so the header
// must be the default one.
func validateFinality(cc *ChainContext, update *types.LightClientUpdate) error {
	if len(update.FinalityBranch) == 0 {
		return ErrFinalizedHeaderNotFound
	}
	finalized := &update.FinalizedHeader
	var leaf common.Hash
	if finalized.Beacon.Slot == cc.GenesisSlot {
		if !finalized.Beacon.IsZero() || finalized.Execution != nil || len(finalized.ExecutionBranch) != 0 {
			return ErrNonEmptyBeaconHeaderAtGenesisSlot{Slot: finalized.Beacon.Slot}
		}
	} else {
		if finalized.Beacon.IsZero() {
			return ErrEmptyBeaconHeader{Slot: finalized.Beacon.Slot}
		}
		if err := validateLightClientHeader(cc, finalized); err != nil {
			return err
		}
		leaf = finalized.Beacon.Root()
	}
	spec, err := cc.ForkSpecAtSlot(update.AttestedHeader.Beacon.Slot)
	if err != nil {
		return err
	}
	return verifyProof(FinalizedHeaderProof, leaf, update.FinalityBranch, spec.FinalizedRootGindex, update.AttestedHeader.Beacon.StateRoot)
}

// validateNextSyncCommittee proves the update's next sync committee against
// the attested state. A committee the store already trusts for the same
// period must not be replaced.
func validateNextSyncCommittee(cc *ChainContext, store *Store, update *types.LightClientUpdate) error {
	if update.NextSyncCommittee == nil {
		if len(update.NextSyncCommitteeBranch) != 0 {
			return ErrNonEmptyNextSyncCommittee
		}
		return nil
	}
	attested := &update.AttestedHeader.Beacon
	attestedPeriod := cc.SyncCommitteePeriodAtSlot(attested.Slot)
	if known := store.SyncCommitteeAt(cc, attestedPeriod+1); known != nil && !known.Equal(update.NextSyncCommittee) {
		return ErrInconsistentNextSyncCommittee{Store: known.Root(), Update: update.NextSyncCommittee.Root()}
	}
	spec, err := cc.ForkSpecAtSlot(attested.Slot)
	if err != nil {
		return err
	}
	return verifyProof(NextSyncCommitteeProof, update.NextSyncCommittee.Root(),
		update.NextSyncCommitteeBranch, spec.NextSyncCommitteeGindex, attested.StateRoot)
}

// ValidateConsensusUpdate checks an update against the store without
// modifying it.
//
// a) basic structure and slot order
// b) the finalized header is from Bellatrix or later
// c) the store knows the committee period the update was signed in
// d) the update is relevant to the store
// e) the finalized header is part of the attested state
// f) the next sync committee, if any, is part of the attested state
// g) the signing committee attested the header
func ValidateConsensusUpdate(cc *ChainContext, store *Store, update *types.LightClientUpdate) error {
	if err := validateBasic(cc, update); err != nil {
		return err
	}
	finalizedEpoch := cc.EpochAtSlot(update.FinalizedHeader.Beacon.Slot)
	if !cc.IsActive(config.Bellatrix, finalizedEpoch) {
		return &config.ForkNotSupportedError{Epoch: finalizedEpoch}
	}
	storePeriod := store.CurrentPeriod(cc)
	signaturePeriod := cc.SyncCommitteePeriodAtSlot(update.SignatureSlot)
	if signaturePeriod != storePeriod && signaturePeriod != storePeriod+1 {
		return ErrStoreNotCoveredSignaturePeriod{StorePeriod: storePeriod, SignaturePeriod: signaturePeriod}
	}
	if err := store.EnsureRelevantUpdate(cc, update); err != nil {
		return err
	}
	if err := validateFinality(cc, update); err != nil {
		return err
	}
	if err := validateNextSyncCommittee(cc, store, update); err != nil {
		return err
	}
	committee := store.SyncCommitteeAt(cc, signaturePeriod)
	if committee == nil {
		return ErrUnexpectedSignaturePeriod{
			StorePeriod:     storePeriod,
			SignaturePeriod: signaturePeriod,
			Reason:          "store has no next sync committee",
		}
	}
	return VerifySyncCommitteeAttestation(cc, update, committee)
}

// ValidateExecutionUpdate proves the execution state root and block number
// against a trusted execution payload root.
func ValidateExecutionUpdate(spec config.ForkSpec, trustedExecutionRoot common.Hash, update *types.ExecutionUpdate) error {
	if spec.ExecutionPayloadGindex == 0 {
		return ErrNoExecutionPayload
	}
	if err := verifyProof(ExecutionStateRootProof, update.StateRoot, update.StateRootBranch,
		spec.ExecutionPayloadStateRootGindex, trustedExecutionRoot); err != nil {
		return err
	}
	return verifyProof(ExecutionBlockNumberProof, types.Uint64Leaf(update.BlockNumber), update.BlockNumberBranch,
		spec.ExecutionPayloadBlockNumberGindex, trustedExecutionRoot)
}

// ValidateUpdates validates a consensus update and then an execution update
// against the payload of its finalized header.
func ValidateUpdates(cc *ChainContext, store *Store, consensus *types.LightClientUpdate, execution *types.ExecutionUpdate) error {
	if err := ValidateConsensusUpdate(cc, store, consensus); err != nil {
		return err
	}
	finalized := &consensus.FinalizedHeader
	if finalized.Execution == nil {
		return errors.Wrapf(ErrNoExecutionPayload, "finalized header at slot %d", finalized.Beacon.Slot)
	}
	spec, err := cc.ForkSpecAtSlot(finalized.Beacon.Slot)
	if err != nil {
		return err
	}
	root, err := finalized.Execution.HashTreeRoot(spec)
	if err != nil {
		return malformed("%v", err)
	}
	return ValidateExecutionUpdate(spec, root, execution)
}

// ValidateMisbehaviour checks that the updates of a misbehaviour conflict and
// then validates both of them against the store.
func ValidateMisbehaviour(cc *ChainContext, store *Store, misbehaviour Misbehaviour) error {
	if err := misbehaviour.ValidateBasic(cc); err != nil {
		return err
	}
	update1, update2 := misbehaviour.Updates()
	if err := ValidateConsensusUpdate(cc, store, update1); err != nil {
		return errors.Wrap(err, "invalid first update")
	}
	if err := ValidateConsensusUpdate(cc, store, update2); err != nil {
		return errors.Wrap(err, "invalid second update")
	}
	return nil
}
