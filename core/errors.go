package core

import (
	"fmt"

	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/merkle"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidBLSSignatures means the sync aggregate signature does not
	// verify against the participating keys.
	ErrInvalidBLSSignatures = errors.New("invalid bls signatures")
	// ErrFinalizedHeaderNotFound means the update carries no finality proof.
	ErrFinalizedHeaderNotFound = errors.New("finalized header not found: empty finality branch")
	// ErrNonEmptyNextSyncCommittee means a next sync committee branch was
	// supplied without the committee.
	ErrNonEmptyNextSyncCommittee = errors.New("next sync committee branch without next sync committee")
	// ErrNoExecutionPayload means the fork or header has no execution payload
	// to prove against.
	ErrNoExecutionPayload = errors.New("no execution payload in beacon block")
	// ErrNoNextSyncCommitteeInMisbehaviour means a committee misbehaviour
	// update lacks the committee it equivocates on.
	ErrNoNextSyncCommitteeInMisbehaviour = errors.New("no next sync committee in misbehaviour update")
)

// ErrInvalidFraction means a trust level is zero, undefined or above one.
type ErrInvalidFraction struct {
	Fraction Fraction
}

func (e ErrInvalidFraction) Error() string {
	return fmt.Sprintf("invalid fraction: %v", e.Fraction)
}

// ErrMalformedUpdate means the payload failed basic structural validation.
type ErrMalformedUpdate struct {
	Reason string
}

func (e ErrMalformedUpdate) Error() string {
	return fmt.Sprintf("malformed update: %s", e.Reason)
}

func malformed(format string, args ...interface{}) error {
	return ErrMalformedUpdate{Reason: fmt.Sprintf(format, args...)}
}

// ErrInconsistentSlotOrder means the slots of an update are not ordered
// current >= signature > attested >= finalized.
type ErrInconsistentSlotOrder struct {
	Current   types.Slot
	Signature types.Slot
	Attested  types.Slot
	Finalized types.Slot
}

func (e ErrInconsistentSlotOrder) Error() string {
	return fmt.Sprintf("inconsistent slot order: current %d, signature %d, attested %d, finalized %d",
		e.Current, e.Signature, e.Attested, e.Finalized)
}

// ErrStoreNotCoveredSignaturePeriod means the store knows no committee for
// the period the update was signed in.
type ErrStoreNotCoveredSignaturePeriod struct {
	StorePeriod     uint64
	SignaturePeriod uint64
}

func (e ErrStoreNotCoveredSignaturePeriod) Error() string {
	return fmt.Sprintf("store does not cover signature period: store %d, signature %d", e.StorePeriod, e.SignaturePeriod)
}

// ErrUnexpectedSignaturePeriod means no sync committee is available for the
// signature period.
type ErrUnexpectedSignaturePeriod struct {
	StorePeriod     uint64
	SignaturePeriod uint64
	Reason          string
}

func (e ErrUnexpectedSignaturePeriod) Error() string {
	return fmt.Sprintf("unexpected signature period: store %d, signature %d: %s", e.StorePeriod, e.SignaturePeriod, e.Reason)
}

// ErrUnexpectedAttestedPeriod means the attested header is neither in the
// finalized header's period nor the one after.
type ErrUnexpectedAttestedPeriod struct {
	FinalizedPeriod uint64
	AttestedPeriod  uint64
}

func (e ErrUnexpectedAttestedPeriod) Error() string {
	return fmt.Sprintf("unexpected attested period: finalized %d, attested %d", e.FinalizedPeriod, e.AttestedPeriod)
}

// ErrUnexpectedFinalizedPeriod means the finalized header is neither in the
// store period nor the one after.
type ErrUnexpectedFinalizedPeriod struct {
	StorePeriod     uint64
	FinalizedPeriod uint64
}

func (e ErrUnexpectedFinalizedPeriod) Error() string {
	return fmt.Sprintf("unexpected finalized period: store %d, finalized %d", e.StorePeriod, e.FinalizedPeriod)
}

// ErrCannotRotateNextSyncCommittee means an update finalizes the next
// period while the store has not learned its committee yet.
type ErrCannotRotateNextSyncCommittee struct {
	StorePeriod     uint64
	FinalizedPeriod uint64
}

func (e ErrCannotRotateNextSyncCommittee) Error() string {
	return fmt.Sprintf("cannot rotate next sync committee: store %d, finalized %d", e.StorePeriod, e.FinalizedPeriod)
}

// ErrIrrelevantUpdate means the update neither advances finality nor
// teaches the store a new committee.
type ErrIrrelevantUpdate struct {
	FinalizedSlot        types.Slot
	StoreSlot            types.Slot
	HasNextSyncCommittee bool
}

func (e ErrIrrelevantUpdate) Error() string {
	return fmt.Sprintf("irrelevant consensus update: finalized slot %d, store slot %d, new next sync committee %v",
		e.FinalizedSlot, e.StoreSlot, e.HasNextSyncCommittee)
}

// ErrNonEmptyBeaconHeaderAtGenesisSlot means a finality proof for the
// genesis slot carries a header other than the default one.
type ErrNonEmptyBeaconHeaderAtGenesisSlot struct {
	Slot types.Slot
}

func (e ErrNonEmptyBeaconHeaderAtGenesisSlot) Error() string {
	return fmt.Sprintf("non-empty beacon header at genesis slot %d", e.Slot)
}

// ErrEmptyBeaconHeader means a header after genesis is the default header.
type ErrEmptyBeaconHeader struct {
	Slot types.Slot
}

func (e ErrEmptyBeaconHeader) Error() string {
	return fmt.Sprintf("empty beacon header at slot %d", e.Slot)
}

// ErrTrustedRootMismatch means a bootstrap does not match the root the
// operator pinned.
type ErrTrustedRootMismatch struct {
	Expected common.Hash
	Actual   common.Hash
}

func (e ErrTrustedRootMismatch) Error() string {
	return fmt.Sprintf("trusted root mismatch: got %v, want %v", e.Actual, e.Expected)
}

// ErrLessThanMinimalParticipants means fewer committee members signed than
// the network minimum.
type ErrLessThanMinimalParticipants struct {
	Participants uint64
	Minimum      uint64
}

func (e ErrLessThanMinimalParticipants) Error() string {
	return fmt.Sprintf("less than minimal participants: got %d, want at least %d", e.Participants, e.Minimum)
}

// ErrInsufficientParticipants means the signers fall short of the trust
// level.
type ErrInsufficientParticipants struct {
	Participants uint64
	Total        uint64
	TrustLevel   Fraction
}

func (e ErrInsufficientParticipants) Error() string {
	return fmt.Sprintf("insufficient participants: %d of %d, trust level %v", e.Participants, e.Total, e.TrustLevel)
}

// ErrInconsistentNextSyncCommittee means an update proposes a next sync
// committee different from the one the store already trusts.
type ErrInconsistentNextSyncCommittee struct {
	Store  common.Hash
	Update common.Hash
}

func (e ErrInconsistentNextSyncCommittee) Error() string {
	return fmt.Sprintf("inconsistent next sync committee: store %v, update %v", e.Store, e.Update)
}

// Proof names a Merkle proof carried by bootstraps and updates.
type Proof string

const (
	FinalizedHeaderProof      Proof = "finalized header"
	CurrentSyncCommitteeProof Proof = "current sync committee"
	NextSyncCommitteeProof    Proof = "next sync committee"
	ExecutionPayloadProof     Proof = "execution payload"
	ExecutionStateRootProof   Proof = "execution state root"
	ExecutionBlockNumberProof Proof = "execution block number"
)

// ErrInvalidMerkleBranch wraps the merkle error of a failed proof.
type ErrInvalidMerkleBranch struct {
	Proof  Proof
	Reason error
}

func (e ErrInvalidMerkleBranch) Unwrap() error {
	return e.Reason
}

func (e ErrInvalidMerkleBranch) Error() string {
	return fmt.Sprintf("invalid %s merkle branch: %v", e.Proof, e.Reason)
}

func verifyProof(proof Proof, leaf common.Hash, branch []common.Hash, gindex uint64, root common.Hash) error {
	if err := merkle.VerifyBranch(leaf, branch, gindex, root); err != nil {
		return ErrInvalidMerkleBranch{Proof: proof, Reason: err}
	}
	return nil
}

// ErrDifferentSlotInMisbehaviour means two finalized headers cannot
// conflict because they are at different slots.
type ErrDifferentSlotInMisbehaviour struct {
	Slot1 types.Slot
	Slot2 types.Slot
}

func (e ErrDifferentSlotInMisbehaviour) Error() string {
	return fmt.Sprintf("different finalized slots in misbehaviour: %d != %d", e.Slot1, e.Slot2)
}

// ErrSameFinalizedHeaderInMisbehaviour means both updates finalize the same
// header.
type ErrSameFinalizedHeaderInMisbehaviour struct {
	Root common.Hash
}

func (e ErrSameFinalizedHeaderInMisbehaviour) Error() string {
	return fmt.Sprintf("same finalized header in misbehaviour: %v", e.Root)
}

// ErrNotFinalizedNextSyncCommittee means the update's next sync committee
// is attested in a later period than its finalized header.
type ErrNotFinalizedNextSyncCommittee struct {
	FinalizedPeriod uint64
	AttestedPeriod  uint64
}

func (e ErrNotFinalizedNextSyncCommittee) Error() string {
	return fmt.Sprintf("next sync committee not finalized: finalized period %d, attested period %d", e.FinalizedPeriod, e.AttestedPeriod)
}

// ErrDifferentPeriodInMisbehaviour means the two committee updates are
// attested in different periods.
type ErrDifferentPeriodInMisbehaviour struct {
	Period1 uint64
	Period2 uint64
}

func (e ErrDifferentPeriodInMisbehaviour) Error() string {
	return fmt.Sprintf("different periods in next sync committee misbehaviour: %d != %d", e.Period1, e.Period2)
}

// ErrSameNextSyncCommitteeInMisbehaviour means both updates agree on the
// next sync committee.
type ErrSameNextSyncCommitteeInMisbehaviour struct {
	AggregatePubkey types.BLSPubkey
}

func (e ErrSameNextSyncCommitteeInMisbehaviour) Error() string {
	return fmt.Sprintf("same next sync committee in misbehaviour: %v", e.AggregatePubkey)
}

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass int

const (
	// ClassCollaborator errors come from outside the verifier, e.g. network
	// or storage failures.
	ClassCollaborator ErrorClass = iota
	// ClassStructural payloads are malformed and never become valid.
	ClassStructural
	// ClassCryptographic payloads failed a Merkle or BLS check. Treat as a
	// security event.
	ClassCryptographic
	// ClassProtocolState payloads do not fit the current store and may be
	// retried once the store advances.
	ClassProtocolState
)

func (c ErrorClass) String() string {
	switch c {
	case ClassStructural:
		return "structural"
	case ClassCryptographic:
		return "cryptographic"
	case ClassProtocolState:
		return "protocol-state"
	}
	return "collaborator"
}

// Classify returns the class of a verification error.
func Classify(err error) ErrorClass {
	var (
		merkleErr        ErrInvalidMerkleBranch
		rootMismatch     ErrTrustedRootMismatch
		inconsistentNext ErrInconsistentNextSyncCommittee

		notCovered       ErrStoreNotCoveredSignaturePeriod
		sigPeriod        ErrUnexpectedSignaturePeriod
		attestedPeriod   ErrUnexpectedAttestedPeriod
		finalizedPeriod  ErrUnexpectedFinalizedPeriod
		cannotRotate     ErrCannotRotateNextSyncCommittee
		irrelevant       ErrIrrelevantUpdate
		slotOrder        ErrInconsistentSlotOrder
		forkNotSupported *config.ForkNotSupportedError
	)
	var lengthErr *merkle.BranchLengthError
	switch {
	case errors.As(err, &lengthErr), errors.Is(err, merkle.ErrInvalidGeneralizedIndex):
		return ClassStructural
	case errors.Is(err, ErrInvalidBLSSignatures),
		errors.As(err, &merkleErr),
		errors.As(err, &rootMismatch),
		errors.As(err, &inconsistentNext):
		return ClassCryptographic
	case errors.As(err, &notCovered),
		errors.As(err, &sigPeriod),
		errors.As(err, &attestedPeriod),
		errors.As(err, &finalizedPeriod),
		errors.As(err, &cannotRotate),
		errors.As(err, &irrelevant),
		errors.As(err, &slotOrder):
		return ClassProtocolState
	}
	var (
		malformedErr ErrMalformedUpdate
		fraction     ErrInvalidFraction
		minimal      ErrLessThanMinimalParticipants
		insufficient ErrInsufficientParticipants
		genesis      ErrNonEmptyBeaconHeaderAtGenesisSlot
		empty        ErrEmptyBeaconHeader
		diffSlot     ErrDifferentSlotInMisbehaviour
		sameHeader   ErrSameFinalizedHeaderInMisbehaviour
		notFinalized ErrNotFinalizedNextSyncCommittee
		diffPeriod   ErrDifferentPeriodInMisbehaviour
		sameNext     ErrSameNextSyncCommitteeInMisbehaviour
	)
	switch {
	case errors.Is(err, ErrFinalizedHeaderNotFound),
		errors.Is(err, ErrNonEmptyNextSyncCommittee),
		errors.Is(err, ErrNoExecutionPayload),
		errors.Is(err, ErrNoNextSyncCommitteeInMisbehaviour),
		errors.As(err, &forkNotSupported),
		errors.As(err, &malformedErr),
		errors.As(err, &fraction),
		errors.As(err, &minimal),
		errors.As(err, &insufficient),
		errors.As(err, &genesis),
		errors.As(err, &empty),
		errors.As(err, &diffSlot),
		errors.As(err, &sameHeader),
		errors.As(err, &notFinalized),
		errors.As(err, &diffPeriod),
		errors.As(err, &sameNext):
		return ClassStructural
	}
	return ClassCollaborator
}
