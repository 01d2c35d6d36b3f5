package core

import (
	"math/bits"

	"github.com/MariusVanDerWijden/eth2-lc/config"
	"github.com/MariusVanDerWijden/eth2-lc/types"
	"github.com/prysmaticlabs/prysm/shared/bls"
)

// lessProduct reports whether a*b < c*d without overflowing.
func lessProduct(a, b, c, d uint64) bool {
	hi1, lo1 := bits.Mul64(a, b)
	hi2, lo2 := bits.Mul64(c, d)
	return hi1 < hi2 || (hi1 == hi2 && lo1 < lo2)
}

// signatureForkVersion returns the fork version an update signed at
// signatureSlot uses. Sync committees sign the block of the previous slot.
func signatureForkVersion(cc *ChainContext, signatureSlot types.Slot) config.Version {
	slot := signatureSlot
	if slot > 0 {
		slot--
	}
	return cc.ForkVersion(cc.EpochAtSlot(slot))
}

// VerifySyncCommitteeAttestation checks that the sync aggregate of update is
// a signature over its attested header by enough members of committee.
//
// a) at least MIN_SYNC_COMMITTEE_PARTICIPANTS members signed
// b) signers reach the trust level of the committee size
// c) the aggregate signature verifies against the signers' keys under the
//    sync committee domain of the signature slot's fork
func VerifySyncCommitteeAttestation(cc *ChainContext, update *types.LightClientUpdate, committee *types.SyncCommittee) error {
	size := cc.SyncCommitteeSize
	if err := committee.Validate(size); err != nil {
		return malformed("%v", err)
	}
	participation, err := update.SyncAggregate.Bits(size)
	if err != nil {
		return malformed("%v", err)
	}
	participants := participation.Count()
	if participants < cc.MinSyncCommitteeParticipants {
		return ErrLessThanMinimalParticipants{Participants: participants, Minimum: cc.MinSyncCommitteeParticipants}
	}
	if lessProduct(participants, cc.TrustLevel.Denominator, participation.Len(), cc.TrustLevel.Numerator) {
		return ErrInsufficientParticipants{Participants: participants, Total: participation.Len(), TrustLevel: cc.TrustLevel}
	}

	pubkeys := make([]bls.PublicKey, 0, participants)
	for i, pubkey := range committee.Pubkeys {
		if !participation.BitAt(uint64(i)) {
			continue
		}
		key, err := bls.PublicKeyFromBytes(pubkey[:])
		if err != nil {
			return malformed("invalid sync committee pubkey %d: %v", i, err)
		}
		pubkeys = append(pubkeys, key)
	}
	signature, err := bls.SignatureFromBytes(update.SyncAggregate.SyncCommitteeSignature[:])
	if err != nil {
		return malformed("invalid sync committee signature: %v", err)
	}

	domain, err := types.ComputeDomain(config.DOMAIN_SYNC_COMMITTEE, signatureForkVersion(cc, update.SignatureSlot), cc.GenesisValidatorsRoot)
	if err != nil {
		return err
	}
	signingRoot, err := types.ComputeSigningRoot(update.AttestedHeader.Beacon.Root(), domain)
	if err != nil {
		return err
	}
	if !signature.FastAggregateVerify(pubkeys, signingRoot) {
		return ErrInvalidBLSSignatures
	}
	return nil
}
