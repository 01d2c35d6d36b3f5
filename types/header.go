package types

import (
	"github.com/ethereum/go-ethereum/common"
	ssz "github.com/ferranbt/fastssz"
)

type BeaconBlockHeader struct {
	Slot          Slot        `json:"slot,string"`
	ProposerIndex uint64      `json:"proposer_index,string"`
	ParentRoot    common.Hash `json:"parent_root"`
	StateRoot     common.Hash `json:"state_root"`
	BodyRoot      common.Hash `json:"body_root"`
}

// IsZero reports whether h is the default header, the only header allowed
// at the genesis slot of a finality proof.
func (h *BeaconBlockHeader) IsZero() bool {
	return *h == BeaconBlockHeader{}
}

func (h *BeaconBlockHeader) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(h)
}

func (h *BeaconBlockHeader) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(h.Slot))
	hh.PutUint64(h.ProposerIndex)
	hh.PutBytes(h.ParentRoot[:])
	hh.PutBytes(h.StateRoot[:])
	hh.PutBytes(h.BodyRoot[:])
	hh.Merkleize(indx)
	return nil
}

// Root is the hash tree root of the header. Fixed size containers cannot
// fail to hash.
func (h *BeaconBlockHeader) Root() common.Hash {
	root, _ := h.HashTreeRoot()
	return root
}
