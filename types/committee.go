package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ssz "github.com/ferranbt/fastssz"
	"github.com/prysmaticlabs/go-bitfield"
)

type SyncCommittee struct {
	Pubkeys         []BLSPubkey `json:"pubkeys"`
	AggregatePubkey BLSPubkey   `json:"aggregate_pubkey"`
}

// Validate checks the committee holds exactly size keys.
func (c *SyncCommittee) Validate(size uint64) error {
	if uint64(len(c.Pubkeys)) != size {
		return fmt.Errorf("invalid sync committee size: got %d, want %d", len(c.Pubkeys), size)
	}
	return nil
}

func (c *SyncCommittee) Equal(other *SyncCommittee) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.AggregatePubkey != other.AggregatePubkey || len(c.Pubkeys) != len(other.Pubkeys) {
		return false
	}
	for i := range c.Pubkeys {
		if c.Pubkeys[i] != other.Pubkeys[i] {
			return false
		}
	}
	return true
}

func (c *SyncCommittee) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(c)
}

func (c *SyncCommittee) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	{
		subIndx := hh.Index()
		for _, pubkey := range c.Pubkeys {
			hh.PutBytes(pubkey[:])
		}
		hh.Merkleize(subIndx)
	}
	hh.PutBytes(c.AggregatePubkey[:])
	hh.Merkleize(indx)
	return nil
}

// Root is the hash tree root of the committee.
func (c *SyncCommittee) Root() common.Hash {
	root, _ := c.HashTreeRoot()
	return root
}

// Bitvector is the read side shared by the fixed size go-bitfield vectors.
type Bitvector interface {
	BitAt(idx uint64) bool
	Len() uint64
	Count() uint64
}

type SyncAggregate struct {
	SyncCommitteeBits      hexutil.Bytes `json:"sync_committee_bits"`
	SyncCommitteeSignature BLSSignature  `json:"sync_committee_signature"`
}

// Bits returns the participation bits as a bitvector of the committee size.
func (a *SyncAggregate) Bits(size uint64) (Bitvector, error) {
	if uint64(len(a.SyncCommitteeBits))*8 != size {
		return nil, fmt.Errorf("invalid sync committee bits length: got %d bytes, want %d", len(a.SyncCommitteeBits), size/8)
	}
	bits := make([]byte, len(a.SyncCommitteeBits))
	copy(bits, a.SyncCommitteeBits)
	switch size {
	case 32:
		return bitfield.Bitvector32(bits), nil
	case 64:
		return bitfield.Bitvector64(bits), nil
	case 512:
		return bitfield.Bitvector512(bits), nil
	}
	return nil, fmt.Errorf("unsupported sync committee size %d", size)
}
