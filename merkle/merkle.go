// Package merkle verifies SSZ style binary Merkle proofs addressed
// by generalized indices.
package merkle

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/minio/sha256-simd"
)

var ErrInvalidGeneralizedIndex = errors.New("invalid generalized index: 0")

// BranchLengthError is returned when a branch does not match the depth of
// its generalized index.
type BranchLengthError struct {
	Gindex uint64
	Depth  int
	Length int
}

func (e *BranchLengthError) Error() string {
	return fmt.Sprintf("invalid merkle branch length: gindex %d, got %d, want %d", e.Gindex, e.Length, e.Depth)
}

// BranchMismatchError is returned when a branch does not reconstruct the
// expected root.
type BranchMismatchError struct {
	Leaf     common.Hash
	Branch   []common.Hash
	Gindex   uint64
	Root     common.Hash
	Computed common.Hash
}

func (e *BranchMismatchError) Error() string {
	return fmt.Sprintf("invalid merkle branch: leaf %v, gindex %d, branch %v, got root %v, want %v",
		e.Leaf, e.Gindex, e.Branch, e.Computed, e.Root)
}

// Hash hashes data with SHA-256.
func Hash(data ...[]byte) common.Hash {
	h := sha256.New()
	for _, b := range data {
		h.Write(b)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// HashPair hashes the concatenation of two nodes.
func HashPair(left, right common.Hash) common.Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return sha256.Sum256(buf[:])
}

// Depth is floor(log2(gindex)).
func Depth(gindex uint64) int {
	return bits.Len64(gindex) - 1
}

// SubtreeIndex is the position of gindex among the nodes at its depth.
func SubtreeIndex(gindex uint64) uint64 {
	return gindex - 1<<uint(Depth(gindex))
}

// Gindex returns the generalized index of the leaf at index in a tree of the
// given depth.
func Gindex(depth int, index uint64) uint64 {
	return 1<<uint(depth) + index
}

// Concat returns the generalized index of inner, a node inside the subtree
// rooted at outer.
func Concat(outer, inner uint64) uint64 {
	depth := Depth(inner)
	return outer<<uint(depth) | SubtreeIndex(inner)
}

// VerifyBranch checks that leaf, hashed up along branch, produces root at the
// position addressed by gindex. The branch is ordered from the leaf upwards.
func VerifyBranch(leaf common.Hash, branch []common.Hash, gindex uint64, root common.Hash) error {
	if gindex == 0 {
		return ErrInvalidGeneralizedIndex
	}
	depth := Depth(gindex)
	if len(branch) != depth {
		return &BranchLengthError{Gindex: gindex, Depth: depth, Length: len(branch)}
	}
	index := SubtreeIndex(gindex)
	value := leaf
	for i, sibling := range branch {
		if index>>uint(i)&1 == 1 {
			value = HashPair(sibling, value)
		} else {
			value = HashPair(value, sibling)
		}
	}
	if value != root {
		return &BranchMismatchError{Leaf: leaf, Branch: branch, Gindex: gindex, Root: root, Computed: value}
	}
	return nil
}
