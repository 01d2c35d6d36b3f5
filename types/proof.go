package types

import (
	"fmt"

	"github.com/MariusVanDerWijden/eth2-lc/merkle"
	"github.com/ethereum/go-ethereum/common"
	ssz "github.com/ferranbt/fastssz"
)

// NewTree builds a tree of the given depth over leaves, padding with zero
// chunks.
func NewTree(leaves []common.Hash, depth int) (*ssz.Node, error) {
	width := 1 << uint(depth)
	if len(leaves) > width {
		return nil, fmt.Errorf("%d leaves do not fit a tree of depth %d", len(leaves), depth)
	}
	nodes := make([]*ssz.Node, width)
	for i := range nodes {
		if i < len(leaves) {
			leaf := leaves[i]
			nodes[i] = ssz.NewNodeWithValue(leaf[:])
		} else {
			nodes[i] = ssz.EmptyLeaf()
		}
	}
	return ssz.TreeFromNodes(nodes)
}

// Prove returns the branch of the node at gindex, ordered from the leaf
// upwards.
func Prove(tree *ssz.Node, gindex uint64) ([]common.Hash, error) {
	if gindex == 0 {
		return nil, merkle.ErrInvalidGeneralizedIndex
	}
	// Prove walks into the children of leaves, Get stops at them.
	if _, err := tree.Get(int(gindex)); err != nil {
		return nil, err
	}
	proof, err := tree.Prove(int(gindex))
	if err != nil {
		return nil, err
	}
	branch := make([]common.Hash, len(proof.Hashes))
	for i, hash := range proof.Hashes {
		branch[i] = common.BytesToHash(hash)
	}
	return branch, nil
}

// Root returns the root of a tree built by NewTree.
func Root(tree *ssz.Node) common.Hash {
	return common.BytesToHash(tree.Hash())
}

// Uint64Leaf is the SSZ chunk of v.
func Uint64Leaf(v uint64) common.Hash {
	return common.BytesToHash(ssz.LeafFromUint64(v).Hash())
}
