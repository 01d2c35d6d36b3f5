package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ssz "github.com/ferranbt/fastssz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := range leaves {
		leaves[i] = Hash([]byte{byte(i), 0xaa})
	}
	return leaves
}

func testTree(t *testing.T, leaves []common.Hash) *ssz.Node {
	nodes := make([]*ssz.Node, len(leaves))
	for i := range leaves {
		leaf := leaves[i]
		nodes[i] = ssz.NewNodeWithValue(leaf[:])
	}
	tree, err := ssz.TreeFromNodes(nodes)
	require.NoError(t, err)
	return tree
}

func testBranch(t *testing.T, tree *ssz.Node, gindex uint64) ([]common.Hash, common.Hash) {
	proof, err := tree.Prove(int(gindex))
	require.NoError(t, err)
	branch := make([]common.Hash, len(proof.Hashes))
	for i, h := range proof.Hashes {
		branch[i] = common.BytesToHash(h)
	}
	return branch, common.BytesToHash(tree.Hash())
}

func TestDepthAndSubtreeIndex(t *testing.T) {
	tests := []struct {
		gindex  uint64
		depth   int
		subtree uint64
	}{
		{1, 0, 0},
		{2, 1, 0},
		{3, 1, 1},
		{25, 4, 9},
		{54, 5, 22},
		{55, 5, 23},
		{105, 6, 41},
		{169, 7, 41},
		{1 << 63, 63, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.depth, Depth(tt.gindex), "gindex %d", tt.gindex)
		assert.Equal(t, tt.subtree, SubtreeIndex(tt.gindex), "gindex %d", tt.gindex)
	}
	// finalized root sits in the checkpoint container at state leaf 20
	assert.Equal(t, uint64(105), Concat(Gindex(5, 20), 3))
	assert.Equal(t, uint64(169), Concat(Gindex(6, 20), 3))
	// execution state root inside the payload at body leaf 9
	assert.Equal(t, uint64(25), Gindex(4, 9))
}

func TestVerifyBranchRoundTrip(t *testing.T) {
	for _, depth := range []int{1, 2, 4, 5, 7} {
		leaves := testLeaves(1 << uint(depth))
		tree := testTree(t, leaves)
		for i, leaf := range leaves {
			gindex := Gindex(depth, uint64(i))
			branch, root := testBranch(t, tree, gindex)
			require.NoError(t, VerifyBranch(leaf, branch, gindex, root), "depth %d index %d", depth, i)
		}
	}
}

func TestVerifyBranchAgreesWithFastssz(t *testing.T) {
	leaves := testLeaves(16)
	tree := testTree(t, leaves)
	root := tree.Hash()
	for _, gindex := range []uint64{16, 18, 22, 25, 31} {
		proof, err := tree.Prove(int(gindex))
		require.NoError(t, err)
		ok, err := ssz.VerifyProof(root, proof)
		require.NoError(t, err)
		require.True(t, ok)

		branch, _ := testBranch(t, tree, gindex)
		require.NoError(t, VerifyBranch(common.BytesToHash(proof.Leaf), branch, gindex, common.BytesToHash(root)), "gindex %d", gindex)
	}
}

func TestVerifyBranchZeroHashes(t *testing.T) {
	zero1 := common.HexToHash("0xf5a5fd42d16a20302798ef6ed309979b43003d2320d9f0e8ea9831a92759fb4b")
	zero2 := common.HexToHash("0xdb56114e00fdd4c1f85c892bf35ac9a89289aaecb1ebd0a96cde606a748b5d71")
	zero3 := common.HexToHash("0xc78009fdf07fc56a11f122370658a353aaa542ed63e44c4bc15ff4cd105ab33c")

	assert.Equal(t, zero1, HashPair(common.Hash{}, common.Hash{}))
	branch := []common.Hash{{}, zero1, zero2}
	for gindex := uint64(8); gindex < 16; gindex++ {
		require.NoError(t, VerifyBranch(common.Hash{}, branch, gindex, zero3), "gindex %d", gindex)
	}
	require.Error(t, VerifyBranch(common.Hash{1}, branch, 8, zero3))
}

func TestVerifyBranchBitFlips(t *testing.T) {
	leaves := testLeaves(32)
	tree := testTree(t, leaves)
	index := uint64(22)
	gindex := Gindex(5, index)
	branch, root := testBranch(t, tree, gindex)
	leaf := leaves[index]
	require.NoError(t, VerifyBranch(leaf, branch, gindex, root))

	for bit := 0; bit < 256; bit++ {
		flipped := leaf
		flipped[bit/8] ^= 1 << uint(bit%8)
		var mismatch *BranchMismatchError
		require.ErrorAs(t, VerifyBranch(flipped, branch, gindex, root), &mismatch)
		assert.Equal(t, flipped, mismatch.Leaf)
		assert.Equal(t, root, mismatch.Root)
	}
	for level := range branch {
		for bit := 0; bit < 256; bit += 31 {
			flipped := append([]common.Hash(nil), branch...)
			flipped[level][bit/8] ^= 1 << uint(bit%8)
			require.Error(t, VerifyBranch(leaf, flipped, gindex, root))
		}
	}
	for bit := 0; bit < 64; bit++ {
		require.Error(t, VerifyBranch(leaf, branch, gindex^(1<<uint(bit)), root), "gindex bit %d", bit)
	}
}

func TestVerifyBranchMalformed(t *testing.T) {
	leaves := testLeaves(4)
	tree := testTree(t, leaves)
	branch, root := testBranch(t, tree, 4)

	require.ErrorIs(t, VerifyBranch(leaves[0], nil, 0, root), ErrInvalidGeneralizedIndex)

	var lengthErr *BranchLengthError
	require.ErrorAs(t, VerifyBranch(leaves[0], branch[:1], 4, root), &lengthErr)
	assert.Equal(t, 2, lengthErr.Depth)
	assert.Equal(t, 1, lengthErr.Length)

	long := append(append([]common.Hash(nil), branch...), common.Hash{})
	require.ErrorAs(t, VerifyBranch(leaves[0], long, 4, root), &lengthErr)

	// the root itself at gindex 1 needs an empty branch
	require.NoError(t, VerifyBranch(root, nil, 1, root))
}
