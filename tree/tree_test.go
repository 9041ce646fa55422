package tree

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, 0, n)
	for i := 0; i < n; i++ {
		leaves = append(leaves, HashLeaf([]byte(fmt.Sprintf("member-%d", i))))
	}
	return leaves
}

func TestEmptyTree(t *testing.T) {
	tr := New(nil)
	require.Equal(t, EmptyRoot, tr.Root())
	require.Equal(t, 0, tr.LeafCount())

	_, err := tr.ProofForIndex(0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	// nothing verifies against the empty root
	require.False(t, Verify(tr.Root(), HashLeaf([]byte("anyone")), EmptyProof))
}

func TestSingleLeafTree(t *testing.T) {
	leaf := HashLeaf([]byte("only-member"))
	tr := New([]common.Hash{leaf})

	require.Equal(t, leaf, tr.Root())

	proof, err := tr.ProofForIndex(0)
	require.NoError(t, err)
	require.Len(t, proof, 0)
	require.True(t, Verify(tr.Root(), leaf, proof))
}

func TestEveryLeafVerifies(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 15, 16, 33} {
		n := n
		t.Run(fmt.Sprintf("%d leaves", n), func(t *testing.T) {
			leaves := testLeaves(n)
			tr := New(leaves)
			root := tr.Root()

			for i, leaf := range leaves {
				proof, err := tr.ProofForIndex(i)
				require.NoError(t, err)
				require.True(t, Verify(root, leaf, proof), "leaf %d", i)
			}
		})
	}
}

func TestOutsiderDoesNotVerify(t *testing.T) {
	leaves := testLeaves(9)
	tr := New(leaves)
	root := tr.Root()

	outsider := HashLeaf([]byte("not-a-member"))
	for i := range leaves {
		proof, err := tr.ProofForIndex(i)
		require.NoError(t, err)
		require.False(t, Verify(root, outsider, proof))
	}
}

func TestProofBoundToLeaf(t *testing.T) {
	leaves := testLeaves(8)
	tr := New(leaves)
	root := tr.Root()

	proof0, err := tr.ProofForIndex(0)
	require.NoError(t, err)

	// a valid proof for leaf 0 must not admit leaf 2
	require.False(t, Verify(root, leaves[2], proof0))
}

func TestTamperedProofFails(t *testing.T) {
	leaves := testLeaves(6)
	tr := New(leaves)
	root := tr.Root()

	proof, err := tr.ProofForIndex(3)
	require.NoError(t, err)
	require.True(t, Verify(root, leaves[3], proof))

	tampered := make(Proof, len(proof))
	copy(tampered, proof)
	tampered[0][31] ^= 0x01
	require.False(t, Verify(root, leaves[3], tampered))

	truncated := proof[:len(proof)-1]
	require.False(t, Verify(root, leaves[3], truncated))

	extended := append(append(Proof{}, proof...), HashLeaf([]byte("extra")))
	require.False(t, Verify(root, leaves[3], extended))
}

func TestOddLeafPromotion(t *testing.T) {
	leaves := testLeaves(3)
	tr := New(leaves)

	// layer 0: a b c / layer 1: H(a,b) c / layer 2: H(H(a,b), c)
	expectedRoot := HashInner(HashInner(leaves[0], leaves[1]), leaves[2])
	require.Equal(t, expectedRoot, tr.Root())

	// the promoted leaf has one sibling less than its peers
	proofA, err := tr.ProofForIndex(0)
	require.NoError(t, err)
	require.Len(t, proofA, 2)

	proofC, err := tr.ProofForIndex(2)
	require.NoError(t, err)
	require.Len(t, proofC, 1)
	require.True(t, Verify(tr.Root(), leaves[2], proofC))
}

func TestHashInnerCommutes(t *testing.T) {
	a := HashLeaf([]byte("a"))
	b := HashLeaf([]byte("b"))
	require.Equal(t, HashInner(a, b), HashInner(b, a))
	require.NotEqual(t, HashInner(a, b), HashInner(a, a))
}

func TestLeafInnerDomainsDisjoint(t *testing.T) {
	a := HashLeaf([]byte("a"))
	b := HashLeaf([]byte("b"))

	// hashing the concatenated pair through the leaf domain must not forge
	// the inner node
	concat := append(append([]byte{}, a[:]...), b[:]...)
	require.NotEqual(t, HashInner(a, b), HashLeaf(concat))
}

func TestDeterministicRoot(t *testing.T) {
	leaves := testLeaves(12)
	require.Equal(t, New(leaves).Root(), New(leaves).Root())
}
