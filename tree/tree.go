package tree

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

const (
	leafPrefix  = 0x00
	innerPrefix = 0x01
)

var (
	EmptyProof = Proof{}
	// EmptyRoot is the root of a tree with no leaves. No leaf hash can equal
	// it because every leaf goes through the prefixed hasher.
	EmptyRoot = common.Hash{}

	ErrIndexOutOfRange = errors.New("index out of range")
)

// Proof is the ordered list of sibling hashes that folds a leaf back up to
// the root, deepest level first. Its length varies with the leaf count.
type Proof []common.Hash

// HashLeaf hashes a payload into the leaf domain. The prefix byte keeps leaf
// and inner preimages disjoint, a 64 byte payload can never collide with a
// pair of inner nodes.
func HashLeaf(payload []byte) common.Hash {
	var hash common.Hash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte{leafPrefix})
	hasher.Write(payload)
	copy(hash[:], hasher.Sum(nil))

	return hash
}

// HashInner combines two sibling nodes into their parent. Operands are
// ordered bytewise before hashing, so proofs carry no direction bits and
// HashInner(a, b) == HashInner(b, a).
func HashInner(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var hash common.Hash
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte{innerPrefix})
	hasher.Write(a[:])
	hasher.Write(b[:])
	copy(hash[:], hasher.Sum(nil))

	return hash
}

// Tree is an in-memory Merkle tree over a fixed set of leaf hashes.
// Layer 0 holds the leaves in insertion order, each layer above pairs
// adjacent nodes. A trailing node without a partner is promoted to the next
// layer unchanged rather than paired with itself.
type Tree struct {
	layers [][]common.Hash
}

// New builds the full tree for the given leaves. Duplicated leaf hashes are
// kept, each index keeps its own proof path.
func New(leaves []common.Hash) *Tree {
	layer := make([]common.Hash, len(leaves))
	copy(layer, leaves)
	layers := [][]common.Hash{layer}

	for len(layer) > 1 {
		next := make([]common.Hash, 0, (len(layer)+1)/2) //nolint:mnd
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				// odd node at the end of the layer, promote as is
				next = append(next, layer[i])
				continue
			}
			next = append(next, HashInner(layer[i], layer[i+1]))
		}
		layers = append(layers, next)
		layer = next
	}

	return &Tree{layers: layers}
}

// Root returns the root hash. A single leaf tree has root == leaf, an empty
// tree has the zero root.
func (t *Tree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return EmptyRoot
	}

	return top[0]
}

// LeafCount returns the number of leaves the tree was built over.
func (t *Tree) LeafCount() int {
	return len(t.layers[0])
}

// ProofForIndex returns the sibling path of the leaf at the given index.
// Levels where the node had no partner contribute no sibling, so proofs of
// trees with non power of two leaf counts can be shorter than the height.
func (t *Tree) ProofForIndex(index int) (Proof, error) {
	if index < 0 || index >= len(t.layers[0]) {
		return nil, ErrIndexOutOfRange
	}

	proof := make(Proof, 0, len(t.layers))
	for h := 0; h < len(t.layers)-1; h++ {
		layer := t.layers[h]
		sibling := index + 1
		if index%2 == 1 {
			sibling = index - 1
		}
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		// a promoted node keeps position i/2 on the layer above, the same
		// arithmetic as a paired one
		index /= 2
	}

	return proof, nil
}

// Verify folds leaf through proof and compares the result against root.
// It consults no tree state, a forged or truncated proof just folds to a
// different hash and fails closed.
func Verify(root, leaf common.Hash, proof Proof) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = HashInner(computed, sibling)
	}

	return computed == root
}
