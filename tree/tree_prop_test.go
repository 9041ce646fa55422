package tree

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func leavesFromSeed(seed uint64, size int) []common.Hash {
	leaves := make([]common.Hash, 0, size)
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf, seed)
	for i := 0; i < size; i++ {
		binary.BigEndian.PutUint64(buf[8:], uint64(i))
		leaves = append(leaves, HashLeaf(buf))
	}
	return leaves
}

func TestProofCompleteness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	properties.Property("every member proof verifies against the root", prop.ForAll(
		func(seed uint64, size int) bool {
			leaves := leavesFromSeed(seed, size)
			tr := New(leaves)
			root := tr.Root()
			index := int(seed % uint64(size))

			proof, err := tr.ProofForIndex(index)
			if err != nil {
				return false
			}
			return Verify(root, leaves[index], proof)
		},
		gen.UInt64(),
		gen.IntRange(1, 128),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProofSoundness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	properties.Property("no member proof admits an outsider", prop.ForAll(
		func(seed uint64, size int) bool {
			leaves := leavesFromSeed(seed, size)
			tr := New(leaves)
			root := tr.Root()
			index := int(seed % uint64(size))
			outsider := HashLeaf([]byte("outsider"))

			proof, err := tr.ProofForIndex(index)
			if err != nil {
				return false
			}
			return !Verify(root, outsider, proof)
		},
		gen.UInt64(),
		gen.IntRange(1, 128),
	))

	properties.Property("proofs do not verify against another tree's root", prop.ForAll(
		func(seed uint64, size int) bool {
			leaves := leavesFromSeed(seed, size)
			tr := New(leaves)
			otherRoot := New(leavesFromSeed(seed+1, size+1)).Root()
			index := int(seed % uint64(size))

			proof, err := tr.ProofForIndex(index)
			if err != nil {
				return false
			}
			return !Verify(otherRoot, leaves[index], proof)
		},
		gen.UInt64(),
		gen.IntRange(1, 128),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestHashInnerCommutesProp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	properties.Property("HashInner(a, b) == HashInner(b, a)", prop.ForAll(
		func(a, b uint64) bool {
			ha := HashLeaf(binary.BigEndian.AppendUint64(nil, a))
			hb := HashLeaf(binary.BigEndian.AppendUint64(nil, b))
			return HashInner(ha, hb) == HashInner(hb, ha)
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
