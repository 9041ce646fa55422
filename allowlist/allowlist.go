package allowlist

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/tree"
)

var ErrNotIncluded = errors.New("account is not included in the allow list")

// LeafHash maps an account into the leaf domain of the membership tree. The
// payload is the raw 20 byte address, so two lists over the same accounts
// commit to the same leaves.
func LeafHash(account common.Address) common.Hash {
	return tree.HashLeaf(account.Bytes())
}

// Allowlist is an immutable membership set together with its Merkle
// commitment. Order matters for proofs, not for membership.
type Allowlist struct {
	members []common.Address
	tree    *tree.Tree
}

// New builds the allow list and its tree. Duplicated accounts are kept,
// every position gets its own proof path.
func New(members []common.Address) *Allowlist {
	leaves := make([]common.Hash, 0, len(members))
	for _, member := range members {
		leaves = append(leaves, LeafHash(member))
	}

	return &Allowlist{
		members: append([]common.Address{}, members...),
		tree:    tree.New(leaves),
	}
}

// Root returns the Merkle commitment of the set.
func (a *Allowlist) Root() common.Hash {
	return a.tree.Root()
}

// Len returns the number of members, duplicates included.
func (a *Allowlist) Len() int {
	return len(a.members)
}

// Members returns the set in proof order.
func (a *Allowlist) Members() []common.Address {
	return append([]common.Address{}, a.members...)
}

// Contains reports whether account is a member.
func (a *Allowlist) Contains(account common.Address) bool {
	for _, member := range a.members {
		if member == account {
			return true
		}
	}

	return false
}

// ProofFor returns the membership proof of account, taking the first
// position when the account appears more than once.
func (a *Allowlist) ProofFor(account common.Address) (tree.Proof, error) {
	for i, member := range a.members {
		if member == account {
			return a.tree.ProofForIndex(i)
		}
	}

	return nil, ErrNotIncluded
}

// ProofForIndex returns the membership proof of the member at the given
// position.
func (a *Allowlist) ProofForIndex(index int) (tree.Proof, error) {
	return a.tree.ProofForIndex(index)
}
