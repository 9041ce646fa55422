package allowlist

import (
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/sinycat/merkledrop/tree"
)

func testMembers(n int) []common.Address {
	members := make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		members = append(members, common.HexToAddress(fmt.Sprintf("0x%040x", i+1)))
	}
	return members
}

func TestAllowlistMembership(t *testing.T) {
	members := testMembers(5)
	list := New(members)

	require.Equal(t, 5, list.Len())
	require.Equal(t, members, list.Members())

	for _, member := range members {
		require.True(t, list.Contains(member))

		proof, err := list.ProofFor(member)
		require.NoError(t, err)
		require.True(t, tree.Verify(list.Root(), LeafHash(member), proof))
	}

	outsider := common.HexToAddress("0xdead000000000000000000000000000000000000")
	require.False(t, list.Contains(outsider))
	_, err := list.ProofFor(outsider)
	require.ErrorIs(t, err, ErrNotIncluded)
}

func TestAllowlistSingleMember(t *testing.T) {
	member := common.HexToAddress("0x0000000000000000000000000000000000000001")
	list := New([]common.Address{member})

	// single member list commits to the leaf itself
	require.Equal(t, LeafHash(member), list.Root())

	proof, err := list.ProofFor(member)
	require.NoError(t, err)
	require.Len(t, proof, 0)
	require.True(t, tree.Verify(list.Root(), LeafHash(member), proof))
}

func TestAllowlistEmpty(t *testing.T) {
	list := New(nil)
	require.Equal(t, tree.EmptyRoot, list.Root())
	require.False(t, list.Contains(common.Address{}))
}

func TestAllowlistDuplicateMember(t *testing.T) {
	member := common.HexToAddress("0x0000000000000000000000000000000000000007")
	members := append(testMembers(3), member, member)
	list := New(members)

	// first occurrence wins, and both positions still verify
	proofFirst, err := list.ProofFor(member)
	require.NoError(t, err)
	require.True(t, tree.Verify(list.Root(), LeafHash(member), proofFirst))

	proofLast, err := list.ProofForIndex(list.Len() - 1)
	require.NoError(t, err)
	require.True(t, tree.Verify(list.Root(), LeafHash(member), proofLast))
}

func TestProofNotTransferable(t *testing.T) {
	members := testMembers(4)
	list := New(members)

	proof, err := list.ProofFor(members[0])
	require.NoError(t, err)

	// a member's proof must not admit any other account
	outsider := common.HexToAddress("0xdead000000000000000000000000000000000000")
	require.False(t, tree.Verify(list.Root(), LeafHash(outsider), proof))
	require.False(t, tree.Verify(list.Root(), LeafHash(members[1]), proof))
}

func TestFromFile(t *testing.T) {
	content := `# launch partners
0x1111111111111111111111111111111111111111

0x2222222222222222222222222222222222222222
   0x3333333333333333333333333333333333333333
`
	file := path.Join(t.TempDir(), "members.txt")
	require.NoError(t, os.WriteFile(file, []byte(content), 0600))

	members, err := FromFile(file)
	require.NoError(t, err)
	require.Equal(t, []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}, members)
}

func TestFromFileRejectsGarbage(t *testing.T) {
	file := path.Join(t.TempDir(), "members.txt")
	require.NoError(t, os.WriteFile(file, []byte("0x1111\n"), 0600))

	_, err := FromFile(file)
	require.Error(t, err)
	require.ErrorContains(t, err, "not a hex address")
}
