package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"path"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/allowlist"
	"github.com/sinycat/merkledrop/batch"
	"github.com/sinycat/merkledrop/collectible"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/drop"
	"github.com/sinycat/merkledrop/fungible"
	"github.com/sinycat/merkledrop/log"
	"github.com/sinycat/merkledrop/market"
	"github.com/sinycat/merkledrop/rpc/types"
	"github.com/sinycat/merkledrop/tree"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

var (
	admin         = common.HexToAddress("0xadadadadadadadadadadadadadadadadadadadad")
	dropCustody   = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	marketCustody = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	alice         = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob           = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type testEndpoints struct {
	drop   *DropEndpoints
	market *MarketEndpoints
	funds  *fungible.Ledger
	items  *collectible.Collection
}

func newTestEndpoints(t *testing.T) *testEndpoints {
	t.Helper()

	logger := log.WithFields("module", "rpc-test")
	dbPath := path.Join(t.TempDir(), "rpc.sqlite")
	database, err := db.NewSQLiteDB(dbPath)
	require.NoError(t, err)
	funds, err := fungible.NewLedger(logger, database, 1, common.HexToAddress("0xf0f0"))
	require.NoError(t, err)
	items, err := collectible.NewCollection(logger, database, "drop/")
	require.NoError(t, err)
	sets, err := allowlist.NewStore(logger, database)
	require.NoError(t, err)
	ledger, err := drop.NewLedger(logger, database, funds, items, drop.Config{
		Admin:     admin,
		Custody:   dropCustody,
		MaxSupply: 10,
		BasePrice: 100,
	})
	require.NoError(t, err)
	mkt, err := market.New(logger, database, funds, items, market.Config{Custody: marketCustody})
	require.NoError(t, err)
	executor := batch.NewExecutor(logger, database, funds, ledger, mkt)

	return &testEndpoints{
		drop:   NewDropEndpoints(logger, testTimeout, testTimeout, ledger, sets, executor),
		market: NewMarketEndpoints(logger, testTimeout, testTimeout, mkt),
		funds:  funds,
		items:  items,
	}
}

func TestDropEndpoints(t *testing.T) {
	ctx := context.Background()
	te := newTestEndpoints(t)
	require.NoError(t, te.funds.Mint(ctx, alice, big.NewInt(1000)))
	require.NoError(t, te.funds.Approve(ctx, alice, dropCustody, big.NewInt(1000)))

	res, rpcErr := te.drop.PublishAllowlist([]common.Address{alice})
	require.Nil(t, rpcErr)
	root, ok := res.(common.Hash)
	require.True(t, ok)

	t.Run("setRoot requires the admin", func(t *testing.T) {
		_, rpcErr := te.drop.SetRoot(bob, root)
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), drop.ErrUnauthorized.Error())

		_, rpcErr = te.drop.SetRoot(admin, root)
		require.Nil(t, rpcErr)
	})

	t.Run("proofFor and isWhitelisted", func(t *testing.T) {
		res, rpcErr := te.drop.ProofFor(root, alice)
		require.Nil(t, rpcErr)
		proof, ok := res.(tree.Proof)
		require.True(t, ok)

		res, rpcErr = te.drop.IsWhitelisted(alice, proof)
		require.Nil(t, rpcErr)
		require.Equal(t, true, res)

		res, rpcErr = te.drop.IsWhitelisted(bob, proof)
		require.Nil(t, rpcErr)
		require.Equal(t, false, res)
	})

	t.Run("proofFor misses", func(t *testing.T) {
		_, rpcErr := te.drop.ProofFor(root, bob)
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), "not in the allow-list")

		_, rpcErr = te.drop.ProofFor(common.HexToHash("0xbad"), alice)
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), "unknown allow-list root")
	})

	t.Run("claim and claimStatus", func(t *testing.T) {
		_, rpcErr := te.drop.ClaimStatus(alice)
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), "has not claimed")

		res, rpcErr := te.drop.ProofFor(root, alice)
		require.Nil(t, rpcErr)
		proof, ok := res.(tree.Proof)
		require.True(t, ok)

		res, rpcErr = te.drop.Claim(alice, proof, nil)
		require.Nil(t, rpcErr)
		require.Equal(t, uint64(1), res)

		res, rpcErr = te.drop.ClaimStatus(alice)
		require.Nil(t, rpcErr)
		record, ok := res.(*drop.ClaimRecord)
		require.True(t, ok)
		require.Equal(t, big.NewInt(50), record.PricePaid)
		require.True(t, record.Discounted)

		_, rpcErr = te.drop.Claim(alice, proof, nil)
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), drop.ErrAlreadyClaimed.Error())
	})

	t.Run("status reflects issuance", func(t *testing.T) {
		res, rpcErr := te.drop.Status()
		require.Nil(t, rpcErr)
		status, ok := res.(types.DropStatus)
		require.True(t, ok)
		require.Equal(t, root, status.Root)
		require.Equal(t, big.NewInt(100), status.BasePrice)
		require.Equal(t, uint64(1), status.Issued)
		require.Equal(t, uint64(10), status.MaxSupply)
	})

	t.Run("withdraw", func(t *testing.T) {
		_, rpcErr := te.drop.Withdraw(bob, bob, big.NewInt(1))
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), drop.ErrUnauthorized.Error())

		_, rpcErr = te.drop.Withdraw(admin, admin, big.NewInt(50))
		require.Nil(t, rpcErr)

		balance, err := te.funds.BalanceOf(ctx, admin)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(50), balance)
	})
}

func TestBatchEndpoint(t *testing.T) {
	ctx := context.Background()
	te := newTestEndpoints(t)
	require.NoError(t, te.funds.Mint(ctx, bob, big.NewInt(1000)))

	approve, err := marshalParams(batch.ApproveParams{Spender: dropCustody, Amount: big.NewInt(100)})
	require.NoError(t, err)
	claim, err := marshalParams(batch.ClaimParams{Proof: tree.EmptyProof})
	require.NoError(t, err)

	res, rpcErr := te.drop.Batch(bob, []batch.Call{
		{Method: batch.MethodApprove, Params: approve},
		{Method: batch.MethodClaim, Params: claim},
	})
	require.Nil(t, rpcErr)
	results, ok := res.([]batch.Result)
	require.True(t, ok)
	require.Len(t, results, 2)

	owner, err := te.items.OwnerOf(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, bob, owner)

	t.Run("failing batch reports the sub-call", func(t *testing.T) {
		_, rpcErr := te.drop.Batch(bob, []batch.Call{
			{Method: batch.MethodClaim, Params: claim},
		})
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), drop.ErrAlreadyClaimed.Error())
	})
}

func TestMarketEndpoints(t *testing.T) {
	ctx := context.Background()
	te := newTestEndpoints(t)
	tokenID, err := te.items.Mint(ctx, alice, "")
	require.NoError(t, err)
	require.NoError(t, te.funds.Mint(ctx, bob, big.NewInt(1000)))

	t.Run("list and getListing", func(t *testing.T) {
		_, rpcErr := te.market.List(alice, tokenID, big.NewInt(40))
		require.Nil(t, rpcErr)

		res, rpcErr := te.market.GetListing(tokenID)
		require.Nil(t, rpcErr)
		listing, ok := res.(*market.Listing)
		require.True(t, ok)
		require.True(t, listing.Active)
		require.Equal(t, alice, listing.Seller)
	})

	t.Run("buy", func(t *testing.T) {
		_, rpcErr := te.market.Buy(bob, tokenID)
		require.Nil(t, rpcErr)

		owner, err := te.items.OwnerOf(ctx, tokenID)
		require.NoError(t, err)
		require.Equal(t, bob, owner)

		sellerBalance, err := te.funds.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(40), sellerBalance)
	})

	t.Run("unlist inactive", func(t *testing.T) {
		_, rpcErr := te.market.Unlist(alice, tokenID)
		require.NotNil(t, rpcErr)
		require.Contains(t, rpcErr.Error(), market.ErrListingInactive.Error())
	})
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	return json.Marshal(params)
}
