package market

import (
	"context"
	"math/big"
	"path"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/collectible"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/fungible"
	"github.com/sinycat/merkledrop/log"
	"github.com/stretchr/testify/require"
)

var (
	custody = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	alice   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type testMarket struct {
	market *Market
	funds  *fungible.Ledger
	items  *collectible.Collection
}

func newTestMarket(t *testing.T) *testMarket {
	t.Helper()

	logger := log.WithFields("module", "market-test")
	dbPath := path.Join(t.TempDir(), "market.sqlite")
	database, err := db.NewSQLiteDB(dbPath)
	require.NoError(t, err)
	funds, err := fungible.NewLedger(logger, database, 1, common.HexToAddress("0xf0f0"))
	require.NoError(t, err)
	items, err := collectible.NewCollection(logger, database, "drop/")
	require.NoError(t, err)
	market, err := New(logger, database, funds, items, Config{Custody: custody})
	require.NoError(t, err)

	return &testMarket{
		market: market,
		funds:  funds,
		items:  items,
	}
}

func TestListBuyUnlistCycle(t *testing.T) {
	ctx := context.Background()
	tm := newTestMarket(t)
	tokenID, err := tm.items.Mint(ctx, alice, "")
	require.NoError(t, err)
	require.NoError(t, tm.funds.Mint(ctx, bob, big.NewInt(1000)))

	t.Run("list moves token into custody", func(t *testing.T) {
		require.NoError(t, tm.market.List(ctx, alice, tokenID, big.NewInt(40)))

		owner, err := tm.items.OwnerOf(ctx, tokenID)
		require.NoError(t, err)
		require.Equal(t, custody, owner)

		listing, err := tm.market.GetListing(ctx, tokenID)
		require.NoError(t, err)
		require.True(t, listing.Active)
		require.Equal(t, alice, listing.Seller)
		require.Equal(t, big.NewInt(40), listing.Price)
	})

	t.Run("buy pays the seller and hands over the token", func(t *testing.T) {
		require.NoError(t, tm.market.Buy(ctx, bob, tokenID))

		sellerBalance, err := tm.funds.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(40), sellerBalance)

		buyerBalance, err := tm.funds.BalanceOf(ctx, bob)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(960), buyerBalance)

		owner, err := tm.items.OwnerOf(ctx, tokenID)
		require.NoError(t, err)
		require.Equal(t, bob, owner)

		listing, err := tm.market.GetListing(ctx, tokenID)
		require.NoError(t, err)
		require.False(t, listing.Active)
	})

	t.Run("unlist after the sale fails", func(t *testing.T) {
		err := tm.market.Unlist(ctx, alice, tokenID)
		require.ErrorIs(t, err, ErrListingInactive)
	})

	t.Run("new holder can relist", func(t *testing.T) {
		require.NoError(t, tm.market.List(ctx, bob, tokenID, big.NewInt(90)))
		require.NoError(t, tm.market.Unlist(ctx, bob, tokenID))

		owner, err := tm.items.OwnerOf(ctx, tokenID)
		require.NoError(t, err)
		require.Equal(t, bob, owner)
	})
}

func TestListPreconditions(t *testing.T) {
	ctx := context.Background()
	tm := newTestMarket(t)
	tokenID, err := tm.items.Mint(ctx, alice, "")
	require.NoError(t, err)

	t.Run("only the holder can list", func(t *testing.T) {
		err := tm.market.List(ctx, bob, tokenID, big.NewInt(10))
		require.ErrorIs(t, err, collectible.ErrNotHolder)

		listing, err := tm.market.GetListing(ctx, tokenID)
		require.NoError(t, err)
		require.False(t, listing.Active)
	})

	t.Run("price must be positive", func(t *testing.T) {
		err := tm.market.List(ctx, alice, tokenID, big.NewInt(0))
		require.ErrorIs(t, err, fungible.ErrInvalidAmount)
	})

	t.Run("double listing", func(t *testing.T) {
		require.NoError(t, tm.market.List(ctx, alice, tokenID, big.NewInt(10)))
		err := tm.market.List(ctx, alice, tokenID, big.NewInt(20))
		require.ErrorIs(t, err, ErrAlreadyListed)
	})

	t.Run("seller cannot move a listed token", func(t *testing.T) {
		err := tm.items.Transfer(ctx, alice, bob, tokenID)
		require.ErrorIs(t, err, collectible.ErrNotHolder)
	})

	t.Run("unknown token", func(t *testing.T) {
		err := tm.market.List(ctx, alice, 404, big.NewInt(10))
		require.ErrorIs(t, err, db.ErrNotFound)
	})
}

func TestUnlistPreconditions(t *testing.T) {
	ctx := context.Background()
	tm := newTestMarket(t)
	tokenID, err := tm.items.Mint(ctx, alice, "")
	require.NoError(t, err)
	require.NoError(t, tm.market.List(ctx, alice, tokenID, big.NewInt(10)))

	t.Run("only the seller can unlist", func(t *testing.T) {
		err := tm.market.Unlist(ctx, bob, tokenID)
		require.ErrorIs(t, err, ErrNotSeller)
	})

	t.Run("inactive listing", func(t *testing.T) {
		err := tm.market.Unlist(ctx, alice, 404)
		require.ErrorIs(t, err, ErrListingInactive)
	})

	t.Run("seller gets the token back", func(t *testing.T) {
		require.NoError(t, tm.market.Unlist(ctx, alice, tokenID))

		owner, err := tm.items.OwnerOf(ctx, tokenID)
		require.NoError(t, err)
		require.Equal(t, alice, owner)
	})
}

func TestBuyFailuresRollBack(t *testing.T) {
	ctx := context.Background()
	tm := newTestMarket(t)
	tokenID, err := tm.items.Mint(ctx, alice, "")
	require.NoError(t, err)
	require.NoError(t, tm.market.List(ctx, alice, tokenID, big.NewInt(50)))

	t.Run("buyer cannot afford it", func(t *testing.T) {
		require.NoError(t, tm.funds.Mint(ctx, bob, big.NewInt(49)))
		err := tm.market.Buy(ctx, bob, tokenID)
		require.ErrorIs(t, err, ErrPaymentFailed)
		require.ErrorIs(t, err, fungible.ErrInsufficientBalance)

		// listing and custody untouched
		listing, err := tm.market.GetListing(ctx, tokenID)
		require.NoError(t, err)
		require.True(t, listing.Active)

		owner, err := tm.items.OwnerOf(ctx, tokenID)
		require.NoError(t, err)
		require.Equal(t, custody, owner)

		balance, err := tm.funds.BalanceOf(ctx, bob)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(49), balance)
	})

	t.Run("nothing to buy", func(t *testing.T) {
		err := tm.market.Buy(ctx, carol, 404)
		require.ErrorIs(t, err, ErrListingInactive)
	})

	t.Run("double buy", func(t *testing.T) {
		require.NoError(t, tm.funds.Mint(ctx, bob, big.NewInt(1)))
		require.NoError(t, tm.market.Buy(ctx, bob, tokenID))
		err := tm.market.Buy(ctx, bob, tokenID)
		require.ErrorIs(t, err, ErrListingInactive)
	})
}

func TestSelfPurchase(t *testing.T) {
	ctx := context.Background()
	tm := newTestMarket(t)
	tokenID, err := tm.items.Mint(ctx, alice, "")
	require.NoError(t, err)
	require.NoError(t, tm.funds.Mint(ctx, alice, big.NewInt(100)))
	require.NoError(t, tm.market.List(ctx, alice, tokenID, big.NewInt(60)))

	require.NoError(t, tm.market.Buy(ctx, alice, tokenID))

	owner, err := tm.items.OwnerOf(ctx, tokenID)
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	balance, err := tm.funds.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), balance)

	listing, err := tm.market.GetListing(ctx, tokenID)
	require.NoError(t, err)
	require.False(t, listing.Active)
}
