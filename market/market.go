package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	"github.com/sinycat/merkledrop/collectible"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/fungible"
	"github.com/sinycat/merkledrop/log"
	"github.com/sinycat/merkledrop/market/migrations"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

var (
	ErrNotSeller       = errors.New("caller is not the seller of the listing")
	ErrListingInactive = errors.New("token has no active listing")
	ErrAlreadyListed   = errors.New("token already has an active listing")
	ErrPaymentFailed   = errors.New("payment failed")
)

// Market is the escrow marketplace. Listed tokens sit in the market's custody
// until they are bought or unlisted, so a seller cannot move a token out from
// under an open listing.
type Market struct {
	logger  *log.Logger
	db      *sql.DB
	funds   *fungible.Ledger
	items   *collectible.Collection
	custody common.Address
}

// Listing describes the sale state of one token. The stored row only exists
// while the listing is active, an inactive listing reads back as the zero
// record.
type Listing struct {
	TokenID uint64         `meddler:"token_id"`
	Seller  common.Address `meddler:"seller,address"`
	Price   *big.Int       `meddler:"price,bigint"`
	Active  bool           `meddler:"-"`
}

// Config is the configuration for the marketplace
type Config struct {
	// Custody is the identity that holds listed tokens while their listing is active
	Custody common.Address `mapstructure:"Custody"`
}

// New runs the market migrations against database and returns the market.
func New(
	logger *log.Logger,
	database *sql.DB,
	funds *fungible.Ledger,
	items *collectible.Collection,
	cfg Config,
) (*Market, error) {
	if err := migrations.RunMigrations(logger, database); err != nil {
		return nil, err
	}

	return &Market{
		logger:  logger,
		db:      database,
		funds:   funds,
		items:   items,
		custody: cfg.Custody,
	}, nil
}

// List puts the caller's token up for sale at price and moves it into the
// market's custody.
func (m *Market) List(ctx context.Context, caller common.Address, tokenID uint64, price *big.Int) error {
	tx, err := db.NewTx(ctx, m.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				m.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = m.ListWithTx(tx, caller, tokenID, price); err != nil {
		return err
	}

	return tx.Commit()
}

// ListWithTx is List inside the caller's transaction.
func (m *Market) ListWithTx(q meddler.DB, caller common.Address, tokenID uint64, price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return fungible.ErrInvalidAmount
	}
	if _, err := getListing(q, tokenID); err == nil {
		return ErrAlreadyListed
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	// Listing record first, custody move after.
	listing := &Listing{
		TokenID: tokenID,
		Seller:  caller,
		Price:   price,
	}
	if err := meddler.Insert(q, "market_listing", listing); err != nil {
		return err
	}
	if err := m.items.TransferWithTx(q, caller, m.custody, tokenID); err != nil {
		return err
	}
	m.logger.Debugf("token %d listed by %s at %s", tokenID, caller.Hex(), price.String())

	return nil
}

// Unlist takes the caller's listing down and returns the token to them.
func (m *Market) Unlist(ctx context.Context, caller common.Address, tokenID uint64) error {
	tx, err := db.NewTx(ctx, m.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				m.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = m.UnlistWithTx(tx, caller, tokenID); err != nil {
		return err
	}

	return tx.Commit()
}

// UnlistWithTx is Unlist inside the caller's transaction.
func (m *Market) UnlistWithTx(q meddler.DB, caller common.Address, tokenID uint64) error {
	listing, err := getListing(q, tokenID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrListingInactive
	}
	if err != nil {
		return err
	}
	if caller != listing.Seller {
		return ErrNotSeller
	}

	if err := deleteListing(q, tokenID); err != nil {
		return err
	}

	return m.items.TransferWithTx(q, m.custody, listing.Seller, tokenID)
}

// Buy purchases a listed token. The buyer pays the seller the listed price
// and takes the token out of custody, all or nothing.
func (m *Market) Buy(ctx context.Context, buyer common.Address, tokenID uint64) error {
	tx, err := db.NewTx(ctx, m.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				m.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = m.BuyWithTx(tx, buyer, tokenID); err != nil {
		return err
	}

	return tx.Commit()
}

// BuyWithTx is Buy inside the caller's transaction.
func (m *Market) BuyWithTx(q meddler.DB, buyer common.Address, tokenID uint64) error {
	listing, err := getListing(q, tokenID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrListingInactive
	}
	if err != nil {
		return err
	}

	// Listing cleared first, payment and custody move after.
	if err := deleteListing(q, tokenID); err != nil {
		return err
	}
	if err := m.funds.TransferWithTx(q, buyer, listing.Seller, listing.Price); err != nil {
		return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	if err := m.items.TransferWithTx(q, m.custody, buyer, tokenID); err != nil {
		return err
	}
	m.logger.Debugf(
		"token %d sold by %s to %s for %s",
		tokenID, listing.Seller.Hex(), buyer.Hex(), listing.Price.String(),
	)

	return nil
}

// GetListing returns the sale state of the token. Tokens without an active
// listing read back as an inactive zero record.
func (m *Market) GetListing(ctx context.Context, tokenID uint64) (*Listing, error) {
	listing, err := getListing(m.db, tokenID)
	if errors.Is(err, db.ErrNotFound) {
		return &Listing{TokenID: tokenID, Price: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	listing.Active = true

	return listing, nil
}

// GetListingWithTx is GetListing inside the caller's transaction.
func (m *Market) GetListingWithTx(q meddler.DB, tokenID uint64) (*Listing, error) {
	listing, err := getListing(q, tokenID)
	if errors.Is(err, db.ErrNotFound) {
		return &Listing{TokenID: tokenID, Price: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	listing.Active = true

	return listing, nil
}

func getListing(q meddler.DB, tokenID uint64) (*Listing, error) {
	var listing Listing
	err := meddler.QueryRow(q, &listing, `SELECT * FROM market_listing WHERE token_id = $1;`, tokenID)
	if err != nil {
		return nil, db.ReturnErrNotFound(err)
	}

	return &listing, nil
}

func deleteListing(q meddler.DB, tokenID uint64) error {
	_, err := q.Exec(`DELETE FROM market_listing WHERE token_id = $1;`, tokenID)

	return err
}
