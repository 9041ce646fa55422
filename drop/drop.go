package drop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	"github.com/sinycat/merkledrop/allowlist"
	"github.com/sinycat/merkledrop/collectible"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/drop/migrations"
	"github.com/sinycat/merkledrop/fungible"
	"github.com/sinycat/merkledrop/log"
	"github.com/sinycat/merkledrop/tree"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

var (
	ErrUnauthorized    = errors.New("caller is not the admin")
	ErrSupplyExhausted = errors.New("max supply reached")
	ErrAlreadyClaimed  = errors.New("identity has already claimed")
	ErrPaymentFailed   = errors.New("payment failed")

	two = big.NewInt(2)
)

// Ledger runs the allow-list gated drop. Identities get exactly one claim:
// a proof that verifies against the published root halves the price, a proof
// that does not verify just selects the full price. Payments accumulate on the
// custody identity until the admin withdraws them.
type Ledger struct {
	logger  *log.Logger
	db      *sql.DB
	funds   *fungible.Ledger
	items   *collectible.Collection
	admin   common.Address
	custody common.Address
}

// ClaimRecord is the permanent outcome of a successful claim.
type ClaimRecord struct {
	Claimer    common.Address `meddler:"claimer,address"`
	TokenID    uint64         `meddler:"token_id"`
	PricePaid  *big.Int       `meddler:"price_paid,bigint"`
	Discounted bool           `meddler:"discounted"`
}

type paramsRow struct {
	ID        uint64      `meddler:"id"`
	Root      common.Hash `meddler:"root,hash"`
	BasePrice *big.Int    `meddler:"base_price,bigint"`
	Issued    uint64      `meddler:"issued"`
	MaxSupply uint64      `meddler:"max_supply"`
}

// NewLedger runs the drop migrations against database and seeds the drop
// parameters. The seed only applies the first time the ledger is created on a
// given database. MaxSupply is fixed then, reopening with a different value
// fails. BasePrice stays mutable through SetBasePrice, so on reopen the stored
// price wins over cfg.
func NewLedger(
	logger *log.Logger,
	database *sql.DB,
	funds *fungible.Ledger,
	items *collectible.Collection,
	cfg Config,
) (*Ledger, error) {
	if err := migrations.RunMigrations(logger, database); err != nil {
		return nil, err
	}
	_, err := database.Exec(`
		INSERT INTO drop_params (id, root, base_price, issued, max_supply)
		VALUES (1, $1, $2, 0, $3)
		ON CONFLICT (id) DO NOTHING;
	`, tree.EmptyRoot.Hex(), new(big.Int).SetUint64(cfg.BasePrice).String(), cfg.MaxSupply)
	if err != nil {
		return nil, err
	}
	params, err := getParams(database)
	if err != nil {
		return nil, err
	}
	if params.MaxSupply != cfg.MaxSupply {
		return nil, fmt.Errorf(
			"max supply is fixed at creation: database has %d, config asks for %d",
			params.MaxSupply, cfg.MaxSupply,
		)
	}

	return &Ledger{
		logger:  logger,
		db:      database,
		funds:   funds,
		items:   items,
		admin:   cfg.Admin,
		custody: cfg.Custody,
	}, nil
}

// SetRoot replaces the published allow-list root. Proofs built for the
// previous root stop verifying immediately.
func (l *Ledger) SetRoot(ctx context.Context, caller common.Address, root common.Hash) error {
	return l.SetRootWithTx(l.db, caller, root)
}

// SetRootWithTx is SetRoot inside the caller's transaction.
func (l *Ledger) SetRootWithTx(q meddler.DB, caller common.Address, root common.Hash) error {
	if caller != l.admin {
		return ErrUnauthorized
	}
	_, err := q.Exec(`UPDATE drop_params SET root = $1 WHERE id = 1;`, root.Hex())
	if err != nil {
		return err
	}
	l.logger.Infof("allow-list root set to %s", root.Hex())

	return nil
}

// Root returns the currently published allow-list root.
func (l *Ledger) Root(ctx context.Context) (common.Hash, error) {
	params, err := getParams(l.db)
	if err != nil {
		return common.Hash{}, err
	}

	return params.Root, nil
}

// SetBasePrice replaces the non-discounted claim price.
func (l *Ledger) SetBasePrice(ctx context.Context, caller common.Address, price *big.Int) error {
	return l.SetBasePriceWithTx(l.db, caller, price)
}

// SetBasePriceWithTx is SetBasePrice inside the caller's transaction.
func (l *Ledger) SetBasePriceWithTx(q meddler.DB, caller common.Address, price *big.Int) error {
	if caller != l.admin {
		return ErrUnauthorized
	}
	if price == nil || price.Sign() < 0 {
		return fungible.ErrInvalidAmount
	}
	_, err := q.Exec(`UPDATE drop_params SET base_price = $1 WHERE id = 1;`, price.String())
	if err != nil {
		return err
	}
	l.logger.Infof("base price set to %s", price.String())

	return nil
}

// BasePrice returns the current non-discounted claim price.
func (l *Ledger) BasePrice(ctx context.Context) (*big.Int, error) {
	params, err := getParams(l.db)
	if err != nil {
		return nil, err
	}

	return params.BasePrice, nil
}

// IsWhitelisted reports whether proof places identity under the published
// root. Malformed or empty proofs report false, they never error.
func (l *Ledger) IsWhitelisted(ctx context.Context, identity common.Address, proof tree.Proof) (bool, error) {
	return l.IsWhitelistedWithTx(l.db, identity, proof)
}

// IsWhitelistedWithTx is IsWhitelisted inside the caller's transaction.
func (l *Ledger) IsWhitelistedWithTx(q meddler.DB, identity common.Address, proof tree.Proof) (bool, error) {
	params, err := getParams(q)
	if err != nil {
		return false, err
	}

	return tree.Verify(params.Root, allowlist.LeafHash(identity), proof), nil
}

// Claim issues one token to claimer against payment. A proof that verifies
// halves the price, any other proof selects the full price. The claim is
// permanent, repeating it fails with ErrAlreadyClaimed no matter what else
// changed in between.
func (l *Ledger) Claim(
	ctx context.Context, claimer common.Address, proof tree.Proof, metadataHint string,
) (uint64, error) {
	tx, err := db.NewTx(ctx, l.db)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				l.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	tokenID, err := l.ClaimWithTx(tx, claimer, proof, metadataHint)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return tokenID, nil
}

// ClaimWithTx is Claim inside the caller's transaction.
func (l *Ledger) ClaimWithTx(
	q meddler.DB, claimer common.Address, proof tree.Proof, metadataHint string,
) (uint64, error) {
	if _, err := getClaim(q, claimer); err == nil {
		return 0, ErrAlreadyClaimed
	} else if !errors.Is(err, db.ErrNotFound) {
		return 0, err
	}

	params, err := getParams(q)
	if err != nil {
		return 0, err
	}
	if params.Issued >= params.MaxSupply {
		return 0, ErrSupplyExhausted
	}

	discounted := tree.Verify(params.Root, allowlist.LeafHash(claimer), proof)
	price := params.BasePrice
	if discounted {
		price = new(big.Int).Div(params.BasePrice, two)
	}

	// Bookkeeping first, collaborator calls after.
	if _, err := q.Exec(`UPDATE drop_params SET issued = issued + 1 WHERE id = 1;`); err != nil {
		return 0, err
	}

	if err := l.funds.SpendFromWithTx(q, l.custody, claimer, l.custody, price); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	tokenID, err := l.items.MintWithTx(q, claimer, metadataHint)
	if err != nil {
		return 0, err
	}

	record := &ClaimRecord{
		Claimer:    claimer,
		TokenID:    tokenID,
		PricePaid:  price,
		Discounted: discounted,
	}
	if err := meddler.Insert(q, "drop_claim", record); err != nil {
		return 0, err
	}
	l.logger.Debugf(
		"claim by %s: token %d for %s (discounted: %t)",
		claimer.Hex(), tokenID, price.String(), discounted,
	)

	return tokenID, nil
}

// Withdraw moves accumulated claim payments from custody to the destination.
func (l *Ledger) Withdraw(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	if caller != l.admin {
		return ErrUnauthorized
	}

	return l.funds.Transfer(ctx, l.custody, to, amount)
}

// WithdrawWithTx is Withdraw inside the caller's transaction.
func (l *Ledger) WithdrawWithTx(q meddler.DB, caller, to common.Address, amount *big.Int) error {
	if caller != l.admin {
		return ErrUnauthorized
	}

	return l.funds.TransferWithTx(q, l.custody, to, amount)
}

// ClaimOf returns the claim record of identity, or db.ErrNotFound when it has
// not claimed.
func (l *Ledger) ClaimOf(ctx context.Context, identity common.Address) (*ClaimRecord, error) {
	return getClaim(l.db, identity)
}

// Claimed reports whether identity has already claimed.
func (l *Ledger) Claimed(ctx context.Context, identity common.Address) (bool, error) {
	_, err := getClaim(l.db, identity)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Issued returns how many tokens the drop has issued so far.
func (l *Ledger) Issued(ctx context.Context) (uint64, error) {
	params, err := getParams(l.db)
	if err != nil {
		return 0, err
	}

	return params.Issued, nil
}

// MaxSupply returns the issuance bound fixed at creation.
func (l *Ledger) MaxSupply(ctx context.Context) (uint64, error) {
	params, err := getParams(l.db)
	if err != nil {
		return 0, err
	}

	return params.MaxSupply, nil
}

// Custody returns the identity holding the claim payments.
func (l *Ledger) Custody() common.Address {
	return l.custody
}

func getParams(q meddler.DB) (*paramsRow, error) {
	var params paramsRow
	if err := meddler.QueryRow(q, &params, `SELECT * FROM drop_params WHERE id = 1;`); err != nil {
		return nil, db.ReturnErrNotFound(err)
	}

	return &params, nil
}

func getClaim(q meddler.DB, claimer common.Address) (*ClaimRecord, error) {
	var record ClaimRecord
	err := meddler.QueryRow(q, &record, `SELECT * FROM drop_claim WHERE claimer = $1;`, claimer.Hex())
	if err != nil {
		return nil, db.ReturnErrNotFound(err)
	}

	return &record, nil
}
