package fungible

import (
	"context"
	"database/sql"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/fungible/migrations"
	"github.com/sinycat/merkledrop/log"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

var (
	ErrInvalidAmount         = errors.New("amount must be a non negative integer")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Ledger is the payment token. Balances, allowances and permit nonces live
// in the shared DB so spends compose with claims and purchases in one
// transaction.
type Ledger struct {
	logger    *log.Logger
	db        *sql.DB
	networkID uint32
	token     common.Address
}

// NewLedger runs the ledger migrations against database and returns the
// ledger. token names this deployment in permit digests.
func NewLedger(logger *log.Logger, database *sql.DB, networkID uint32, token common.Address) (*Ledger, error) {
	if err := migrations.RunMigrations(logger, database); err != nil {
		return nil, err
	}

	return &Ledger{
		logger:    logger,
		db:        database,
		networkID: networkID,
		token:     token,
	}, nil
}

type balanceRow struct {
	Account common.Address `meddler:"account,address"`
	Amount  *big.Int       `meddler:"amount,bigint"`
}

type allowanceRow struct {
	Owner   common.Address `meddler:"owner,address"`
	Spender common.Address `meddler:"spender,address"`
	Amount  *big.Int       `meddler:"amount,bigint"`
}

type nonceRow struct {
	Owner common.Address `meddler:"owner,address"`
	Nonce uint64         `meddler:"nonce"`
}

// BalanceOf returns the balance of account, zero for unknown accounts.
func (l *Ledger) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return GetBalance(l.db, account)
}

// Allowance returns what spender may still move out of owner's balance.
func (l *Ledger) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return GetAllowance(l.db, owner, spender)
}

// NonceOf returns the next unused permit nonce of owner.
func (l *Ledger) NonceOf(ctx context.Context, owner common.Address) (uint64, error) {
	return getNonce(l.db, owner)
}

// Mint credits amount to account out of thin air. Only the treasury
// bootstrap and tests call it.
func (l *Ledger) Mint(ctx context.Context, account common.Address, amount *big.Int) error {
	tx, err := db.NewTx(ctx, l.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				l.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = l.MintWithTx(tx, account, amount); err != nil {
		return err
	}

	return tx.Commit()
}

// MintWithTx is Mint inside the caller's transaction.
func (l *Ledger) MintWithTx(q meddler.DB, account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := GetBalance(q, account)
	if err != nil {
		return err
	}

	return setBalance(q, account, new(big.Int).Add(balance, amount))
}

// Transfer moves amount from one account to another. The caller is
// responsible for having authenticated from.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	tx, err := db.NewTx(ctx, l.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				l.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = l.TransferWithTx(tx, from, to, amount); err != nil {
		return err
	}

	return tx.Commit()
}

// TransferWithTx is Transfer inside the caller's transaction.
func (l *Ledger) TransferWithTx(q meddler.DB, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	fromBalance, err := GetBalance(q, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}

	if err := setBalance(q, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := GetBalance(q, to)
	if err != nil {
		return err
	}

	return setBalance(q, to, new(big.Int).Add(toBalance, amount))
}

// Approve lets spender move up to amount out of owner's balance. A second
// call replaces the previous allowance.
func (l *Ledger) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	tx, err := db.NewTx(ctx, l.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				l.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = l.ApproveWithTx(tx, owner, spender, amount); err != nil {
		return err
	}

	return tx.Commit()
}

// ApproveWithTx is Approve inside the caller's transaction.
func (l *Ledger) ApproveWithTx(q meddler.DB, owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	return setAllowance(q, owner, spender, amount)
}

// SpendFrom moves amount from owner to to on behalf of spender, consuming
// allowance. The claim and purchase paths pay through here.
func (l *Ledger) SpendFrom(ctx context.Context, spender, owner, to common.Address, amount *big.Int) error {
	tx, err := db.NewTx(ctx, l.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				l.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = l.SpendFromWithTx(tx, spender, owner, to, amount); err != nil {
		return err
	}

	return tx.Commit()
}

// SpendFromWithTx is SpendFrom inside the caller's transaction. The owner
// spending their own balance needs no allowance.
func (l *Ledger) SpendFromWithTx(q meddler.DB, spender, owner, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	if spender != owner {
		allowance, err := GetAllowance(q, owner, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		if err := setAllowance(q, owner, spender, new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}

	return l.TransferWithTx(q, owner, to, amount)
}

// GetBalance reads the balance of account inside q.
func GetBalance(q meddler.DB, account common.Address) (*big.Int, error) {
	var row balanceRow
	err := meddler.QueryRow(q, &row, `SELECT * FROM fungible_balance WHERE account = $1;`, account.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}

	return row.Amount, nil
}

// GetAllowance reads the allowance owner granted to spender inside q.
func GetAllowance(q meddler.DB, owner, spender common.Address) (*big.Int, error) {
	var row allowanceRow
	err := meddler.QueryRow(q, &row, `
		SELECT * FROM fungible_allowance
		WHERE owner = $1 AND spender = $2;
	`, owner.Hex(), spender.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}

	return row.Amount, nil
}

func setBalance(q meddler.DB, account common.Address, amount *big.Int) error {
	_, err := q.Exec(`
		INSERT INTO fungible_balance (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = $2;
	`, account.Hex(), amount.String())

	return err
}

func setAllowance(q meddler.DB, owner, spender common.Address, amount *big.Int) error {
	_, err := q.Exec(`
		INSERT INTO fungible_allowance (owner, spender, amount) VALUES ($1, $2, $3)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = $3;
	`, owner.Hex(), spender.Hex(), amount.String())

	return err
}

func getNonce(q meddler.DB, owner common.Address) (uint64, error) {
	var row nonceRow
	err := meddler.QueryRow(q, &row, `SELECT * FROM fungible_nonce WHERE owner = $1;`, owner.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return row.Nonce, nil
}

func bumpNonce(q meddler.DB, owner common.Address, current uint64) error {
	_, err := q.Exec(`
		INSERT INTO fungible_nonce (owner, nonce) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET nonce = $2;
	`, owner.Hex(), current+1)

	return err
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	return nil
}
