package collectible

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	"github.com/sinycat/merkledrop/collectible/migrations"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/log"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

var ErrNotHolder = errors.New("account does not hold the token")

// Collection is the minted item ledger. Token ids are assigned by the DB
// starting at 1 and are never reused.
type Collection struct {
	logger *log.Logger
	db     *sql.DB
}

// Token is one minted item.
type Token struct {
	ID    uint64         `meddler:"id,pk"`
	Owner common.Address `meddler:"owner,address"`
	URI   string         `meddler:"uri"`
}

// NewCollection runs the collection migrations against database and pins the
// base URI used for tokens minted without one of their own.
func NewCollection(logger *log.Logger, database *sql.DB, baseURI string) (*Collection, error) {
	if err := migrations.RunMigrations(logger, database); err != nil {
		return nil, err
	}
	_, err := database.Exec(`
		INSERT INTO collectible_params (id, base_uri) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET base_uri = $1;
	`, baseURI)
	if err != nil {
		return nil, err
	}

	return &Collection{
		logger: logger,
		db:     database,
	}, nil
}

// Mint creates a new token owned by to and returns its id.
func (c *Collection) Mint(ctx context.Context, to common.Address, uri string) (uint64, error) {
	tx, err := db.NewTx(ctx, c.db)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				c.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	id, err := c.MintWithTx(tx, to, uri)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return id, nil
}

// MintWithTx is Mint inside the caller's transaction.
func (c *Collection) MintWithTx(q meddler.DB, to common.Address, uri string) (uint64, error) {
	token := &Token{
		Owner: to,
		URI:   uri,
	}
	if err := meddler.Insert(q, "collectible_token", token); err != nil {
		return 0, err
	}

	return token.ID, nil
}

// OwnerOf returns the holder of the token.
func (c *Collection) OwnerOf(ctx context.Context, id uint64) (common.Address, error) {
	token, err := getToken(c.db, id)
	if err != nil {
		return common.Address{}, err
	}

	return token.Owner, nil
}

// OwnerOfWithTx is OwnerOf inside the caller's transaction.
func (c *Collection) OwnerOfWithTx(q meddler.DB, id uint64) (common.Address, error) {
	token, err := getToken(q, id)
	if err != nil {
		return common.Address{}, err
	}

	return token.Owner, nil
}

// Transfer moves the token from one holder to another. It fails with
// ErrNotHolder unless from currently holds it.
func (c *Collection) Transfer(ctx context.Context, from, to common.Address, id uint64) error {
	tx, err := db.NewTx(ctx, c.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				c.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = c.TransferWithTx(tx, from, to, id); err != nil {
		return err
	}

	return tx.Commit()
}

// TransferWithTx is Transfer inside the caller's transaction.
func (c *Collection) TransferWithTx(q meddler.DB, from, to common.Address, id uint64) error {
	token, err := getToken(q, id)
	if err != nil {
		return err
	}
	if token.Owner != from {
		return ErrNotHolder
	}
	_, err = q.Exec(`UPDATE collectible_token SET owner = $1 WHERE id = $2;`, to.Hex(), id)

	return err
}

// SetTokenURI replaces the token's own URI. Only the current holder may do
// it. Setting the empty string reverts the token to the base URI fallback.
func (c *Collection) SetTokenURI(ctx context.Context, caller common.Address, id uint64, uri string) error {
	tx, err := db.NewTx(ctx, c.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				c.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = c.SetTokenURIWithTx(tx, caller, id, uri); err != nil {
		return err
	}

	return tx.Commit()
}

// SetTokenURIWithTx is SetTokenURI inside the caller's transaction.
func (c *Collection) SetTokenURIWithTx(q meddler.DB, caller common.Address, id uint64, uri string) error {
	token, err := getToken(q, id)
	if err != nil {
		return err
	}
	if token.Owner != caller {
		return ErrNotHolder
	}
	_, err = q.Exec(`UPDATE collectible_token SET uri = $1 WHERE id = $2;`, uri, id)

	return err
}

// TokenURI returns the token's own URI or base URI + id when it has none.
func (c *Collection) TokenURI(ctx context.Context, id uint64) (string, error) {
	token, err := getToken(c.db, id)
	if err != nil {
		return "", err
	}
	if token.URI != "" {
		return token.URI, nil
	}

	var baseURI string
	row := c.db.QueryRow(`SELECT base_uri FROM collectible_params WHERE id = 1;`)
	if err := row.Scan(&baseURI); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%d", baseURI, id), nil
}

// TokensOf returns the ids held by owner in mint order.
func (c *Collection) TokensOf(ctx context.Context, owner common.Address) ([]uint64, error) {
	var tokens []*Token
	err := meddler.QueryAll(c.db, &tokens, `
		SELECT * FROM collectible_token
		WHERE owner = $1
		ORDER BY id ASC;
	`, owner.Hex())
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(tokens))
	for _, token := range tokens {
		ids = append(ids, token.ID)
	}

	return ids, nil
}

// TotalSupply returns how many tokens have been minted.
func (c *Collection) TotalSupply(ctx context.Context) (uint64, error) {
	var count uint64
	row := c.db.QueryRow(`SELECT COUNT(*) FROM collectible_token;`)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func getToken(q meddler.DB, id uint64) (*Token, error) {
	var token Token
	if err := meddler.QueryRow(q, &token, `SELECT * FROM collectible_token WHERE id = $1;`, id); err != nil {
		return nil, db.ReturnErrNotFound(err)
	}

	return &token, nil
}
