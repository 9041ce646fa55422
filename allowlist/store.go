package allowlist

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	"github.com/sinycat/merkledrop/allowlist/migrations"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/log"
	"github.com/sinycat/merkledrop/tree"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

// Store keeps every published allow list so proofs can be served later,
// including for roots that are no longer active on the drop.
type Store struct {
	logger *log.Logger
	db     *sql.DB
}

// NewStore runs the allow list migrations against database and returns the
// registry.
func NewStore(logger *log.Logger, database *sql.DB) (*Store, error) {
	if err := migrations.RunMigrations(logger, database); err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     database,
	}, nil
}

type setRow struct {
	Root        common.Hash `meddler:"root,hash"`
	MemberCount int         `meddler:"member_count"`
	CreatedAt   int64       `meddler:"created_at"`
}

type memberRow struct {
	Root     common.Hash    `meddler:"root,hash"`
	Position int            `meddler:"position"`
	Account  common.Address `meddler:"account,address"`
}

// AddSet publishes a membership set and returns its root. Publishing the
// same set twice is a no op, the root identifies the set completely.
func (s *Store) AddSet(ctx context.Context, members []common.Address) (common.Hash, error) {
	list := New(members)
	root := list.Root()

	tx, err := db.NewTx(ctx, s.db)
	if err != nil {
		return common.Hash{}, err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				s.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	_, err = getSet(tx, root)
	if err == nil {
		if err := tx.Commit(); err != nil {
			return common.Hash{}, err
		}
		return root, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return common.Hash{}, err
	}

	err = meddler.Insert(tx, "allowlist_set", &setRow{
		Root:        root,
		MemberCount: len(members),
		CreatedAt:   time.Now().Unix(),
	})
	if err != nil {
		return common.Hash{}, err
	}
	for i, member := range members {
		err = meddler.Insert(tx, "allowlist_member", &memberRow{
			Root:     root,
			Position: i,
			Account:  member,
		})
		if err != nil {
			return common.Hash{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return common.Hash{}, err
	}

	s.logger.Debugf("published allow list %s with %d members", root, len(members))

	return root, nil
}

// Members returns the membership set committed by root, in proof order.
func (s *Store) Members(ctx context.Context, root common.Hash) ([]common.Address, error) {
	if _, err := getSet(s.db, root); err != nil {
		return nil, err
	}

	var rows []*memberRow
	err := meddler.QueryAll(s.db, &rows, `
		SELECT * FROM allowlist_member
		WHERE root = $1
		ORDER BY position ASC;
	`, root.Hex())
	if err != nil {
		return nil, err
	}

	members := make([]common.Address, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.Account)
	}

	return members, nil
}

// Get rebuilds the allow list committed by root.
func (s *Store) Get(ctx context.Context, root common.Hash) (*Allowlist, error) {
	members, err := s.Members(ctx, root)
	if err != nil {
		return nil, err
	}

	return New(members), nil
}

// ProofFor returns the membership proof of account under the set committed
// by root. db.ErrNotFound means the root was never published here,
// ErrNotIncluded means the account is not a member.
func (s *Store) ProofFor(ctx context.Context, root common.Hash, account common.Address) (tree.Proof, error) {
	list, err := s.Get(ctx, root)
	if err != nil {
		return nil, err
	}

	return list.ProofFor(account)
}

func getSet(q meddler.DB, root common.Hash) (*setRow, error) {
	var row setRow
	if err := meddler.QueryRow(q, &row, `SELECT * FROM allowlist_set WHERE root = $1;`, root.Hex()); err != nil {
		return nil, db.ReturnErrNotFound(err)
	}

	return &row, nil
}
