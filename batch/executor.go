package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/russross/meddler"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/drop"
	"github.com/sinycat/merkledrop/fungible"
	"github.com/sinycat/merkledrop/log"
	"github.com/sinycat/merkledrop/market"
	"github.com/sinycat/merkledrop/tree"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

// Method names accepted inside a batch.
const (
	MethodApprove       = "approve"
	MethodPermit        = "permit"
	MethodTransfer      = "transfer"
	MethodSetRoot       = "setRoot"
	MethodSetBasePrice  = "setBasePrice"
	MethodIsWhitelisted = "isWhitelisted"
	MethodClaim         = "claim"
	MethodWithdraw      = "withdraw"
	MethodList          = "list"
	MethodUnlist        = "unlist"
	MethodBuy           = "buy"
	MethodGetListing    = "getListing"
)

var (
	ErrUnknownMethod   = errors.New("unknown batch method")
	ErrMalformedParams = errors.New("malformed batch params")
)

// Call is one encoded sub-call of a batch.
type Call struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Result is the outcome of one sub-call, in batch order.
type Result struct {
	Method string          `json:"method"`
	Output json.RawMessage `json:"output,omitempty"`
}

type ApproveParams struct {
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

type PermitParams struct {
	Owner     common.Address `json:"owner"`
	Spender   common.Address `json:"spender"`
	Value     *big.Int       `json:"value"`
	Deadline  uint64         `json:"deadline"`
	Signature hexutil.Bytes  `json:"signature"`
}

type TransferParams struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type SetRootParams struct {
	Root common.Hash `json:"root"`
}

type SetBasePriceParams struct {
	Price *big.Int `json:"price"`
}

type IsWhitelistedParams struct {
	Identity common.Address `json:"identity"`
	Proof    tree.Proof     `json:"proof"`
}

type ClaimParams struct {
	Proof        tree.Proof `json:"proof"`
	MetadataHint string     `json:"metadataHint,omitempty"`
}

type WithdrawParams struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type ListParams struct {
	TokenID uint64   `json:"tokenId"`
	Price   *big.Int `json:"price"`
}

type UnlistParams struct {
	TokenID uint64 `json:"tokenId"`
}

type BuyParams struct {
	TokenID uint64 `json:"tokenId"`
}

type GetListingParams struct {
	TokenID uint64 `json:"tokenId"`
}

// Executor runs ordered sub-calls as one unit. Either every sub-call commits
// or none does, and each sub-call acts with the authority of the batch
// caller, never the executor's own.
type Executor struct {
	logger *log.Logger
	db     *sql.DB
	funds  *fungible.Ledger
	drop   *drop.Ledger
	market *market.Market
}

// NewExecutor returns an Executor dispatching into the given components.
func NewExecutor(
	logger *log.Logger,
	database *sql.DB,
	funds *fungible.Ledger,
	dropLedger *drop.Ledger,
	mkt *market.Market,
) *Executor {
	return &Executor{
		logger: logger,
		db:     database,
		funds:  funds,
		drop:   dropLedger,
		market: mkt,
	}
}

// Run executes the calls in order inside one transaction. The first failing
// sub-call aborts the batch and rolls back everything before it.
func (e *Executor) Run(ctx context.Context, caller common.Address, calls []Call) ([]Result, error) {
	tx, err := db.NewTx(ctx, e.db)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				e.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	results := make([]Result, 0, len(calls))
	for i := range calls {
		var output interface{}
		output, err = e.dispatch(tx, caller, calls[i])
		if err != nil {
			err = fmt.Errorf("sub-call %d (%s) failed: %w", i, calls[i].Method, err)
			return nil, err
		}
		var raw json.RawMessage
		if output != nil {
			raw, err = json.Marshal(output)
			if err != nil {
				return nil, err
			}
		}
		results = append(results, Result{Method: calls[i].Method, Output: raw})
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	e.logger.Debugf("batch of %d calls by %s committed", len(calls), caller.Hex())

	return results, nil
}

func (e *Executor) dispatch(q meddler.DB, caller common.Address, call Call) (interface{}, error) {
	switch call.Method {
	case MethodApprove:
		var p ApproveParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.funds.ApproveWithTx(q, caller, p.Spender, p.Amount)
	case MethodPermit:
		// The signature carries its own authority, any caller may relay it.
		var p PermitParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.funds.PermitWithTx(q, p.Owner, p.Spender, p.Value, p.Deadline, p.Signature)
	case MethodTransfer:
		var p TransferParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.funds.TransferWithTx(q, caller, p.To, p.Amount)
	case MethodSetRoot:
		var p SetRootParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.drop.SetRootWithTx(q, caller, p.Root)
	case MethodSetBasePrice:
		var p SetBasePriceParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.drop.SetBasePriceWithTx(q, caller, p.Price)
	case MethodIsWhitelisted:
		var p IsWhitelistedParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return e.drop.IsWhitelistedWithTx(q, p.Identity, p.Proof)
	case MethodClaim:
		var p ClaimParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return e.drop.ClaimWithTx(q, caller, p.Proof, p.MetadataHint)
	case MethodWithdraw:
		var p WithdrawParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.drop.WithdrawWithTx(q, caller, p.To, p.Amount)
	case MethodList:
		var p ListParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.market.ListWithTx(q, caller, p.TokenID, p.Price)
	case MethodUnlist:
		var p UnlistParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.market.UnlistWithTx(q, caller, p.TokenID)
	case MethodBuy:
		var p BuyParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return nil, e.market.BuyWithTx(q, caller, p.TokenID)
	case MethodGetListing:
		var p GetListingParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}

		return e.market.GetListingWithTx(q, p.TokenID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.Method)
	}
}

func decodeParams(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return ErrMalformedParams
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedParams, err.Error())
	}

	return nil
}
