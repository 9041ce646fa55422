package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/allowlist"
	"github.com/sinycat/merkledrop/batch"
	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/drop"
	"github.com/sinycat/merkledrop/log"
	"github.com/sinycat/merkledrop/rpc/types"
	"github.com/sinycat/merkledrop/tree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DROP is the namespace of the drop service
	DROP      = "drop"
	meterName = "github.com/sinycat/merkledrop/rpc"

	zeroHex = "0x0"
)

// DropEndpoints contains implementations for the "drop" RPC endpoints
type DropEndpoints struct {
	logger       *log.Logger
	meter        metric.Meter
	readTimeout  time.Duration
	writeTimeout time.Duration
	ledger       ClaimLedgerer
	sets         AllowlistStorer
	batcher      Batcher
}

// NewDropEndpoints returns DropEndpoints
func NewDropEndpoints(
	logger *log.Logger,
	writeTimeout time.Duration,
	readTimeout time.Duration,
	ledger ClaimLedgerer,
	sets AllowlistStorer,
	batcher Batcher,
) *DropEndpoints {
	meter := otel.Meter(meterName)

	return &DropEndpoints{
		logger:       logger,
		meter:        meter,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		ledger:       ledger,
		sets:         sets,
		batcher:      batcher,
	}
}

// SetRoot publishes a new allow-list root. Only the admin identity passes.
func (d *DropEndpoints) SetRoot(caller common.Address, root common.Hash) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("set_root")
	if merr != nil {
		d.logger.Warnf("failed to create set_root counter: %s", merr)
	}
	c.Add(ctx, 1)

	if err := d.ledger.SetRoot(ctx, caller, root); err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to set root, error: %s", err))
	}

	return nil, nil
}

// SetBasePrice replaces the non-discounted claim price. Only the admin identity passes.
func (d *DropEndpoints) SetBasePrice(caller common.Address, price *big.Int) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("set_base_price")
	if merr != nil {
		d.logger.Warnf("failed to create set_base_price counter: %s", merr)
	}
	c.Add(ctx, 1)

	if err := d.ledger.SetBasePrice(ctx, caller, price); err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to set base price, error: %s", err))
	}

	return nil, nil
}

// Status returns the published root, the base price and the issuance counters.
func (d *DropEndpoints) Status() (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.readTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("status")
	if merr != nil {
		d.logger.Warnf("failed to create status counter: %s", merr)
	}
	c.Add(ctx, 1)

	root, err := d.ledger.Root(ctx)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to get root, error: %s", err))
	}
	price, err := d.ledger.BasePrice(ctx)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to get base price, error: %s", err))
	}
	issued, err := d.ledger.Issued(ctx)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to get issued count, error: %s", err))
	}
	maxSupply, err := d.ledger.MaxSupply(ctx)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to get max supply, error: %s", err))
	}

	return types.DropStatus{
		Root:      root,
		BasePrice: price,
		Issued:    issued,
		MaxSupply: maxSupply,
	}, nil
}

// IsWhitelisted reports whether the proof places identity under the published
// root. A proof that does not verify is a false, never an error.
func (d *DropEndpoints) IsWhitelisted(identity common.Address, proof tree.Proof) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.readTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("is_whitelisted")
	if merr != nil {
		d.logger.Warnf("failed to create is_whitelisted counter: %s", merr)
	}
	c.Add(ctx, 1)

	ok, err := d.ledger.IsWhitelisted(ctx, identity, proof)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to check membership, error: %s", err))
	}

	return ok, nil
}

// Claim issues one token to claimer against payment, the proof only selects
// the price branch. metadataHint is optional.
func (d *DropEndpoints) Claim(
	claimer common.Address, proof tree.Proof, metadataHint *string,
) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("claim")
	if merr != nil {
		d.logger.Warnf("failed to create claim counter: %s", merr)
	}
	c.Add(ctx, 1)

	hint := ""
	if metadataHint != nil {
		hint = *metadataHint
	}
	tokenID, err := d.ledger.Claim(ctx, claimer, proof, hint)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to claim, error: %s", err))
	}

	return tokenID, nil
}

// ClaimStatus returns the permanent claim record of identity.
func (d *DropEndpoints) ClaimStatus(identity common.Address) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.readTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("claim_status")
	if merr != nil {
		d.logger.Warnf("failed to create claim_status counter: %s", merr)
	}
	c.Add(ctx, 1)

	record, err := d.ledger.ClaimOf(ctx, identity)
	if errors.Is(err, db.ErrNotFound) {
		return nil, rpc.NewRPCError(rpc.NotFoundErrorCode, "identity has not claimed")
	}
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to get claim, error: %s", err))
	}

	return record, nil
}

// PublishAllowlist stores the member set and returns its root. Publishing the
// same set twice returns the same root.
func (d *DropEndpoints) PublishAllowlist(members []common.Address) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("publish_allowlist")
	if merr != nil {
		d.logger.Warnf("failed to create publish_allowlist counter: %s", merr)
	}
	c.Add(ctx, 1)

	root, err := d.sets.AddSet(ctx, members)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to publish allow-list, error: %s", err))
	}

	return root, nil
}

// AllowlistMembers returns the members of a published set in leaf order.
func (d *DropEndpoints) AllowlistMembers(root common.Hash) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.readTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("allowlist_members")
	if merr != nil {
		d.logger.Warnf("failed to create allowlist_members counter: %s", merr)
	}
	c.Add(ctx, 1)

	members, err := d.sets.Members(ctx, root)
	if errors.Is(err, db.ErrNotFound) {
		return nil, rpc.NewRPCError(rpc.NotFoundErrorCode, "unknown allow-list root")
	}
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to get members, error: %s", err))
	}

	return members, nil
}

// ProofFor builds the membership proof for account under a published set.
func (d *DropEndpoints) ProofFor(root common.Hash, account common.Address) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.readTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("proof_for")
	if merr != nil {
		d.logger.Warnf("failed to create proof_for counter: %s", merr)
	}
	c.Add(ctx, 1)

	proof, err := d.sets.ProofFor(ctx, root, account)
	if errors.Is(err, db.ErrNotFound) {
		return nil, rpc.NewRPCError(rpc.NotFoundErrorCode, "unknown allow-list root")
	}
	if errors.Is(err, allowlist.ErrNotIncluded) {
		return nil, rpc.NewRPCError(rpc.NotFoundErrorCode, "account is not in the allow-list")
	}
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to build proof, error: %s", err))
	}

	return proof, nil
}

// Withdraw moves accumulated claim payments to the destination. Only the
// admin identity passes.
func (d *DropEndpoints) Withdraw(caller, to common.Address, amount *big.Int) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("withdraw")
	if merr != nil {
		d.logger.Warnf("failed to create withdraw counter: %s", merr)
	}
	c.Add(ctx, 1)

	if err := d.ledger.Withdraw(ctx, caller, to, amount); err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to withdraw, error: %s", err))
	}

	return nil, nil
}

// Batch runs the calls in order as one unit under the caller's authority. If
// any sub-call fails nothing is applied.
func (d *DropEndpoints) Batch(caller common.Address, calls []batch.Call) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	c, merr := d.meter.Int64Counter("batch")
	if merr != nil {
		d.logger.Warnf("failed to create batch counter: %s", merr)
	}
	c.Add(ctx, 1)

	results, err := d.batcher.Run(ctx, caller, calls)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to run batch, error: %s", err))
	}

	return results, nil
}
