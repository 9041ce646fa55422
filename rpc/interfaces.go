package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/batch"
	"github.com/sinycat/merkledrop/drop"
	"github.com/sinycat/merkledrop/market"
	"github.com/sinycat/merkledrop/tree"
)

type ClaimLedgerer interface {
	SetRoot(ctx context.Context, caller common.Address, root common.Hash) error
	Root(ctx context.Context) (common.Hash, error)
	SetBasePrice(ctx context.Context, caller common.Address, price *big.Int) error
	BasePrice(ctx context.Context) (*big.Int, error)
	IsWhitelisted(ctx context.Context, identity common.Address, proof tree.Proof) (bool, error)
	Claim(ctx context.Context, claimer common.Address, proof tree.Proof, metadataHint string) (uint64, error)
	Withdraw(ctx context.Context, caller, to common.Address, amount *big.Int) error
	ClaimOf(ctx context.Context, identity common.Address) (*drop.ClaimRecord, error)
	Issued(ctx context.Context) (uint64, error)
	MaxSupply(ctx context.Context) (uint64, error)
}

type AllowlistStorer interface {
	AddSet(ctx context.Context, members []common.Address) (common.Hash, error)
	Members(ctx context.Context, root common.Hash) ([]common.Address, error)
	ProofFor(ctx context.Context, root common.Hash, account common.Address) (tree.Proof, error)
}

type Marketer interface {
	List(ctx context.Context, caller common.Address, tokenID uint64, price *big.Int) error
	Unlist(ctx context.Context, caller common.Address, tokenID uint64) error
	Buy(ctx context.Context, buyer common.Address, tokenID uint64) error
	GetListing(ctx context.Context, tokenID uint64) (*market.Listing, error)
}

type Batcher interface {
	Run(ctx context.Context, caller common.Address, calls []batch.Call) ([]batch.Result, error)
}
