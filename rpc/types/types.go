package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DropStatus is the public snapshot of the drop parameters.
type DropStatus struct {
	Root      common.Hash `json:"root"`
	BasePrice *big.Int    `json:"basePrice"`
	Issued    uint64      `json:"issued"`
	MaxSupply uint64      `json:"maxSupply"`
}
