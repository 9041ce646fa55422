package drop

import (
	"github.com/ethereum/go-ethereum/common"
)

// Config is the configuration for the claim ledger
type Config struct {
	// Admin is the only identity allowed to set the root and the base price and to withdraw proceeds
	Admin common.Address `mapstructure:"Admin"`
	// Custody is the identity that holds the claim payments until they are withdrawn
	Custody common.Address `mapstructure:"Custody"`
	// MaxSupply bounds the number of tokens the drop will ever issue. It is fixed on first boot
	MaxSupply uint64 `mapstructure:"MaxSupply"`
	// BasePrice is the non-discounted claim price applied on first boot
	BasePrice uint64 `mapstructure:"BasePrice"`
}
