package fungible

import (
	"github.com/ethereum/go-ethereum/common"
)

// Config is the configuration for the payment asset ledger
type Config struct {
	// Token is the address of the payment asset. It salts permit digests so
	// a signature cannot be replayed against another deployment
	Token common.Address `mapstructure:"Token"`
}
