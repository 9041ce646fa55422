package collectible

// Config is the configuration for the minted item ledger
type Config struct {
	// BaseURI is prepended to the token id to derive metadata for items
	// minted without an explicit hint
	BaseURI string `mapstructure:"BaseURI"`
}
