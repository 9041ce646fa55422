package common

type Config struct {
	// NetworkID identifies the deployment. It is mixed into permit digests so
	// signatures never replay across networks.
	NetworkID uint32 `mapstructure:"NetworkID"`
}
