package common

const (
	// DROP name to identify the allow-list drop component
	DROP = "drop"
	// MARKET name to identify the escrow marketplace component
	MARKET = "market"
	// RPC name to identify the rpc component (implies drop and market)
	RPC = "rpc"
)
