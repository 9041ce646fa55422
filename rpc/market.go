package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MARKET is the namespace of the market service
const MARKET = "market"

// MarketEndpoints contains implementations for the "market" RPC endpoints
type MarketEndpoints struct {
	logger       *log.Logger
	meter        metric.Meter
	readTimeout  time.Duration
	writeTimeout time.Duration
	market       Marketer
}

// NewMarketEndpoints returns MarketEndpoints
func NewMarketEndpoints(
	logger *log.Logger,
	writeTimeout time.Duration,
	readTimeout time.Duration,
	market Marketer,
) *MarketEndpoints {
	meter := otel.Meter(meterName)

	return &MarketEndpoints{
		logger:       logger,
		meter:        meter,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		market:       market,
	}
}

// List puts the caller's token up for sale and moves it into escrow.
func (m *MarketEndpoints) List(caller common.Address, tokenID uint64, price *big.Int) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()

	c, merr := m.meter.Int64Counter("list")
	if merr != nil {
		m.logger.Warnf("failed to create list counter: %s", merr)
	}
	c.Add(ctx, 1)

	if err := m.market.List(ctx, caller, tokenID, price); err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to list token, error: %s", err))
	}

	return nil, nil
}

// Unlist takes the caller's listing down and returns the token from escrow.
func (m *MarketEndpoints) Unlist(caller common.Address, tokenID uint64) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()

	c, merr := m.meter.Int64Counter("unlist")
	if merr != nil {
		m.logger.Warnf("failed to create unlist counter: %s", merr)
	}
	c.Add(ctx, 1)

	if err := m.market.Unlist(ctx, caller, tokenID); err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to unlist token, error: %s", err))
	}

	return nil, nil
}

// Buy purchases a listed token for the caller at the listed price.
func (m *MarketEndpoints) Buy(caller common.Address, tokenID uint64) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()

	c, merr := m.meter.Int64Counter("buy")
	if merr != nil {
		m.logger.Warnf("failed to create buy counter: %s", merr)
	}
	c.Add(ctx, 1)

	if err := m.market.Buy(ctx, caller, tokenID); err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to buy token, error: %s", err))
	}

	return nil, nil
}

// GetListing returns the sale state of the token. Unlisted tokens read back
// as an inactive zero record.
func (m *MarketEndpoints) GetListing(tokenID uint64) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.readTimeout)
	defer cancel()

	c, merr := m.meter.Int64Counter("get_listing")
	if merr != nil {
		m.logger.Warnf("failed to create get_listing counter: %s", merr)
	}
	c.Add(ctx, 1)

	listing, err := m.market.GetListing(ctx, tokenID)
	if err != nil {
		return zeroHex, rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("failed to get listing, error: %s", err))
	}

	return listing, nil
}
