package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/market"
)

type MarketClientInterface interface {
	List(caller common.Address, tokenID uint64, price *big.Int) error
	Unlist(caller common.Address, tokenID uint64) error
	Buy(caller common.Address, tokenID uint64) error
	GetListing(tokenID uint64) (*market.Listing, error)
}

// List puts the caller's token up for sale and moves it into escrow.
func (c *Client) List(caller common.Address, tokenID uint64, price *big.Int) error {
	response, err := rpc.JSONRPCCall(c.url, "market_list", caller, tokenID, price)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}

	return nil
}

// Unlist takes the caller's listing down and returns the token from escrow.
func (c *Client) Unlist(caller common.Address, tokenID uint64) error {
	response, err := rpc.JSONRPCCall(c.url, "market_unlist", caller, tokenID)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}

	return nil
}

// Buy purchases a listed token for the caller at the listed price.
func (c *Client) Buy(caller common.Address, tokenID uint64) error {
	response, err := rpc.JSONRPCCall(c.url, "market_buy", caller, tokenID)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}

	return nil
}

// GetListing returns the sale state of the token.
func (c *Client) GetListing(tokenID uint64) (*market.Listing, error) {
	response, err := rpc.JSONRPCCall(c.url, "market_getListing", tokenID)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result market.Listing

	return &result, json.Unmarshal(response.Result, &result)
}
