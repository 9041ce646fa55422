package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/batch"
	"github.com/sinycat/merkledrop/drop"
	"github.com/sinycat/merkledrop/rpc/types"
	"github.com/sinycat/merkledrop/tree"
)

type DropClientInterface interface {
	SetRoot(caller common.Address, root common.Hash) error
	SetBasePrice(caller common.Address, price *big.Int) error
	Status() (*types.DropStatus, error)
	IsWhitelisted(identity common.Address, proof tree.Proof) (bool, error)
	Claim(claimer common.Address, proof tree.Proof, metadataHint *string) (uint64, error)
	ClaimStatus(identity common.Address) (*drop.ClaimRecord, error)
	PublishAllowlist(members []common.Address) (common.Hash, error)
	AllowlistMembers(root common.Hash) ([]common.Address, error)
	ProofFor(root common.Hash, account common.Address) (tree.Proof, error)
	Withdraw(caller, to common.Address, amount *big.Int) error
	Batch(caller common.Address, calls []batch.Call) ([]batch.Result, error)
}

// SetRoot publishes a new allow-list root on the server.
func (c *Client) SetRoot(caller common.Address, root common.Hash) error {
	response, err := rpc.JSONRPCCall(c.url, "drop_setRoot", caller, root)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}

	return nil
}

// SetBasePrice replaces the non-discounted claim price on the server.
func (c *Client) SetBasePrice(caller common.Address, price *big.Int) error {
	response, err := rpc.JSONRPCCall(c.url, "drop_setBasePrice", caller, price)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}

	return nil
}

// Status returns the published root, the base price and the issuance counters.
func (c *Client) Status() (*types.DropStatus, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_status")
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result types.DropStatus

	return &result, json.Unmarshal(response.Result, &result)
}

// IsWhitelisted reports whether the proof places identity under the published root.
func (c *Client) IsWhitelisted(identity common.Address, proof tree.Proof) (bool, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_isWhitelisted", identity, proof)
	if err != nil {
		return false, err
	}
	if response.Error != nil {
		return false, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result bool

	return result, json.Unmarshal(response.Result, &result)
}

// Claim issues one token to claimer against payment and returns the token id.
func (c *Client) Claim(claimer common.Address, proof tree.Proof, metadataHint *string) (uint64, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_claim", claimer, proof, metadataHint)
	if err != nil {
		return 0, err
	}
	if response.Error != nil {
		return 0, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result uint64

	return result, json.Unmarshal(response.Result, &result)
}

// ClaimStatus returns the permanent claim record of identity.
func (c *Client) ClaimStatus(identity common.Address) (*drop.ClaimRecord, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_claimStatus", identity)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result drop.ClaimRecord

	return &result, json.Unmarshal(response.Result, &result)
}

// PublishAllowlist stores the member set on the server and returns its root.
func (c *Client) PublishAllowlist(members []common.Address) (common.Hash, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_publishAllowlist", members)
	if err != nil {
		return common.Hash{}, err
	}
	if response.Error != nil {
		return common.Hash{}, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result common.Hash

	return result, json.Unmarshal(response.Result, &result)
}

// AllowlistMembers returns the members of a published set in leaf order.
func (c *Client) AllowlistMembers(root common.Hash) ([]common.Address, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_allowlistMembers", root)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result []common.Address

	return result, json.Unmarshal(response.Result, &result)
}

// ProofFor builds the membership proof for account under a published set.
func (c *Client) ProofFor(root common.Hash, account common.Address) (tree.Proof, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_proofFor", root, account)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result tree.Proof

	return result, json.Unmarshal(response.Result, &result)
}

// Withdraw moves accumulated claim payments to the destination.
func (c *Client) Withdraw(caller, to common.Address, amount *big.Int) error {
	response, err := rpc.JSONRPCCall(c.url, "drop_withdraw", caller, to, amount)
	if err != nil {
		return err
	}
	if response.Error != nil {
		return fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}

	return nil
}

// Batch runs the calls in order as one unit under the caller's authority.
func (c *Client) Batch(caller common.Address, calls []batch.Call) ([]batch.Result, error) {
	response, err := rpc.JSONRPCCall(c.url, "drop_batch", caller, calls)
	if err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("%v %v", response.Error.Code, response.Error.Message)
	}
	var result []batch.Result

	return result, json.Unmarshal(response.Result, &result)
}
