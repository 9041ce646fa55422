package common

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestUint64ToBytesRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input uint64
	}{
		{name: "Zero value", input: 0},
		{name: "Small value", input: 42},
		{name: "Max value", input: ^uint64(0)},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := Uint64ToBytes(tt.input)
			if len(b) != 8 {
				t.Errorf("expected length 8, got %d", len(b))
			}
			if got := BytesToUint64(b); got != tt.input {
				t.Errorf("expected %d, got %d", tt.input, got)
			}
		})
	}
}

func TestUint32ToBytesRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input uint32
	}{
		{name: "Zero value", input: 0},
		{name: "Small value", input: 7},
		{name: "Max value", input: ^uint32(0)},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := Uint32ToBytes(tt.input)
			if len(b) != 4 {
				t.Errorf("expected length 4, got %d", len(b))
			}
			if got := BytesToUint32(b); got != tt.input {
				t.Errorf("expected %d, got %d", tt.input, got)
			}
		})
	}
}

func TestCalculatePermitDigest(t *testing.T) {
	t.Parallel()

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	owner := common.HexToAddress("0x2222222222222222222222222222222222222222")
	spender := common.HexToAddress("0x3333333333333333333333333333333333333333")

	base := CalculatePermitDigest(nil, 1, token, owner, spender, big.NewInt(100), 0, 999)

	tests := []struct {
		name   string
		digest common.Hash
	}{
		{
			name:   "Different nonce",
			digest: CalculatePermitDigest(nil, 1, token, owner, spender, big.NewInt(100), 1, 999),
		},
		{
			name:   "Different value",
			digest: CalculatePermitDigest(nil, 1, token, owner, spender, big.NewInt(101), 0, 999),
		},
		{
			name:   "Different network",
			digest: CalculatePermitDigest(nil, 2, token, owner, spender, big.NewInt(100), 0, 999),
		},
		{
			name:   "Different deadline",
			digest: CalculatePermitDigest(nil, 1, token, owner, spender, big.NewInt(100), 0, 1000),
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.digest == base {
				t.Errorf("expected digest to differ from base %s", base)
			}
		})
	}

	again := CalculatePermitDigest(nil, 1, token, owner, spender, big.NewInt(100), 0, 999)
	if again != base {
		t.Errorf("expected deterministic digest, got %s and %s", base, again)
	}
}
