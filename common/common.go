package common

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/keccak256"
	"github.com/sinycat/merkledrop/log"
)

// Uint64ToBytes converts a uint64 to a byte slice
func Uint64ToBytes(num uint64) []byte {
	const uint64ByteSize = 8

	bytes := make([]byte, uint64ByteSize)
	binary.BigEndian.PutUint64(bytes, num)

	return bytes
}

// BytesToUint64 converts a byte slice to a uint64
func BytesToUint64(bytes []byte) uint64 {
	return binary.BigEndian.Uint64(bytes)
}

// Uint32ToBytes converts a uint32 to a byte slice in big-endian order
func Uint32ToBytes(num uint32) []byte {
	const uint32ByteSize = 4

	key := make([]byte, uint32ByteSize)
	binary.BigEndian.PutUint32(key, num)

	return key
}

// BytesToUint32 converts a byte slice to a uint32
func BytesToUint32(bytes []byte) uint32 {
	return binary.BigEndian.Uint32(bytes)
}

// CalculatePermitDigest computes the digest an owner signs to authorize a
// spender over value units until deadline. The nonce binds the signature to
// a single use and the network id binds it to one deployment.
func CalculatePermitDigest(
	logger *log.Logger,
	networkID uint32,
	token common.Address,
	owner common.Address,
	spender common.Address,
	value *big.Int,
	nonce uint64,
	deadline uint64,
) common.Hash {
	v1 := Uint32ToBytes(networkID)
	v2 := token.Bytes()
	v3 := owner.Bytes()
	v4 := spender.Bytes()
	v5 := value.Bytes()
	v6 := Uint64ToBytes(nonce)
	v7 := Uint64ToBytes(deadline)

	// Add 0s to make values 32 bytes long
	for len(v5) < 32 {
		v5 = append([]byte{0}, v5...)
	}

	if logger != nil {
		logger.Debugf("Token: %v", token)
		logger.Debugf("Owner: %v", owner)
		logger.Debugf("Spender: %v", spender)
		logger.Debugf("Value: %v", value)
		logger.Debugf("Nonce: %v", nonce)
		logger.Debugf("Deadline: %v", deadline)
	}

	return common.BytesToHash(keccak256.Hash(v1, v2, v3, v4, v5, v6, v7))
}
