package fungible

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/russross/meddler"
	mdcommon "github.com/sinycat/merkledrop/common"
	"github.com/sinycat/merkledrop/db"
)

const signatureLength = 65

var (
	ErrPermitExpired    = errors.New("permit deadline has passed")
	ErrInvalidSignature = errors.New("permit signature does not match owner")
)

// PermitDigest returns the digest owner must sign to grant spender an
// allowance of value until deadline, using the given nonce. Clients fetch
// the nonce with NonceOf and sign offline.
func (l *Ledger) PermitDigest(owner, spender common.Address, value *big.Int, nonce, deadline uint64) common.Hash {
	return mdcommon.CalculatePermitDigest(l.logger, l.networkID, l.token, owner, spender, value, nonce, deadline)
}

// Permit applies an offline approval. On success the owner's nonce is
// consumed and the allowance replaced, exactly as if owner had called
// Approve themselves.
func (l *Ledger) Permit(
	ctx context.Context,
	owner, spender common.Address,
	value *big.Int,
	deadline uint64,
	sig []byte,
) error {
	tx, err := db.NewTx(ctx, l.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				l.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = l.PermitWithTx(tx, owner, spender, value, deadline, sig); err != nil {
		return err
	}

	return tx.Commit()
}

// PermitWithTx is Permit inside the caller's transaction.
func (l *Ledger) PermitWithTx(
	q meddler.DB,
	owner, spender common.Address,
	value *big.Int,
	deadline uint64,
	sig []byte,
) error {
	if err := checkAmount(value); err != nil {
		return err
	}
	if uint64(time.Now().Unix()) > deadline {
		return ErrPermitExpired
	}

	nonce, err := getNonce(q, owner)
	if err != nil {
		return err
	}

	digest := l.PermitDigest(owner, spender, value, nonce, deadline)
	signer, err := RecoverSigner(digest, sig)
	if err != nil {
		return err
	}
	if signer != owner {
		return ErrInvalidSignature
	}

	if err := bumpNonce(q, owner, nonce); err != nil {
		return err
	}

	return setAllowance(q, owner, spender, value)
}

// RecoverSigner returns the address that produced sig over digest. The last
// byte is the recovery id, both 0/1 and 27/28 forms are accepted.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, signatureLength)
	copy(normalized, sig)
	if normalized[signatureLength-1] >= 27 { //nolint:mnd
		normalized[signatureLength-1] -= 27
	}

	pub, err := crypto.SigToPub(digest[:], normalized)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SignPermit signs digest with key. It is the client half of the offline
// approval flow.
func SignPermit(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest[:], key)
}
