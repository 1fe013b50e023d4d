package wallet

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TransferAuthorization is the detachable signature material for an EIP-3009
// transferWithAuthorization call. It authorizes exactly the tuple
// (from, to, value, validAfter, validBefore, nonce) and nothing else.
type TransferAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
	V           uint8
	R           [32]byte
	S           [32]byte
}

// AuthorizationSigner builds and signs EIP-712 typed transfer authorizations
// with keys derived from the root mnemonic.
type AuthorizationSigner struct {
	deriver *Deriver
	domain  apitypes.TypedDataDomain
}

// NewAuthorizationSigner creates a signer bound to the deployed token
// contract's EIP-712 domain.
func NewAuthorizationSigner(deriver *Deriver, tokenName, tokenVersion string, chainID int64, tokenContract common.Address) *AuthorizationSigner {
	return &AuthorizationSigner{
		deriver: deriver,
		domain: apitypes.TypedDataDomain{
			Name:              tokenName,
			Version:           tokenVersion,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: tokenContract.Hex(),
		},
	}
}

// SignTransferAuthorization signs a TransferWithAuthorization message from
// the derived account. The nonce is a fresh random 32-byte value on every
// call; reusing one would allow a signed authorization to replay.
// A derivation failure is surfaced to the caller, never retried.
func (s *AuthorizationSigner) SignTransferAuthorization(
	account Account,
	to common.Address,
	value *big.Int,
	validAfter *big.Int,
	validBefore *big.Int,
) (*TransferAuthorization, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate authorization nonce: %w", err)
	}

	typed := s.typedData(account.Address, to, value, validAfter, validBefore, nonce)

	digest, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	key, err := s.deriver.PrivateKey(account.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve signing key: %w", err)
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}

	// Split 65-byte signature into r (32), s (32), v (1); normalize v to 27/28.
	auth := &TransferAuthorization{
		From:        account.Address,
		To:          to,
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
		V:           sig[64] + 27,
	}
	copy(auth.R[:], sig[:32])
	copy(auth.S[:], sig[32:64])

	return auth, nil
}

func (s *AuthorizationSigner) typedData(
	from common.Address,
	to common.Address,
	value *big.Int,
	validAfter *big.Int,
	validBefore *big.Int,
	nonce [32]byte,
) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain:      s.domain,
		Message: apitypes.TypedDataMessage{
			"from":        from.Hex(),
			"to":          to.Hex(),
			"value":       (*math.HexOrDecimal256)(value),
			"validAfter":  (*math.HexOrDecimal256)(validAfter),
			"validBefore": (*math.HexOrDecimal256)(validBefore),
			"nonce":       hexutil.Encode(nonce[:]),
		},
	}
}
