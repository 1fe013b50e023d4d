package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) (*Deriver, *AuthorizationSigner) {
	t.Helper()

	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	tokenContract := common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	return d, NewAuthorizationSigner(d, "USD Coin", "2", 8453, tokenContract)
}

func TestSignTransferAuthorization_RecoversSigner(t *testing.T) {
	d, signer := newTestSigner(t)

	acct, err := d.Account(5)
	require.NoError(t, err)

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	value := big.NewInt(10_000) // 0.01 in 6-decimal units
	validAfter := big.NewInt(0)
	validBefore := new(big.Int).Lsh(big.NewInt(1), 200)

	auth, err := signer.SignTransferAuthorization(acct, to, value, validAfter, validBefore)
	require.NoError(t, err)
	require.Equal(t, acct.Address, auth.From)
	require.Equal(t, to, auth.To)
	require.Contains(t, []uint8{27, 28}, auth.V)

	// Re-derive the digest and recover the signing address from (v, r, s).
	typed := signer.typedData(auth.From, auth.To, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce)
	digest, _, err := apitypes.TypedDataAndHash(typed)
	require.NoError(t, err)

	sig := make([]byte, 65)
	copy(sig[:32], auth.R[:])
	copy(sig[32:64], auth.S[:])
	sig[64] = auth.V - 27

	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	require.Equal(t, acct.Address, crypto.PubkeyToAddress(*pub))
}

func TestSignTransferAuthorization_FreshNonce(t *testing.T) {
	d, signer := newTestSigner(t)

	acct, err := d.Account(2)
	require.NoError(t, err)

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	value := big.NewInt(1)

	first, err := signer.SignTransferAuthorization(acct, to, value, big.NewInt(0), big.NewInt(1<<40))
	require.NoError(t, err)
	second, err := signer.SignTransferAuthorization(acct, to, value, big.NewInt(0), big.NewInt(1<<40))
	require.NoError(t, err)

	require.NotEqual(t, first.Nonce, second.Nonce, "identical inputs must still produce a fresh nonce")
	require.NotEqual(t, first.R, second.R)
}
