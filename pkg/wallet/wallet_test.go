package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Standard BIP-39 test mnemonic; the expected address for m/44'/60'/0'/0/0 is
// a published vector.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewDeriver_MissingMnemonic(t *testing.T) {
	_, err := NewDeriver("")
	require.Error(t, err)

	_, err = NewDeriver("   ")
	require.Error(t, err)
}

func TestNewDeriver_InvalidMnemonic(t *testing.T) {
	_, err := NewDeriver("not a valid mnemonic phrase")
	require.Error(t, err)
}

func TestDeriver_KnownVector(t *testing.T) {
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	acct, err := d.Account(0)
	require.NoError(t, err)
	require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", acct.Address.Hex())
}

func TestDeriver_Deterministic(t *testing.T) {
	d1, err := NewDeriver(testMnemonic)
	require.NoError(t, err)
	d2, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	for _, index := range []uint32{0, 1, 7, 42} {
		a1, err := d1.Account(index)
		require.NoError(t, err)
		a2, err := d2.Account(index)
		require.NoError(t, err)
		require.Equal(t, a1.Address, a2.Address, "index %d", index)
		require.Equal(t, index, a1.Index)
	}
}

func TestDeriver_DistinctIndexes(t *testing.T) {
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	seen := make(map[string]uint32)
	for index := uint32(0); index < 10; index++ {
		acct, err := d.Account(index)
		require.NoError(t, err)
		if prev, ok := seen[acct.Address.Hex()]; ok {
			t.Fatalf("index %d collides with index %d on address %s", index, prev, acct.Address.Hex())
		}
		seen[acct.Address.Hex()] = index
	}
}

func TestDeriver_PrivateKeyMatchesAddress(t *testing.T) {
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	acct, err := d.Account(3)
	require.NoError(t, err)

	key, err := d.PrivateKey(3)
	require.NoError(t, err)
	require.NotNil(t, key)

	admin, err := d.AdminAccount()
	require.NoError(t, err)
	require.Equal(t, AdminIndex, admin.Index)
	require.NotEqual(t, admin.Address, acct.Address)
}
