// Package wallet derives blockchain accounts from the admin root mnemonic and
// signs EIP-3009 transfer authorizations on their behalf.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// AdminIndex is the derivation index of the admin/pool account. Every other
// index maps 1:1 to a user's deposit account.
const AdminIndex uint32 = 0

// Account is a derived account. Key material is never stored on it; the
// private key is re-derived from the root mnemonic when needed.
type Account struct {
	Index   uint32
	Address common.Address
}

// Deriver deterministically derives accounts from a single root mnemonic
// using the standard Ethereum BIP-44 path m/44'/60'/0'/0/<index>.
type Deriver struct {
	wallet *hdwallet.Wallet
}

// NewDeriver creates a deriver from the configured mnemonic. A missing or
// malformed mnemonic is a configuration error and fails construction.
func NewDeriver(mnemonic string) (*Deriver, error) {
	if strings.TrimSpace(mnemonic) == "" {
		return nil, fmt.Errorf("wallet mnemonic is not set")
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet mnemonic: %w", err)
	}

	return &Deriver{wallet: w}, nil
}

// Account derives the account for the given index. Pure: the same index
// always yields the same address.
func (d *Deriver) Account(index uint32) (Account, error) {
	acct, err := d.derive(index)
	if err != nil {
		return Account{}, err
	}
	return Account{Index: index, Address: acct.Address}, nil
}

// AdminAccount derives the admin/pool account (index 0).
func (d *Deriver) AdminAccount() (Account, error) {
	return d.Account(AdminIndex)
}

// PrivateKey re-derives the private key for the given index.
func (d *Deriver) PrivateKey(index uint32) (*ecdsa.PrivateKey, error) {
	acct, err := d.derive(index)
	if err != nil {
		return nil, err
	}

	key, err := d.wallet.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("failed to derive private key for index %d: %w", index, err)
	}
	return key, nil
}

func (d *Deriver) derive(index uint32) (accounts.Account, error) {
	path := hdwallet.MustParseDerivationPath(fmt.Sprintf("m/44'/60'/0'/0/%d", index))
	acct, err := d.wallet.Derive(path, false)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("failed to derive account %d: %w", index, err)
	}
	return acct, nil
}
