// Package ethereum talks to the token contract over JSON-RPC. All chain
// writes go out signed by the admin pool key; user funds move via signed
// transfer authorizations redeemed by the pool.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/slacktip/tipbot/pkg/config"
	"github.com/slacktip/tipbot/pkg/wallet"
)

// Client represents an Ethereum client bound to the token contract
type Client struct {
	config     *config.EthereumConfig
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger

	tokenAddress common.Address
	token        *bind.BoundContract
}

// NewClient creates a new Ethereum client. adminKey signs every outgoing
// transaction and pays its gas.
func NewClient(cfg *config.EthereumConfig, adminKey *ecdsa.PrivateKey, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	address := crypto.PubkeyToAddress(adminKey.PublicKey)
	tokenAddress := common.HexToAddress(cfg.TokenContract)
	token := bind.NewBoundContract(tokenAddress, parsed, client, client, client)

	logger.Info("Connected to Ethereum",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("token_contract", tokenAddress.Hex()),
		zap.String("admin_address", address.Hex()))

	return &Client{
		config:       cfg,
		client:       client,
		privateKey:   adminKey,
		address:      address,
		tokenAddress: tokenAddress,
		token:        token,
		logger:       logger,
	}, nil
}

// Close closes the Ethereum client
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// AdminAddress returns the address of the pool signing key.
func (c *Client) AdminAddress() common.Address {
	return c.address
}

// TokenAddress returns the token contract address.
func (c *Client) TokenAddress() common.Address {
	return c.tokenAddress
}

// GetTransactor returns a transaction signer for the admin key
func (c *Client) GetTransactor(ctx context.Context) (*bind.TransactOpts, error) {
	chainID := big.NewInt(c.config.ChainID)

	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	auth.Nonce = big.NewInt(int64(nonce))
	auth.GasLimit = c.config.GasLimit
	auth.Context = ctx

	// Cap gas price if configured
	if c.config.MaxGasPrice != "" {
		maxGasPrice := new(big.Int)
		maxGasPrice.SetString(c.config.MaxGasPrice, 10)

		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}

		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			auth.GasPrice = maxGasPrice
		} else {
			auth.GasPrice = gasPrice
		}
	}

	return auth, nil
}

// BalanceOf reads the token balance of an address in smallest units.
func (c *Client) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []any
	err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance of %s: %w", account.Hex(), err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Transfer moves tokens from the pool account to a recipient.
func (c *Client) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	auth, err := c.GetTransactor(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := c.token.Transact(auth, "transfer", to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to submit transfer: %w", err)
	}

	c.logger.Info("Transfer submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()))

	return tx.Hash(), nil
}

// TransferWithAuthorization redeems a signed transfer authorization, moving
// tokens out of the signer's account with gas paid by the pool key.
func (c *Client) TransferWithAuthorization(ctx context.Context, a *wallet.TransferAuthorization) (common.Hash, error) {
	auth, err := c.GetTransactor(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := c.token.Transact(auth, "transferWithAuthorization",
		a.From, a.To, a.Value, a.ValidAfter, a.ValidBefore, a.Nonce, a.V, a.R, a.S)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to submit transfer authorization: %w", err)
	}

	c.logger.Info("Transfer authorization submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("from", a.From.Hex()),
		zap.String("to", a.To.Hex()),
		zap.String("value", a.Value.String()))

	return tx.Hash(), nil
}

// WaitForConfirmation polls for the transaction receipt and waits until it is
// buried under the configured confirmation depth. A reverted transaction is
// an error.
func (c *Client) WaitForConfirmation(ctx context.Context, txHash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.PollingInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("failed to get receipt for %s: %w", txHash.Hex(), err)
		}

		if receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("transaction %s reverted", txHash.Hex())
			}

			latest, err := c.client.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("failed to get latest block: %w", err)
			}
			confirmations := latest - receipt.BlockNumber.Uint64() + 1
			if confirmations >= c.config.Confirmations {
				c.logger.Debug("Transaction confirmed",
					zap.String("tx_hash", txHash.Hex()),
					zap.Uint64("confirmations", confirmations))
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for confirmation of %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
