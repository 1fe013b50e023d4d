package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/slacktip/tipbot/internal/metrics"
	"github.com/slacktip/tipbot/pkg/ledger"
)

// maxValidBefore makes sweep authorizations effectively non-expiring; the
// queue may redeem them well after signing.
var maxValidBefore = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// DepositAddress returns the user's deposit address, deriving and recording
// it on first use. The derivation index is the user's ledger id, so the
// address is stable and re-derivable from the root mnemonic alone.
func (e *Engine) DepositAddress(ctx context.Context, slackID string) (string, error) {
	usr, err := e.store.GetOrCreateUser(ctx, slackID)
	if err != nil {
		return "", err
	}
	if usr.DepositAddress != "" {
		return usr.DepositAddress, nil
	}

	acct, err := e.deriver.Account(uint32(usr.ID))
	if err != nil {
		return "", fmt.Errorf("failed to derive deposit account: %w", err)
	}

	address := acct.Address.Hex()
	if err := e.store.SetDepositAddress(ctx, usr.ID, address); err != nil {
		return "", err
	}

	e.logger.Info("Deposit address assigned",
		zap.String("slack_id", slackID),
		zap.String("address", address))
	return address, nil
}

// SweepResult reports a sweep request.
type SweepResult struct {
	DepositAddress string
	Amount         decimal.Decimal
	Enqueued       bool
}

// SweepDeposit moves whatever sits on the user's deposit address into the
// pool and credits it as extra balance. The chain leg runs on the queue; the
// credit lands only after the transfer confirms.
func (e *Engine) SweepDeposit(ctx context.Context, slackID string) (*SweepResult, error) {
	usr, err := e.store.GetUserBySlackID(ctx, slackID)
	if err != nil {
		return nil, err
	}
	if usr.DepositAddress == "" {
		// Assign one so the user knows where to send funds.
		address, err := e.DepositAddress(ctx, slackID)
		if err != nil {
			return nil, err
		}
		return &SweepResult{DepositAddress: address, Amount: decimal.Zero}, nil
	}

	acct, err := e.deriver.Account(uint32(usr.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to derive deposit account: %w", err)
	}

	balance, err := e.chain.BalanceOf(ctx, acct.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to read deposit balance: %w", err)
	}
	if balance.Sign() == 0 {
		return &SweepResult{DepositAddress: usr.DepositAddress, Amount: decimal.Zero}, nil
	}

	amount := ledger.FromTokenUnits(balance)
	userID := usr.ID

	err = e.queue.Enqueue("deposit_sweep", func(ctx context.Context) error {
		sweepFailed := fmt.Sprintf(
			"Your deposit of %s USDC could not be collected. Please try again later or contact an admin.",
			amount.String())

		// The deposit key signs an authorization; the pool key pays the gas.
		auth, err := e.signer.SignTransferAuthorization(acct, e.chain.AdminAddress(), balance, big.NewInt(0), maxValidBefore)
		if err != nil {
			e.notify(ctx, slackID, sweepFailed)
			return fmt.Errorf("failed to sign sweep authorization: %w", err)
		}

		txHash, err := e.chain.TransferWithAuthorization(ctx, auth)
		if err != nil {
			e.notify(ctx, slackID, sweepFailed)
			return fmt.Errorf("failed to sweep deposit for user %d: %w", userID, err)
		}
		if err := e.chain.WaitForConfirmation(ctx, txHash); err != nil {
			e.notify(ctx, slackID, sweepFailed)
			return fmt.Errorf("failed to confirm sweep for user %d: %w", userID, err)
		}

		if err := e.store.CreditExtraBalance(ctx, userID, amount); err != nil {
			return fmt.Errorf("failed to credit swept deposit for user %d: %w", userID, err)
		}

		amt, _ := amount.Float64()
		metrics.SweepAmount.Observe(amt)

		e.notify(ctx, slackID, fmt.Sprintf(
			"Your deposit of %s USDC was received and added to your tipping balance: %s",
			amount.String(), e.txLink(txHash)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue sweep: %w", err)
	}

	e.logger.Info("Deposit sweep enqueued",
		zap.String("slack_id", slackID),
		zap.String("amount", amount.String()))

	return &SweepResult{DepositAddress: usr.DepositAddress, Amount: amount, Enqueued: true}, nil
}
