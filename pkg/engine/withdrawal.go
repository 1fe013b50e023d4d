package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/slacktip/tipbot/pkg/ledger"
)

// WithdrawResult reports a withdrawal request.
type WithdrawResult struct {
	Address  string
	Amount   decimal.Decimal
	Enqueued bool
}

// Withdraw links a withdrawal address to the user and, if they hold internal
// credit, pays it out from the pool. The free balance is debited only after
// the transfer confirms; once the address is linked, future tips to this user
// settle on-chain directly.
func (e *Engine) Withdraw(ctx context.Context, slackID, toAddress string) (*WithdrawResult, error) {
	if !common.IsHexAddress(toAddress) {
		return nil, ledger.ErrInvalidAddress
	}
	checksummed := common.HexToAddress(toAddress)

	usr, err := e.store.GetOrCreateUser(ctx, slackID)
	if err != nil {
		return nil, err
	}

	if err := e.store.SetWithdrawalAddress(ctx, usr.ID, checksummed.Hex()); err != nil {
		return nil, err
	}

	if usr.FreeBalance.IsZero() {
		return &WithdrawResult{Address: checksummed.Hex(), Amount: decimal.Zero}, nil
	}

	amount := usr.FreeBalance
	units := ledger.ToTokenUnits(amount)
	userID := usr.ID

	err = e.queue.Enqueue("withdrawal", func(ctx context.Context) error {
		withdrawalFailed := fmt.Sprintf(
			"Your %s USDC withdrawal could not be sent. Your balance is untouched; please try again later.",
			amount.String())

		txHash, err := e.chain.Transfer(ctx, checksummed, units)
		if err != nil {
			e.notify(ctx, slackID, withdrawalFailed)
			return fmt.Errorf("failed to pay withdrawal for user %d: %w", userID, err)
		}
		if err := e.chain.WaitForConfirmation(ctx, txHash); err != nil {
			e.notify(ctx, slackID, withdrawalFailed)
			return fmt.Errorf("failed to confirm withdrawal for user %d: %w", userID, err)
		}

		if err := e.store.DebitFreeBalance(ctx, userID, amount); err != nil {
			return fmt.Errorf("failed to debit withdrawn balance for user %d: %w", userID, err)
		}

		e.notify(ctx, slackID, fmt.Sprintf(
			"Your %s USDC withdrawal was sent: %s", amount.String(), e.txLink(txHash)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue withdrawal: %w", err)
	}

	e.logger.Info("Withdrawal enqueued",
		zap.String("slack_id", slackID),
		zap.String("address", checksummed.Hex()),
		zap.String("amount", amount.String()))

	return &WithdrawResult{Address: checksummed.Hex(), Amount: amount, Enqueued: true}, nil
}
