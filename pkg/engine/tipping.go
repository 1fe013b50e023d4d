package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slacktip/tipbot/internal/metrics"
	"github.com/slacktip/tipbot/pkg/ledger"
	"github.com/slacktip/tipbot/pkg/ledgerstore"
)

// TipOutcome says how an accepted tip settled.
type TipOutcome string

const (
	// TipOnChain means the amount was queued for an on-chain transfer to the
	// recipient's withdrawal address.
	TipOnChain TipOutcome = "onchain"
	// TipInternal means the amount was credited to the recipient's free
	// balance inside the ledger.
	TipInternal TipOutcome = "internal"
)

// TipResult reports an accepted tip.
type TipResult struct {
	Tip           *ledger.Tip
	Outcome       TipOutcome
	RemainingTips int
}

// Tip processes one tip from sender to recipient for the given message.
// Rejection (self tip, duplicate, exhausted limit) happens strictly before
// any balance changes; an accepted tip commits its ledger effects before the
// chain transfer, if any, is enqueued.
func (e *Engine) Tip(ctx context.Context, fromSlackID, toSlackID string, ref ledger.MessageRef) (*TipResult, error) {
	if fromSlackID == toSlackID {
		metrics.TipsTotal.WithLabelValues("rejected").Inc()
		return nil, ledger.ErrSelfTip
	}

	var result TipResult
	var recipient *ledger.User

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx ledgerstore.Store) error {
		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}

		sender, err := tx.GetOrCreateUser(ctx, fromSlackID)
		if err != nil {
			return err
		}
		recipient, err = tx.GetOrCreateUser(ctx, toSlackID)
		if err != nil {
			return err
		}

		// Lazy midnight reset: the counter belongs to a past day, so the
		// sender starts today from zero.
		today := ledger.DateOf(e.now())
		given := sender.TipsGivenToday
		if ledger.DateOf(sender.LastResetDate).Before(today) {
			given = 0
		}

		fromQuota := given < settings.DailyTipLimit
		if !fromQuota && sender.ExtraBalance.LessThan(settings.TipAmount) {
			return ledger.ErrTipLimitReached
		}

		tip := &ledger.Tip{
			ID:         uuid.NewString(),
			FromUserID: sender.ID,
			ToUserID:   recipient.ID,
			Amount:     settings.TipAmount,
			ChannelID:  ref.ChannelID,
			MessageTS:  ref.MessageTS,
		}
		// The unique index on (from, to, channel, message) turns a repeat
		// tip into ErrDuplicateTip here, before any balance moves.
		if err := tx.CreateTip(ctx, tip); err != nil {
			return err
		}

		if fromQuota {
			given++
		} else {
			if err := tx.DebitExtraBalance(ctx, sender.ID, settings.TipAmount); err != nil {
				if errors.Is(err, ledger.ErrInsufficientExtraBalance) {
					return ledger.ErrTipLimitReached
				}
				return err
			}
		}
		if err := tx.SetQuota(ctx, sender.ID, given, today); err != nil {
			return err
		}

		if recipient.HasWithdrawalAddress() {
			result.Outcome = TipOnChain
		} else {
			if err := tx.CreditFreeBalance(ctx, recipient.ID, settings.TipAmount); err != nil {
				return err
			}
			result.Outcome = TipInternal
		}

		result.Tip = tip
		result.RemainingTips = settings.DailyTipLimit - given
		if result.RemainingTips < 0 {
			result.RemainingTips = 0
		}
		return nil
	})
	if err != nil {
		metrics.TipsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	switch result.Outcome {
	case TipOnChain:
		metrics.TipsTotal.WithLabelValues("accepted_onchain").Inc()
		e.enqueueOnChainTip(result.Tip, fromSlackID, toSlackID,
			common.HexToAddress(recipient.WithdrawalAddress), result.RemainingTips)
	case TipInternal:
		metrics.TipsTotal.WithLabelValues("accepted_internal").Inc()
		e.notify(ctx, toSlackID, fmt.Sprintf(
			"You received a %s USDC tip! It was credited to your balance. Link a withdrawal address to receive future tips on-chain.",
			result.Tip.Amount.String()))
	}

	e.logger.Info("Tip accepted",
		zap.String("tip_id", result.Tip.ID),
		zap.String("from", fromSlackID),
		zap.String("to", toSlackID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("remaining_tips", result.RemainingTips))

	return &result, nil
}

// enqueueOnChainTip hands the pool transfer for an accepted on-chain tip to
// the transaction queue. The tip row already exists; the job attaches the
// transaction hash and tells both parties. When the pool cannot cover the
// amount the tip degrades to an internal credit instead of failing.
func (e *Engine) enqueueOnChainTip(tip *ledger.Tip, fromSlackID, toSlackID string, to common.Address, remainingTips int) {
	amount := ledger.ToTokenUnits(tip.Amount)

	err := e.queue.Enqueue("tip_transfer", func(ctx context.Context) error {
		poolBalance, err := e.chain.BalanceOf(ctx, e.chain.AdminAddress())
		if err != nil {
			e.notifyTipFailed(ctx, fromSlackID, tip)
			return fmt.Errorf("failed to read pool balance for tip %s: %w", tip.ID, err)
		}

		if poolBalance.Cmp(amount) < 0 {
			if err := e.store.CreditFreeBalance(ctx, tip.ToUserID, tip.Amount); err != nil {
				e.notifyTipFailed(ctx, fromSlackID, tip)
				return fmt.Errorf("failed to credit tip %s after pool shortfall: %w", tip.ID, err)
			}
			e.logger.Warn("Pool balance too low for on-chain tip, credited internally",
				zap.String("tip_id", tip.ID),
				zap.String("pool_balance", poolBalance.String()),
				zap.String("amount", amount.String()))
			e.notify(ctx, toSlackID, fmt.Sprintf(
				"You received a %s USDC tip! The pool is low on funds, so it was credited to your balance for now.",
				tip.Amount.String()))
			e.notify(ctx, fromSlackID, fmt.Sprintf(
				"Your %s USDC tip was credited to the recipient's balance (pool balance too low for an on-chain transfer). You have %d free tips left today.",
				tip.Amount.String(), remainingTips))
			return nil
		}

		txHash, err := e.chain.Transfer(ctx, to, amount)
		if err != nil {
			e.notifyTipFailed(ctx, fromSlackID, tip)
			return fmt.Errorf("failed to transfer tip %s: %w", tip.ID, err)
		}
		if err := e.chain.WaitForConfirmation(ctx, txHash); err != nil {
			e.notifyTipFailed(ctx, fromSlackID, tip)
			return fmt.Errorf("failed to confirm tip %s: %w", tip.ID, err)
		}

		link := e.txLink(txHash)
		e.notify(ctx, toSlackID, fmt.Sprintf("You received a %s USDC tip on-chain: %s", tip.Amount.String(), link))
		e.notify(ctx, fromSlackID, fmt.Sprintf(
			"Your %s USDC tip was delivered on-chain: %s. You have %d free tips left today.",
			tip.Amount.String(), link, remainingTips))

		if err := e.store.SetTipTxHash(ctx, tip.ID, txHash.Hex()); err != nil {
			return fmt.Errorf("failed to record tx hash for tip %s: %w", tip.ID, err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to enqueue tip transfer",
			zap.String("tip_id", tip.ID),
			zap.Error(err))
	}
}

func (e *Engine) notifyTipFailed(ctx context.Context, fromSlackID string, tip *ledger.Tip) {
	e.notify(ctx, fromSlackID, fmt.Sprintf(
		"Your %s USDC tip could not be delivered on-chain. Please try again later or contact an admin.",
		tip.Amount.String()))
}
