// Package engine implements the tip bot's value-transfer rules: deciding
// whether a tip settles on-chain or as internal credit, sweeping deposits
// into the pool, and paying withdrawals out of it. All chain writes are
// handed to the transaction queue; the database transaction always commits
// or rejects before any chain work is enqueued.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/slacktip/tipbot/pkg/ledger"
	"github.com/slacktip/tipbot/pkg/ledgerstore"
	"github.com/slacktip/tipbot/pkg/txqueue"
	"github.com/slacktip/tipbot/pkg/wallet"
)

// ChainGateway is the slice of the Ethereum client the engine drives.
type ChainGateway interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
	TransferWithAuthorization(ctx context.Context, a *wallet.TransferAuthorization) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, txHash common.Hash) error
	AdminAddress() common.Address
}

// Queue serializes chain-mutating jobs.
type Queue interface {
	Enqueue(name string, job txqueue.Job) error
}

// Notifier delivers direct messages to users. Delivery is best effort; the
// engine never fails an operation because a message could not be sent.
type Notifier interface {
	DirectMessage(ctx context.Context, slackID, text string) error
}

// Deriver resolves per-user accounts from the wallet root.
type Deriver interface {
	Account(index uint32) (wallet.Account, error)
	AdminAccount() (wallet.Account, error)
}

// Signer produces transfer authorizations for derived accounts.
type Signer interface {
	SignTransferAuthorization(account wallet.Account, to common.Address, value, validAfter, validBefore *big.Int) (*wallet.TransferAuthorization, error)
}

// Engine coordinates the ledger, the wallet, and the chain.
type Engine struct {
	store    ledgerstore.Store
	chain    ChainGateway
	queue    Queue
	notifier Notifier
	deriver  Deriver
	signer   Signer
	logger   *zap.Logger

	explorerBaseURL string

	// now is swapped out in tests to pin the quota day.
	now func() time.Time
}

// New creates the engine.
func New(
	store ledgerstore.Store,
	chain ChainGateway,
	queue Queue,
	notifier Notifier,
	deriver Deriver,
	signer Signer,
	explorerBaseURL string,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:           store,
		chain:           chain,
		queue:           queue,
		notifier:        notifier,
		deriver:         deriver,
		signer:          signer,
		explorerBaseURL: explorerBaseURL,
		logger:          logger,
		now:             time.Now,
	}
}

func (e *Engine) txLink(txHash common.Hash) string {
	return fmt.Sprintf("%s/tx/%s", e.explorerBaseURL, txHash.Hex())
}

func (e *Engine) notify(ctx context.Context, slackID, text string) {
	if err := e.notifier.DirectMessage(ctx, slackID, text); err != nil {
		e.logger.Warn("Failed to send direct message",
			zap.String("slack_id", slackID),
			zap.Error(err))
	}
}

// UserStatus is the externally visible view of a user's ledger entry.
type UserStatus struct {
	User          *ledger.User
	RemainingTips int
	TipAmount     decimal.Decimal
}

// UserStatus returns a user's balances and how many free tips they have left
// today. The remaining count accounts for a pending midnight reset without
// persisting it.
func (e *Engine) UserStatus(ctx context.Context, slackID string) (*UserStatus, error) {
	usr, err := e.store.GetUserBySlackID(ctx, slackID)
	if err != nil {
		return nil, err
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	given := usr.TipsGivenToday
	if ledger.DateOf(usr.LastResetDate).Before(ledger.DateOf(e.now())) {
		given = 0
	}
	remaining := settings.DailyTipLimit - given
	if remaining < 0 {
		remaining = 0
	}

	return &UserStatus{
		User:          usr,
		RemainingTips: remaining,
		TipAmount:     settings.TipAmount,
	}, nil
}

// Settings returns the current tipping settings.
func (e *Engine) Settings(ctx context.Context) (*ledger.Settings, error) {
	return e.store.GetSettings(ctx)
}

// UpdateSettings overwrites the daily limit and per-tip amount.
func (e *Engine) UpdateSettings(ctx context.Context, dailyTipLimit int, tipAmount decimal.Decimal) error {
	if dailyTipLimit < 0 {
		return fmt.Errorf("daily tip limit cannot be negative")
	}
	if tipAmount.IsNegative() || tipAmount.IsZero() {
		return fmt.Errorf("tip amount must be positive")
	}
	if err := e.store.UpdateSettings(ctx, dailyTipLimit, tipAmount); err != nil {
		return err
	}
	e.logger.Info("Settings updated",
		zap.Int("daily_tip_limit", dailyTipLimit),
		zap.String("tip_amount", tipAmount.String()))
	return nil
}

// RecentTips lists the newest tips across the whole ledger, newest first.
func (e *Engine) RecentTips(ctx context.Context, limit int) ([]*ledger.Tip, error) {
	return e.store.ListRecentTips(ctx, limit)
}

// IsAdmin reports whether the Slack user may call admin operations.
func (e *Engine) IsAdmin(ctx context.Context, slackID string) (bool, error) {
	return e.store.IsAdmin(ctx, slackID)
}

// AddAdmin grants admin rights to a Slack user.
func (e *Engine) AddAdmin(ctx context.Context, slackID string) error {
	return e.store.AddAdmin(ctx, slackID)
}

// SendWithdrawalReminders messages every user sitting on internal credit
// without a linked withdrawal address.
func (e *Engine) SendWithdrawalReminders(ctx context.Context) error {
	users, err := e.store.ListUsersWithFreeBalance(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for reminders: %w", err)
	}

	for _, usr := range users {
		if usr.HasWithdrawalAddress() {
			continue
		}
		e.notify(ctx, usr.SlackID, fmt.Sprintf(
			"You have %s USDC in tips waiting for you. Link a withdrawal address to receive them on-chain.",
			usr.FreeBalance.String()))
	}
	return nil
}
