// Package ledgerstore persists users, tips, settings, and admins in
// PostgreSQL. All balance and quota mutations are expressed as guarded SQL
// updates so that concurrent requests can never drive a balance negative or
// double-spend a quota slot.
package ledgerstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/slacktip/tipbot/pkg/ledger"
)

// Store is the persistence surface of the tipping ledger. Implementations
// return the ledger sentinel errors (ledger.ErrUserNotFound,
// ledger.ErrDuplicateTip, ledger.ErrInsufficientExtraBalance) for the
// conditions callers branch on.
type Store interface {
	// RunInTx runs fn inside a database transaction; the Store passed to fn
	// is scoped to that transaction. Nested calls reuse the ambient
	// transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// GetOrCreateUser returns the ledger entry for slackID, creating a fresh
	// zero-balance entry on first contact.
	GetOrCreateUser(ctx context.Context, slackID string) (*ledger.User, error)
	GetUserBySlackID(ctx context.Context, slackID string) (*ledger.User, error)
	GetUserByID(ctx context.Context, id int64) (*ledger.User, error)
	SetDepositAddress(ctx context.Context, userID int64, address string) error
	SetWithdrawalAddress(ctx context.Context, userID int64, address string) error

	// SetQuota overwrites the sender's daily counter and reset date. Used by
	// the lazy midnight reset and after each accepted tip.
	SetQuota(ctx context.Context, userID int64, tipsGivenToday int, lastResetDate time.Time) error

	CreditFreeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	// DebitFreeBalance is guarded: the update only applies while the balance
	// stays non-negative, and a failed guard surfaces as an error.
	DebitFreeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	CreditExtraBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	// DebitExtraBalance is guarded: it returns
	// ledger.ErrInsufficientExtraBalance when the balance would go negative.
	DebitExtraBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	// ListUsersWithFreeBalance returns every user holding a positive free
	// balance, for the periodic withdrawal reminder.
	ListUsersWithFreeBalance(ctx context.Context) ([]*ledger.User, error)

	// CreateTip inserts the tip record; a second tip for the same
	// (from, to, message) tuple returns ledger.ErrDuplicateTip.
	CreateTip(ctx context.Context, tip *ledger.Tip) error
	SetTipTxHash(ctx context.Context, tipID, txHash string) error
	ListTipsByUser(ctx context.Context, userID int64, limit int) ([]*ledger.Tip, error)
	// ListRecentTips returns the newest tips across all users, newest first.
	ListRecentTips(ctx context.Context, limit int) ([]*ledger.Tip, error)

	GetSettings(ctx context.Context) (*ledger.Settings, error)
	UpdateSettings(ctx context.Context, dailyTipLimit int, tipAmount decimal.Decimal) error
	IsAdmin(ctx context.Context, slackID string) (bool, error)
	AddAdmin(ctx context.Context, slackID string) error
	ListAdmins(ctx context.Context) ([]string, error)
}
