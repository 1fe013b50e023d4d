// Package ledger holds the domain model for the tipping ledger: users,
// tips, settings, and the monetary conversions between the ledger's
// fixed-point representation and the token's smallest on-chain unit.
package ledger

import (
	"errors"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the smallest-unit scale of the tip token (USDC uses 6).
// Ledger amounts are fixed-point decimals; conversion to integer token units
// happens only at the chain-write boundary.
const TokenDecimals = 6

var (
	// ErrSelfTip rejects a user tipping themselves.
	ErrSelfTip = errors.New("cannot tip yourself")
	// ErrDuplicateTip rejects a second tip for the same message by the same pair.
	ErrDuplicateTip = errors.New("message already tipped")
	// ErrTipLimitReached rejects a tip when both the free quota and the extra
	// balance are exhausted.
	ErrTipLimitReached = errors.New("daily tip limit reached and no extra balance")
	// ErrInsufficientExtraBalance rejects an extra-balance spend that would go negative.
	ErrInsufficientExtraBalance = errors.New("insufficient extra balance")
	// ErrUserNotFound indicates the requested user has no ledger entry.
	ErrUserNotFound = errors.New("user not found")
	// ErrSettingsNotFound indicates the settings row is missing; this is a
	// configuration error, not a runtime condition to default around.
	ErrSettingsNotFound = errors.New("settings row not found")
	// ErrInvalidAddress rejects a malformed withdrawal address.
	ErrInvalidAddress = errors.New("invalid address")
)

// User is a participant's ledger entry. Created lazily on first interaction,
// never deleted. Balances are always non-negative.
type User struct {
	ID                int64
	SlackID           string
	DepositAddress    string // empty until the user requests a deposit address
	WithdrawalAddress string // empty until the user links one
	FreeBalance       decimal.Decimal
	ExtraBalance      decimal.Decimal
	TipsGivenToday    int
	LastResetDate     time.Time
	CreatedAt         time.Time
}

// HasWithdrawalAddress reports whether tips to this user go on-chain.
func (u *User) HasWithdrawalAddress() bool {
	return u.WithdrawalAddress != ""
}

// MessageRef identifies the chat message a tip reacts to.
type MessageRef struct {
	ChannelID string
	MessageTS string
}

// Tip is a durable record of one tip. At most one exists per
// (from, to, message) tuple; TxHash is attached only after on-chain
// confirmation.
type Tip struct {
	ID         string
	FromUserID int64
	ToUserID   int64
	Amount     decimal.Decimal
	ChannelID  string
	MessageTS  string
	TxHash     string // empty for internal tips and until confirmation
	CreatedAt  time.Time
}

// Settings is the single admin-managed configuration row.
type Settings struct {
	DailyTipLimit int
	TipAmount     decimal.Decimal
	AdminSlackIDs []string
}

// ToTokenUnits converts a ledger amount to the token's smallest integer unit.
func ToTokenUnits(d decimal.Decimal) *big.Int {
	return d.Shift(TokenDecimals).BigInt()
}

// FromTokenUnits converts a smallest-unit amount to the ledger's fixed-point scale.
func FromTokenUnits(units *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -TokenDecimals)
}

// DateOf truncates t to its calendar day in UTC. The lazy daily-quota reset
// compares these day values.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
