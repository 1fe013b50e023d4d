package ledgerstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/slacktip/tipbot/pkg/ledger"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

type pgStore struct {
	db bun.IDB
}

// NewStore creates a new postgres implementation of the ledger store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation
}

func (s *pgStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	db, ok := s.db.(*bun.DB)
	if !ok {
		// Already transaction-scoped; reuse the ambient transaction.
		return fn(ctx, s)
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &pgStore{db: tx})
	})
}

func (s *pgStore) GetOrCreateUser(ctx context.Context, slackID string) (*ledger.User, error) {
	dao := toUserDao(&ledger.User{
		SlackID:       slackID,
		FreeBalance:   decimal.Zero,
		ExtraBalance:  decimal.Zero,
		LastResetDate: ledger.DateOf(time.Now()),
	})

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (slack_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetUserBySlackID(ctx, slackID)
}

func (s *pgStore) GetUserBySlackID(ctx context.Context, slackID string) (*ledger.User, error) {
	dao := new(UserDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("slack_id = ?", slackID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toUser(dao), nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id int64) (*ledger.User, error) {
	dao := new(UserDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toUser(dao), nil
}

func (s *pgStore) SetDepositAddress(ctx context.Context, userID int64, address string) error {
	_, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("deposit_address = ?", address).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set deposit address: %w", err)
	}
	return nil
}

func (s *pgStore) SetWithdrawalAddress(ctx context.Context, userID int64, address string) error {
	_, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("withdrawal_address = ?", address).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set withdrawal address: %w", err)
	}
	return nil
}

func (s *pgStore) SetQuota(ctx context.Context, userID int64, tipsGivenToday int, lastResetDate time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("tips_given_today = ?", tipsGivenToday).
		Set("last_reset_date = ?", lastResetDate).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update quota: %w", err)
	}
	return nil
}

func (s *pgStore) CreditFreeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("free_balance = free_balance + ?", amount).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to credit free balance: %w", err)
	}
	return nil
}

func (s *pgStore) DebitFreeBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	res, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("free_balance = free_balance - ?", amount).
		Where("id = ? AND free_balance >= ?", userID, amount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to debit free balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit free balance: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("free balance debit of %s for user %d matched no row", amount, userID)
	}
	return nil
}

func (s *pgStore) CreditExtraBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	_, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("extra_balance = extra_balance + ?", amount).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to credit extra balance: %w", err)
	}
	return nil
}

func (s *pgStore) DebitExtraBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	res, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set("extra_balance = extra_balance - ?", amount).
		Where("id = ? AND extra_balance >= ?", userID, amount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to debit extra balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit extra balance: %w", err)
	}
	if affected == 0 {
		return ledger.ErrInsufficientExtraBalance
	}
	return nil
}

func (s *pgStore) ListUsersWithFreeBalance(ctx context.Context) ([]*ledger.User, error) {
	var daos []UserDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("free_balance > 0").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with free balance: %w", err)
	}
	users := make([]*ledger.User, len(daos))
	for i := range daos {
		users[i] = toUser(&daos[i])
	}
	return users, nil
}

func (s *pgStore) CreateTip(ctx context.Context, tip *ledger.Tip) error {
	dao := toTipDao(tip)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateTip
		}
		return fmt.Errorf("failed to create tip: %w", err)
	}
	return nil
}

func (s *pgStore) SetTipTxHash(ctx context.Context, tipID, txHash string) error {
	_, err := s.db.NewUpdate().
		Model((*TipDao)(nil)).
		Set("tx_hash = ?", txHash).
		Where("id = ?", tipID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set tip tx hash: %w", err)
	}
	return nil
}

func (s *pgStore) ListTipsByUser(ctx context.Context, userID int64, limit int) ([]*ledger.Tip, error) {
	var daos []TipDao
	query := s.db.NewSelect().
		Model(&daos).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list tips: %w", err)
	}
	tips := make([]*ledger.Tip, len(daos))
	for i := range daos {
		tips[i] = toTip(&daos[i])
	}
	return tips, nil
}

func (s *pgStore) ListRecentTips(ctx context.Context, limit int) ([]*ledger.Tip, error) {
	var daos []TipDao
	query := s.db.NewSelect().
		Model(&daos).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list recent tips: %w", err)
	}
	tips := make([]*ledger.Tip, len(daos))
	for i := range daos {
		tips[i] = toTip(&daos[i])
	}
	return tips, nil
}

func (s *pgStore) GetSettings(ctx context.Context) (*ledger.Settings, error) {
	dao := new(SettingsDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = 1").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	admins, err := s.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}

	return &ledger.Settings{
		DailyTipLimit: dao.DailyTipLimit,
		TipAmount:     dao.TipAmount,
		AdminSlackIDs: admins,
	}, nil
}

func (s *pgStore) UpdateSettings(ctx context.Context, dailyTipLimit int, tipAmount decimal.Decimal) error {
	_, err := s.db.NewUpdate().
		Model((*SettingsDao)(nil)).
		Set("daily_tip_limit = ?", dailyTipLimit).
		Set("tip_amount = ?", tipAmount).
		Set("updated_at = NOW()").
		Where("id = 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

func (s *pgStore) IsAdmin(ctx context.Context, slackID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*AdminDao)(nil)).
		Where("slack_id = ?", slackID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return exists, nil
}

func (s *pgStore) AddAdmin(ctx context.Context, slackID string) error {
	dao := &AdminDao{SlackID: slackID}
	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (slack_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}
	return nil
}

func (s *pgStore) ListAdmins(ctx context.Context) ([]string, error) {
	var daos []AdminDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("slack_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	admins := make([]string, len(daos))
	for i := range daos {
		admins[i] = daos[i].SlackID
	}
	return admins, nil
}
