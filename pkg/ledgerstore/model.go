package ledgerstore

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/slacktip/tipbot/pkg/ledger"
)

// UserDao is a data access object that maps directly to the 'users' table in PostgreSQL.
type UserDao struct {
	bun.BaseModel     `bun:"table:users,alias:u"`
	ID                int64           `bun:"id,pk,autoincrement"`
	SlackID           string          `bun:"slack_id,unique,notnull,type:varchar(32)"`
	DepositAddress    *string         `bun:"deposit_address,type:varchar(42)"`
	WithdrawalAddress *string         `bun:"withdrawal_address,type:varchar(42)"`
	FreeBalance       decimal.Decimal `bun:"free_balance,notnull,type:numeric(20,6)"`
	ExtraBalance      decimal.Decimal `bun:"extra_balance,notnull,type:numeric(20,6)"`
	TipsGivenToday    int             `bun:"tips_given_today,notnull"`
	LastResetDate     time.Time       `bun:"last_reset_date,notnull,type:date"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,default:current_timestamp"`
}

// toUserDao converts a ledger.User to UserDao.
func toUserDao(usr *ledger.User) *UserDao {
	dao := &UserDao{
		ID:             usr.ID,
		SlackID:        usr.SlackID,
		FreeBalance:    usr.FreeBalance,
		ExtraBalance:   usr.ExtraBalance,
		TipsGivenToday: usr.TipsGivenToday,
		LastResetDate:  usr.LastResetDate,
		CreatedAt:      usr.CreatedAt,
	}

	if usr.DepositAddress != "" {
		dao.DepositAddress = &usr.DepositAddress
	}
	if usr.WithdrawalAddress != "" {
		dao.WithdrawalAddress = &usr.WithdrawalAddress
	}

	return dao
}

// toUser converts a UserDao to ledger.User.
func toUser(dao *UserDao) *ledger.User {
	usr := &ledger.User{
		ID:             dao.ID,
		SlackID:        dao.SlackID,
		FreeBalance:    dao.FreeBalance,
		ExtraBalance:   dao.ExtraBalance,
		TipsGivenToday: dao.TipsGivenToday,
		LastResetDate:  dao.LastResetDate,
		CreatedAt:      dao.CreatedAt,
	}

	if dao.DepositAddress != nil {
		usr.DepositAddress = *dao.DepositAddress
	}
	if dao.WithdrawalAddress != nil {
		usr.WithdrawalAddress = *dao.WithdrawalAddress
	}

	return usr
}

// TipDao is a data access object that maps directly to the 'tips' table in PostgreSQL.
// The (from_user_id, to_user_id, channel_id, message_ts) tuple carries a unique
// index, which is what enforces one tip per message pair.
type TipDao struct {
	bun.BaseModel `bun:"table:tips,alias:t"`
	ID            string          `bun:"id,pk,type:varchar(36)"`
	FromUserID    int64           `bun:"from_user_id,notnull"`
	ToUserID      int64           `bun:"to_user_id,notnull"`
	Amount        decimal.Decimal `bun:"amount,notnull,type:numeric(20,6)"`
	ChannelID     string          `bun:"channel_id,notnull,type:varchar(32)"`
	MessageTS     string          `bun:"message_ts,notnull,type:varchar(32)"`
	TxHash        *string         `bun:"tx_hash,type:varchar(66)"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,default:current_timestamp"`
}

func toTipDao(tip *ledger.Tip) *TipDao {
	dao := &TipDao{
		ID:         tip.ID,
		FromUserID: tip.FromUserID,
		ToUserID:   tip.ToUserID,
		Amount:     tip.Amount,
		ChannelID:  tip.ChannelID,
		MessageTS:  tip.MessageTS,
		CreatedAt:  tip.CreatedAt,
	}
	if tip.TxHash != "" {
		dao.TxHash = &tip.TxHash
	}
	return dao
}

func toTip(dao *TipDao) *ledger.Tip {
	tip := &ledger.Tip{
		ID:         dao.ID,
		FromUserID: dao.FromUserID,
		ToUserID:   dao.ToUserID,
		Amount:     dao.Amount,
		ChannelID:  dao.ChannelID,
		MessageTS:  dao.MessageTS,
		CreatedAt:  dao.CreatedAt,
	}
	if dao.TxHash != nil {
		tip.TxHash = *dao.TxHash
	}
	return tip
}

// SettingsDao maps to the single-row 'settings' table.
type SettingsDao struct {
	bun.BaseModel `bun:"table:settings,alias:s"`
	ID            int64           `bun:"id,pk"`
	DailyTipLimit int             `bun:"daily_tip_limit,notnull"`
	TipAmount     decimal.Decimal `bun:"tip_amount,notnull,type:numeric(20,6)"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero,default:current_timestamp"`
}

// AdminDao maps to the 'admins' table.
type AdminDao struct {
	bun.BaseModel `bun:"table:admins,alias:a"`
	SlackID       string    `bun:"slack_id,pk,type:varchar(32)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}
