package ledgerstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/slacktip/tipbot/pkg/ledger"
	"github.com/slacktip/tipbot/pkg/ledgerstore"
	"github.com/slacktip/tipbot/pkg/migrations/tipbotdb"
	"github.com/slacktip/tipbot/pkg/pgutil"
)

func setupStore(t *testing.T) (ledgerstore.Store, *bun.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	migrator := migrate.NewMigrator(db, tipbotdb.Migrations)
	require.NoError(t, migrator.Init(context.Background()))
	_, err := migrator.Migrate(context.Background())
	require.NoError(t, err)

	return ledgerstore.NewStore(db), db
}

func TestGetOrCreateUser(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	usr, err := store.GetOrCreateUser(ctx, "U001")
	require.NoError(t, err)
	require.Equal(t, "U001", usr.SlackID)
	require.True(t, usr.FreeBalance.IsZero())
	require.True(t, usr.ExtraBalance.IsZero())
	require.Zero(t, usr.TipsGivenToday)

	// Second call returns the same row, not a new one.
	again, err := store.GetOrCreateUser(ctx, "U001")
	require.NoError(t, err)
	require.Equal(t, usr.ID, again.ID)

	_, err = store.GetUserBySlackID(ctx, "U999")
	require.ErrorIs(t, err, ledger.ErrUserNotFound)
}

func TestBalanceMutations(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	usr, err := store.GetOrCreateUser(ctx, "U002")
	require.NoError(t, err)

	require.NoError(t, store.CreditFreeBalance(ctx, usr.ID, decimal.RequireFromString("0.05")))
	require.NoError(t, store.CreditExtraBalance(ctx, usr.ID, decimal.RequireFromString("1.20")))

	usr, err = store.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	require.True(t, usr.FreeBalance.Equal(decimal.RequireFromString("0.05")))
	require.True(t, usr.ExtraBalance.Equal(decimal.RequireFromString("1.20")))

	// Guarded debit succeeds within balance and fails past it.
	require.NoError(t, store.DebitExtraBalance(ctx, usr.ID, decimal.RequireFromString("1.20")))
	err = store.DebitExtraBalance(ctx, usr.ID, decimal.RequireFromString("0.01"))
	require.ErrorIs(t, err, ledger.ErrInsufficientExtraBalance)

	require.NoError(t, store.DebitFreeBalance(ctx, usr.ID, decimal.RequireFromString("0.05")))
	require.Error(t, store.DebitFreeBalance(ctx, usr.ID, decimal.RequireFromString("0.01")))

	usr, err = store.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	require.True(t, usr.FreeBalance.IsZero())
	require.True(t, usr.ExtraBalance.IsZero())
}

func TestCreateTip_DuplicateRejected(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	from, err := store.GetOrCreateUser(ctx, "U003")
	require.NoError(t, err)
	to, err := store.GetOrCreateUser(ctx, "U004")
	require.NoError(t, err)

	tip := &ledger.Tip{
		ID:         uuid.NewString(),
		FromUserID: from.ID,
		ToUserID:   to.ID,
		Amount:     decimal.RequireFromString("0.01"),
		ChannelID:  "C123",
		MessageTS:  "1700000000.000100",
	}
	require.NoError(t, store.CreateTip(ctx, tip))

	dup := *tip
	dup.ID = uuid.NewString()
	require.ErrorIs(t, store.CreateTip(ctx, &dup), ledger.ErrDuplicateTip)

	// A different message from the same pair is fine.
	other := *tip
	other.ID = uuid.NewString()
	other.MessageTS = "1700000000.000200"
	require.NoError(t, store.CreateTip(ctx, &other))

	// And the reverse direction on the same message is fine too.
	reverse := *tip
	reverse.ID = uuid.NewString()
	reverse.FromUserID = to.ID
	reverse.ToUserID = from.ID
	require.NoError(t, store.CreateTip(ctx, &reverse))
}

func TestSetTipTxHash(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	from, err := store.GetOrCreateUser(ctx, "U005")
	require.NoError(t, err)
	to, err := store.GetOrCreateUser(ctx, "U006")
	require.NoError(t, err)

	tip := &ledger.Tip{
		ID:         uuid.NewString(),
		FromUserID: from.ID,
		ToUserID:   to.ID,
		Amount:     decimal.RequireFromString("0.01"),
		ChannelID:  "C123",
		MessageTS:  "1700000001.000100",
	}
	require.NoError(t, store.CreateTip(ctx, tip))
	require.NoError(t, store.SetTipTxHash(ctx, tip.ID, "0xabc123"))

	tips, err := store.ListTipsByUser(ctx, from.ID, 10)
	require.NoError(t, err)
	require.Len(t, tips, 1)
	require.Equal(t, "0xabc123", tips[0].TxHash)

	recent, err := store.ListRecentTips(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, tip.ID, recent[0].ID)
}

func TestSettingsAndAdmins(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	// Migration seeds the defaults.
	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, settings.DailyTipLimit)
	require.True(t, settings.TipAmount.Equal(decimal.RequireFromString("0.01")))
	require.Empty(t, settings.AdminSlackIDs)

	require.NoError(t, store.UpdateSettings(ctx, 5, decimal.RequireFromString("0.02")))
	settings, err = store.GetSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, settings.DailyTipLimit)
	require.True(t, settings.TipAmount.Equal(decimal.RequireFromString("0.02")))

	ok, err := store.IsAdmin(ctx, "UADMIN")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.AddAdmin(ctx, "UADMIN"))
	require.NoError(t, store.AddAdmin(ctx, "UADMIN")) // idempotent

	ok, err = store.IsAdmin(ctx, "UADMIN")
	require.NoError(t, err)
	require.True(t, ok)

	admins, err := store.ListAdmins(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"UADMIN"}, admins)
}

func TestQuotaAndAddresses(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	usr, err := store.GetOrCreateUser(ctx, "U007")
	require.NoError(t, err)

	day := ledger.DateOf(time.Date(2025, 6, 1, 15, 4, 0, 0, time.UTC))
	require.NoError(t, store.SetQuota(ctx, usr.ID, 3, day))
	require.NoError(t, store.SetDepositAddress(ctx, usr.ID, "0x1111111111111111111111111111111111111111"))
	require.NoError(t, store.SetWithdrawalAddress(ctx, usr.ID, "0x2222222222222222222222222222222222222222"))

	usr, err = store.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	require.Equal(t, 3, usr.TipsGivenToday)
	require.True(t, day.Equal(ledger.DateOf(usr.LastResetDate)))
	require.Equal(t, "0x1111111111111111111111111111111111111111", usr.DepositAddress)
	require.Equal(t, "0x2222222222222222222222222222222222222222", usr.WithdrawalAddress)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	usr, err := store.GetOrCreateUser(ctx, "U008")
	require.NoError(t, err)
	require.NoError(t, store.CreditExtraBalance(ctx, usr.ID, decimal.RequireFromString("1")))

	err = store.RunInTx(ctx, func(ctx context.Context, tx ledgerstore.Store) error {
		if err := tx.DebitExtraBalance(ctx, usr.ID, decimal.RequireFromString("1")); err != nil {
			return err
		}
		return tx.DebitExtraBalance(ctx, usr.ID, decimal.RequireFromString("1"))
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientExtraBalance)

	// The first debit must have been rolled back with the second.
	usr, err = store.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	require.True(t, usr.ExtraBalance.Equal(decimal.RequireFromString("1")))
}

func TestListUsersWithFreeBalance(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	a, err := store.GetOrCreateUser(ctx, "U009")
	require.NoError(t, err)
	_, err = store.GetOrCreateUser(ctx, "U010")
	require.NoError(t, err)

	require.NoError(t, store.CreditFreeBalance(ctx, a.ID, decimal.RequireFromString("0.03")))

	users, err := store.ListUsersWithFreeBalance(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, a.ID, users[0].ID)
}
