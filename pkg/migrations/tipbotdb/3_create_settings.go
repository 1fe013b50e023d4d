package tipbotdb

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/slacktip/tipbot/pkg/ledgerstore"
	mghelper "github.com/slacktip/tipbot/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating settings and admins tables...")
		if err := mghelper.CreateSchema(ctx, db, &ledgerstore.SettingsDao{}, &ledgerstore.AdminDao{}); err != nil {
			return err
		}
		// Seed the single settings row: 10 tips per day at 0.01 each.
		return mghelper.InsertEntry(ctx, db, &ledgerstore.SettingsDao{
			ID:            1,
			DailyTipLimit: 10,
			TipAmount:     decimal.RequireFromString("0.01"),
		})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping settings and admins tables...")
		return mghelper.DropTables(ctx, db, &ledgerstore.SettingsDao{}, &ledgerstore.AdminDao{})
	})
}
