package tipbotdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/slacktip/tipbot/pkg/ledgerstore"
	mghelper "github.com/slacktip/tipbot/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating users table...")
		if err := mghelper.CreateSchema(ctx, db, &ledgerstore.UserDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &ledgerstore.UserDao{}, "deposit_address")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping users table...")
		return mghelper.DropTables(ctx, db, &ledgerstore.UserDao{})
	})
}
