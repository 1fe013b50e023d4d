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
		log.Println("creating tips table...")
		if err := mghelper.CreateSchema(ctx, db, &ledgerstore.TipDao{}); err != nil {
			return err
		}
		// One tip per sender, recipient, and message. The insert path relies
		// on this index to reject duplicates.
		if err := mghelper.CreateModelUniqueCompositeIndex(ctx, db, &ledgerstore.TipDao{},
			"from_user_id", "to_user_id", "channel_id", "message_ts"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &ledgerstore.TipDao{}, "from_user_id", "to_user_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping tips table...")
		return mghelper.DropTables(ctx, db, &ledgerstore.TipDao{})
	})
}
