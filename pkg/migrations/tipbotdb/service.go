// Package tipbotdb holds all the migrations for the tip bot database
package tipbotdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the tip bot database
var Migrations = migrate.NewMigrations()
