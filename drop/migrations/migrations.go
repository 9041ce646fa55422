package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/sinycat/merkledrop/db"
	"github.com/sinycat/merkledrop/db/types"
	"github.com/sinycat/merkledrop/log"
)

//go:embed drop0001.sql
var mig001 string

func RunMigrations(logger *log.Logger, database *sql.DB) error {
	migrations := []types.Migration{
		{
			ID:  "drop0001",
			SQL: mig001,
		},
	}

	return db.RunMigrationsDB(logger, database, migrations)
}
