// Package migrations compiles the schema .sql files into the binary
// and registers them with the database package. Importing it for side
// effects is all a binary needs:
//
//	_ "github.com/helioshome/helios-core/migrations"
package migrations

import (
	"embed"

	"github.com/helioshome/helios-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
