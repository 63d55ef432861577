package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/udisondev/castcore/internal/db/migrations"
)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Dialect names accepted by RunMigrations.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// RunMigrations applies the embedded journal migrations for dialect to sqlDB.
func RunMigrations(ctx context.Context, sqlDB *sql.DB, dialect string) error {
	var dir string
	switch dialect {
	case DialectPostgres:
		dir = migrations.PostgresDir
	case DialectSQLite:
		dir = migrations.SQLiteDir
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
