package bunstore

import (
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open opens a bun database for driver. The connection is not checked.
func Open(driver, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		wrapped := goerrors.New("open "+driver+" database", goerrors.CategoryExternal)
		wrapped.Source = err
		return nil, wrapped
	}

	switch driver {
	case DriverPostgres:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite:
		// SQLite serializes writers; a single connection keeps in-memory
		// databases shared across calls.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	sqldb.Close()
	return nil, goerrors.New("unsupported database driver "+driver, goerrors.CategoryValidation)
}
