// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package csql

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // load database driver "pgx"
	_ "github.com/lib/pq"              // load database driver for postgres
	_ "modernc.org/sqlite"             // load database driver "sqlite"

	"github.com/relabs-tech/restmodel/core/logger"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// DB encapsulates a standard sql.DB with a schema and the driver it was opened with
type DB struct {
	*sql.DB
	Schema string
	Driver string
}

// ErrNoRows is returned by Scan when QueryRow doesn't return a
// row. In such a case, QueryRow returns a placeholder *Row value that
// defers this error until a Scan.
var ErrNoRows = sql.ErrNoRows

// Open opens a database with one of the supported drivers. For the postgres
// drivers the schema gets created if it does not exist yet, sqlite has no schemas
// and ignores it.
func Open(driver, dataSourceName, schema string) (*DB, error) {
	switch driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", driver)
	}
	logger.Default().Infoln("connecting to", driver, "database")
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		// an in-memory database exists once per connection
		db.SetMaxOpenConns(1)
		return &DB{DB: db, Driver: driver}, nil
	}
	if len(schema) == 0 {
		schema = "public"
	} else {
		logger.Default().Infoln("selected database schema:", schema)
		_, err = db.Exec(`CREATE schema IF NOT EXISTS ` + schema + `;`)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return &DB{DB: db, Schema: schema, Driver: driver}, nil
}

// OpenWithSchema opens a postgres database with a schema and panics on error.
func OpenWithSchema(dataSourceName, schema string) *DB {
	db, err := Open(DriverPostgres, dataSourceName, schema)
	if err != nil {
		panic(err)
	}
	return db
}

// IsPostgres returns true if the database is a postgres database, regardless of the driver
func (db *DB) IsPostgres() bool {
	return db.Driver == DriverPostgres || db.Driver == DriverPgx
}

// Table returns the qualified name of a table
func (db *DB) Table(name string) string {
	if !db.IsPostgres() {
		return `"` + name + `"`
	}
	return db.Schema + `."` + name + `"`
}

// Placeholder returns the parameter placeholder for the n-th parameter, starting with 1
func (db *DB) Placeholder(n int) string {
	if db.IsPostgres() {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns a comma separated list of placeholders for the parameters from..to
func (db *DB) Placeholders(from, to int) string {
	var p []string
	for i := from; i <= to; i++ {
		p = append(p, db.Placeholder(i))
	}
	return strings.Join(p, ",")
}

// JSONType returns the column type used to store JSON documents
func (db *DB) JSONType() string {
	if db.IsPostgres() {
		return "JSON"
	}
	return "TEXT"
}

// ClearSchema clears all the data contained in the database's schema
// Technically this is done by dropping the schema and then recreating it
func (db *DB) ClearSchema() {
	if !db.IsPostgres() {
		return
	}
	if db.Schema == "public" {
		panic("refuse to drop public schema")
	}
	_, err := db.Exec(`DROP SCHEMA ` + db.Schema + ` CASCADE;
	CREATE schema IF NOT EXISTS ` + db.Schema + `;`)
	if err != nil {
		logger.Default().WithError(err).Errorln("clear schema error:", db.Schema)
	}
}
