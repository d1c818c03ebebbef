// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package sqlstore persists the entities of a collection in a SQL database

Every collection gets its own table with the unique key as primary key and the
attributes as JSON document. Postgres (drivers "postgres" and "pgx") and sqlite are supported.
*/
package sqlstore

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/restmodel/core/backend"
	"github.com/relabs-tech/restmodel/core/csql"
	"github.com/relabs-tech/restmodel/core/logger"
)

var invalidTableCharacters = regexp.MustCompile(`[^a-z0-9_]+`)

// Store is a persistence adapter for one collection. It implements
// backend.Creator, backend.Reader, backend.Updater and backend.Destroyer.
type Store struct {
	db    *csql.DB
	table string
}

// New creates the table if it does not exist yet and returns a store for it
func New(db *csql.DB, table string) (*Store, error) {
	s := &Store{db: db, table: db.Table(table)}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + s.table + `
(key varchar NOT NULL,
value ` + db.JSONType() + ` NOT NULL,
timestamp BIGINT NOT NULL,
PRIMARY KEY(key)
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create table %s: %w", s.table, err)
	}
	return s, nil
}

// TableName returns the table name for a collection name, like "entity_post"
func TableName(collection string) string {
	return "entity_" + invalidTableCharacters.ReplaceAllString(collection, "_")
}

// Adapter returns an AdapterFunc which binds one table per resource, see
// backend.Collection.Resource. It panics if a table cannot be created, like every
// other configuration error.
func Adapter(db *csql.DB) backend.AdapterFunc {
	var mutex sync.Mutex
	stores := map[string]*Store{}
	return func(c *backend.Collection) backend.Adapter {
		mutex.Lock()
		defer mutex.Unlock()
		resource := c.Resource()
		if s, ok := stores[resource]; ok {
			return s
		}
		s, err := New(db, TableName(resource))
		if err != nil {
			panic(fmt.Errorf("%w: %s", backend.ErrConfiguration, err))
		}
		logger.Default().Debugln("sql store for", resource, "in", s.table)
		stores[resource] = s
		return s
	}
}

// Create implements backend.Creator. Entities without unique key get a uuid.
func (s *Store) Create(ctx context.Context, e *backend.Entity) error {
	if e.IsNew() {
		e.Set(e.KeyField(), uuid.NewString())
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+`(key,value,timestamp) VALUES(`+s.db.Placeholders(1, 3)+`);`,
		backend.KeyString(e.ID()), string(body), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("cannot create key '%s': %w", backend.KeyString(e.ID()), err)
	}
	return nil
}

// Update implements backend.Updater. Unknown keys are inserted, known keys keep
// their position.
func (s *Store) Update(ctx context.Context, e *backend.Entity) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+`(key,value,timestamp) VALUES(`+s.db.Placeholders(1, 3)+`)
ON CONFLICT (key) DO UPDATE SET value=excluded.value;`,
		backend.KeyString(e.ID()), string(body), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("cannot write key '%s': %w", backend.KeyString(e.ID()), err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("could not write key %s", backend.KeyString(e.ID()))
	}
	return nil
}

// Destroy implements backend.Destroyer
func (s *Store) Destroy(ctx context.Context, e *backend.Entity) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+s.table+` WHERE key=`+s.db.Placeholder(1)+`;`,
		backend.KeyString(e.ID()))
	return err
}

// Read implements backend.Reader. Records are returned in creation order.
func (s *Store) Read(ctx context.Context) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM `+s.table+` ORDER BY timestamp, key;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []map[string]interface{}
	for rows.Next() {
		var (
			key      string
			rawValue []byte
		)
		if err = rows.Scan(&key, &rawValue); err != nil {
			return nil, err
		}
		record := map[string]interface{}{}
		if err = json.Unmarshal(rawValue, &record); err != nil {
			return nil, fmt.Errorf("cannot read key '%s': %w", key, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Len returns the number of stored records
func (s *Store) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+s.table+`;`).Scan(&count)
	return count, err
}
