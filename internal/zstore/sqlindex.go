package zstore

// sqliteIndex is the optional queryable mirror of the consolidated
// metadata index (spec.md §4.1's "consolidation" + §6's reserved
// consolidated-metadata key), adapted from the teacher's
// internal/graph/sqlite_graph.go / writable_graph.go nodes-table pattern:
// a small table of (path, kind, attrs_json) rows opened through
// modernc.org/sqlite, refreshed on every Consolidate call. Nothing else in
// the module queries it: internal/linkref keeps its own sidecar database,
// and zio.Read checks existence through Store.Exists. Its absence (e.g.
// sqlite open failure) is non-fatal.

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

type sqliteIndex struct {
	db   *sql.DB
	path string
}

func newSQLiteIndex() (*sqliteIndex, error) {
	tmp, err := os.CreateTemp("", "zarrio-index-*.db")
	if err != nil {
		return nil, err
	}
	p := tmp.Name()
	_ = tmp.Close()

	db, err := sql.Open("sqlite", p)
	if err != nil {
		_ = os.Remove(p)
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS nodes (
		path TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		attrs_json TEXT
	)`); err != nil {
		_ = db.Close()
		_ = os.Remove(p)
		return nil, fmt.Errorf("zstore: create nodes table: %w", err)
	}

	return &sqliteIndex{db: db, path: p}, nil
}

// refresh replaces the table contents with the given (path -> raw
// metadata) snapshot in a single transaction.
func (idx *sqliteIndex) refresh(entries map[string]json.RawMessage) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	if _, err := tx.Exec("DELETE FROM nodes"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO nodes (path, kind, attrs_json) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for path, raw := range entries {
		kind := "dataset"
		var probe struct {
			Children json.RawMessage `json:"children"`
		}
		if json.Unmarshal(raw, &probe) == nil && probe.Children != nil {
			kind = "group"
		}
		if _, err := stmt.Exec(path, kind, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Exists reports whether path is present in the mirror.
func (idx *sqliteIndex) exists(path string) bool {
	var count int
	err := idx.db.QueryRow("SELECT count(*) FROM nodes WHERE path = ?", path).Scan(&count)
	return err == nil && count > 0
}

func (idx *sqliteIndex) close() error {
	err := idx.db.Close()
	_ = os.Remove(idx.path)
	return err
}
