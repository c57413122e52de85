package linkref

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ReverseIndex is the sidecar DB backing the zarr_refs virtual table: a
// path_ids table assigning a small integer ID to every referencing
// dataset path, and an object_refs table mapping each referenced
// object_id to a roaring bitmap of those IDs.
type ReverseIndex struct {
	id   string
	db   *sql.DB
	path string
	mod  *RefsModule
}

// NewReverseIndex creates a fresh sidecar DB and registers it with the
// global zarr_refs module under a unique ID.
func NewReverseIndex() (*ReverseIndex, error) {
	mod, err := RegisterRefsModule()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "zarrio-refs-*.db")
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

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS path_ids (id INTEGER PRIMARY KEY, path TEXT UNIQUE);
		CREATE TABLE IF NOT EXISTS object_refs (object_id TEXT PRIMARY KEY, bitmap BLOB);
	`); err != nil {
		_ = db.Close()
		_ = os.Remove(p)
		return nil, fmt.Errorf("linkref: create reverse-index tables: %w", err)
	}

	id := uuid.NewString()
	mod.RegisterDB(id, db)

	return &ReverseIndex{id: id, db: db, path: p, mod: mod}, nil
}

// ID is the string to use in "CREATE VIRTUAL TABLE x USING zarr_refs(id)".
func (r *ReverseIndex) ID() string { return r.id }

// Rebuild replaces the sidecar tables' contents with refsByObjectID, a map
// from object_id to every dataset path holding a reference record naming
// it. Called after any write that adds or removes references (mirroring
// Store.Consolidate's "re-run after mutation" contract).
func (r *ReverseIndex) Rebuild(refsByObjectID map[string][]string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM path_ids"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM object_refs"); err != nil {
		return err
	}

	pathID := map[string]uint32{}
	insertPath, err := tx.Prepare("INSERT INTO path_ids (path) VALUES (?)")
	if err != nil {
		return err
	}
	for _, paths := range refsByObjectID {
		for _, p := range paths {
			if _, ok := pathID[p]; ok {
				continue
			}
			res, err := insertPath.Exec(p)
			if err != nil {
				_ = insertPath.Close()
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				_ = insertPath.Close()
				return err
			}
			pathID[p] = uint32(id)
		}
	}
	_ = insertPath.Close()

	insertRef, err := tx.Prepare("INSERT INTO object_refs (object_id, bitmap) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = insertRef.Close() }()

	for objectID, paths := range refsByObjectID {
		rb := roaring.New()
		for _, p := range paths {
			rb.Add(pathID[p])
		}
		blob, err := rb.MarshalBinary()
		if err != nil {
			return fmt.Errorf("linkref: marshal bitmap for %q: %w", objectID, err)
		}
		if _, err := insertRef.Exec(objectID, blob); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close unregisters the sidecar DB and removes its temp file.
func (r *ReverseIndex) Close() error {
	r.mod.UnregisterDB(r.id)
	err := r.db.Close()
	_ = os.Remove(r.path)
	return err
}
