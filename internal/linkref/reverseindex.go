package linkref

// ReverseIndex answers "which datasets reference object X" (spec.md §4.3 —
// "the engine SHOULD support reverse lookup: given an object_id, find
// every reference record naming it, without a full-tree walk"). Adapted
// from the teacher's internal/refsvtab/refs_module.go, which exposes a
// roaring-bitmap-backed SQLite virtual table ("mache_refs") mapping a
// token to the set of file IDs that reference it; here the token is an
// object_id and the file IDs are dataset paths, registered as "zarr_refs".

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"modernc.org/sqlite/vtab"
)

var (
	vtabOnce      sync.Once
	vtabSingleton *RefsModule
	vtabInitErr   error
)

// RefsModule is the process-wide singleton registered with the SQLite
// driver — modernc.org/sqlite registers virtual table modules globally,
// not per *sql.DB, so only one instance may ever exist.
type RefsModule struct {
	mu  sync.RWMutex
	dbs map[string]*sql.DB
}

// RegisterRefsModule registers "zarr_refs" with the global SQLite driver.
// Safe to call more than once; only the first call registers.
func RegisterRefsModule() (*RefsModule, error) {
	vtabOnce.Do(func() {
		vtabSingleton = &RefsModule{dbs: make(map[string]*sql.DB)}
		if err := vtab.RegisterModule(nil, "zarr_refs", vtabSingleton); err != nil {
			vtabInitErr = fmt.Errorf("linkref: register zarr_refs module: %w", err)
			vtabSingleton = nil
		}
	})
	return vtabSingleton, vtabInitErr
}

// RegisterDB associates a sidecar *sql.DB (holding object_refs/path_ids
// tables, see ReverseIndex in index.go) with id, referenced from SQL as
// "CREATE VIRTUAL TABLE x USING zarr_refs(id)".
func (m *RefsModule) RegisterDB(id string, db *sql.DB) {
	m.mu.Lock()
	m.dbs[id] = db
	m.mu.Unlock()
}

// UnregisterDB drops a previously registered DB.
func (m *RefsModule) UnregisterDB(id string) {
	m.mu.Lock()
	delete(m.dbs, id)
	m.mu.Unlock()
}

func (m *RefsModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("zarr_refs: missing DB ID argument (expected USING zarr_refs(id))")
	}
	id := args[3]

	m.mu.RLock()
	db, ok := m.dbs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("zarr_refs: unknown DB ID %q", id)
	}

	if err := ctx.Declare("CREATE TABLE x(object_id TEXT, path TEXT)"); err != nil {
		return nil, err
	}
	return &refsTable{db: db}, nil
}

func (m *RefsModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

type refsTable struct {
	db *sql.DB
}

func (t *refsTable) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != 0 || c.Op != vtab.OpEQ {
			continue
		}
		c.ArgIndex = 0
		c.Omit = true
		info.IdxNum = 1
		info.EstimatedCost = 1
		info.EstimatedRows = 10
		return nil
	}
	info.IdxNum = 0
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *refsTable) Open() (vtab.Cursor, error) { return &refsCursor{table: t}, nil }
func (t *refsTable) Disconnect() error          { return nil }
func (t *refsTable) Destroy() error             { return nil }

type refsRow struct {
	objectID string
	path     string
}

type refsCursor struct {
	table *refsTable
	rows  []refsRow
	pos   int
}

func (c *refsCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows, c.pos = c.rows[:0], 0
	db := c.table.db
	if db == nil {
		return nil
	}
	if idxNum == 1 {
		objectID, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.loadObjectID(db, objectID)
	}
	return c.loadAll(db)
}

func (c *refsCursor) loadObjectID(db *sql.DB, objectID string) error {
	var blob []byte
	err := db.QueryRow("SELECT bitmap FROM object_refs WHERE object_id = ?", objectID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("linkref: query object_id %q: %w", objectID, err)
	}
	return c.expandBitmap(db, objectID, blob)
}

func (c *refsCursor) loadAll(db *sql.DB) error {
	type entry struct {
		objectID string
		blob     []byte
	}
	rows, err := db.Query("SELECT object_id, bitmap FROM object_refs")
	if err != nil {
		return fmt.Errorf("linkref: scan object_refs: %w", err)
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.objectID, &e.blob); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("linkref: scan object_refs rows: %w", err)
	}
	_ = rows.Close()

	for _, e := range entries {
		if err := c.expandBitmap(db, e.objectID, e.blob); err != nil {
			return err
		}
	}
	return nil
}

func (c *refsCursor) expandBitmap(db *sql.DB, objectID string, blob []byte) error {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(blob); err != nil {
		return fmt.Errorf("linkref: unmarshal bitmap for %q: %w", objectID, err)
	}

	it := rb.Iterator()
	var pathIDs []uint32
	for it.HasNext() {
		pathIDs = append(pathIDs, it.Next())
	}
	if len(pathIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(pathIDs))
	args := make([]any, len(pathIDs))
	for i, id := range pathIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := "SELECT path FROM path_ids WHERE id IN (" + joinPlaceholders(placeholders) + ")"
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("linkref: resolve path_ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			continue
		}
		c.rows = append(c.rows, refsRow{objectID: objectID, path: path})
	}
	return rows.Err()
}

func (c *refsCursor) Next() error { c.pos++; return nil }
func (c *refsCursor) Eof() bool   { return c.pos >= len(c.rows) }

func (c *refsCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	switch col {
	case 0:
		return c.rows[c.pos].objectID, nil
	case 1:
		return c.rows[c.pos].path, nil
	default:
		return nil, nil
	}
}

func (c *refsCursor) Rowid() (int64, error) { return int64(c.pos), nil }
func (c *refsCursor) Close() error          { c.rows = nil; return nil }

func joinPlaceholders(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
