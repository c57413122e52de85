package zstore

// Consolidation writes a single index of every group/array metadata blob
// under the store (spec.md §4.1), via the double-buffered arena in
// arena.go — adapted from the teacher's internal/graph/arena_writer.go
// ArenaFlusher, which flushes a serialized SQLite database into the
// inactive half of a double-buffered file and then flips the header.
// Here the "database" is the consolidated-metadata JSON blob instead.

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/zarrio/zarrio/internal/zlog"
)

const consolidatedArenaPath = ".zmetadata.arena"

// ConsolidatedIndex is the JSON document produced by Consolidate: every
// known path mapped to its .zgroup/.zarray marker plus .zattrs content.
type ConsolidatedIndex struct {
	ZarrConsolidatedFormat int                        `json:"zarr_consolidated_format"`
	Metadata               map[string]json.RawMessage `json:"metadata"`
}

// Consolidate walks the store's node index (populated incrementally by
// zio as it creates groups/datasets/attributes) and atomically publishes
// a consolidated index via the double-buffered arena. It must be re-run
// after any mutation (spec.md §4.1).
func (s *Store) Consolidate() error {
	entries := s.snapshotMetadata()

	idx := ConsolidatedIndex{ZarrConsolidatedFormat: 1, Metadata: map[string]json.RawMessage{}}
	for path, raw := range entries {
		idx.Metadata[path] = raw
	}

	payload, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("zstore: marshal consolidated index: %w", err)
	}

	if err := s.flushArena(payload); err != nil {
		return fmt.Errorf("zstore: consolidate: %w", err)
	}

	if s.sqlIndex != nil {
		if err := s.sqlIndex.refresh(entries); err != nil {
			// Non-fatal: readers fall back to per-node metadata (spec.md §4.4).
			zlog.Warnf("sqlite consolidated mirror refresh failed: %v", err)
		}
	}
	return nil
}

// snapshotMetadata returns a defensive copy of every (path -> raw JSON
// metadata) pair registered so far.
func (s *Store) snapshotMetadata() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// PutMetadata registers (or replaces) the raw .zgroup/.zarray/.zattrs blob
// for path, to be picked up by the next Consolidate call. zio calls this
// for every node it creates.
func (s *Store) PutMetadata(path string, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		s.metadata = map[string]json.RawMessage{}
	}
	s.metadata[path] = raw
}

// RemoveMetadata drops path's registered metadata so the next Consolidate
// no longer includes it.
func (s *Store) RemoveMetadata(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.metadata, path)
}

// ReadConsolidated reads the most recently flushed consolidated index, or
// (nil, false) if one has never been written. Readers fall back to
// per-node metadata when this returns false (spec.md §4.4).
func (s *Store) ReadConsolidated() (*ConsolidatedIndex, bool) {
	f, err := s.fs.Open(consolidatedArenaPath)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	header, err := readArenaHeader(f)
	if err != nil {
		return nil, false
	}
	info, err := s.fs.Stat(consolidatedArenaPath)
	if err != nil {
		return nil, false
	}
	bufferSize := (info.Size() - arenaHeaderSize) / 2
	if bufferSize <= 0 {
		return nil, false
	}
	if _, err := f.Seek(bufferOffset(header.ActiveBuffer, bufferSize), 0); err != nil {
		return nil, false
	}
	payload := make([]byte, header.Length)
	if _, err := readFull(f, payload); err != nil {
		return nil, false
	}
	var idx ConsolidatedIndex
	if err := json.Unmarshal(payload, &idx); err != nil {
		return nil, false
	}
	return &idx, true
}

// flushArena writes payload into the inactive half of the arena file and
// flips the header, growing the arena (recreating it at double size) if
// payload no longer fits — the teacher's ArenaFlusher instead errors when
// the DB outgrows the arena, but a JSON index has no natural fixed
// ceiling, so growth-on-demand is the faithful adaptation here.
func (s *Store) flushArena(payload []byte) error {
	info, statErr := s.fs.Stat(consolidatedArenaPath)

	var header *arenaHeader
	var bufferSize int64

	needInit := statErr != nil
	if !needInit {
		bufferSize = (info.Size() - arenaHeaderSize) / 2
		if bufferSize < int64(len(payload)) {
			needInit = true // grow
		}
	}

	if needInit {
		bufferSize = int64(len(payload))
		if bufferSize < 4096 {
			bufferSize = 4096
		}
		header = &arenaHeader{Magic: arenaMagic, Version: arenaVersion, ActiveBuffer: 1, Sequence: 0}
		if err := s.initArena(header, bufferSize); err != nil {
			return err
		}
	} else {
		f, err := s.fs.Open(consolidatedArenaPath)
		if err != nil {
			return err
		}
		header, err = readArenaHeader(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	inactive := uint8(1) - header.ActiveBuffer
	f, err := s.fs.OpenFile(consolidatedArenaPath, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open arena: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(bufferOffset(inactive, bufferSize), 0); err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("write inactive buffer: %w", err)
	}
	if remainder := bufferSize - int64(len(payload)); remainder > 0 {
		if _, err := f.Write(make([]byte, remainder)); err != nil {
			return fmt.Errorf("zero-pad inactive buffer: %w", err)
		}
	}

	header.ActiveBuffer = inactive
	header.Sequence++
	header.Length = uint64(len(payload))
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if _, err := f.Write(header.encode()); err != nil {
		return fmt.Errorf("write arena header: %w", err)
	}
	return nil
}

// initArena creates a fresh arena file sized for two bufferSize halves,
// with both halves zeroed, headed by header. flushArena passes a header
// marking buffer 1 active-but-empty, so the first real flush targets
// buffer 0.
func (s *Store) initArena(header *arenaHeader, bufferSize int64) error {
	f, err := s.fs.Create(consolidatedArenaPath)
	if err != nil {
		return fmt.Errorf("create arena: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(header.encode()); err != nil {
		return err
	}
	zeros := make([]byte, bufferSize*2)
	if _, err := f.Write(zeros); err != nil {
		return err
	}
	return nil
}

// sortedPaths is a small helper used by tests to assert deterministic
// iteration over a consolidated index.
func sortedPaths(idx *ConsolidatedIndex) []string {
	paths := make([]string, 0, len(idx.Metadata))
	for p := range idx.Metadata {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
