// Package zstore is the Store Abstraction (SA) component (spec.md §4.1):
// a uniform view over flat-directory, nested-directory, temp, and remote
// chunked-array stores, built on github.com/go-git/go-billy/v5 the way
// the teacher uses billy.Filesystem to back an NFS export
// (internal/nfsmount/server.go) — here it backs this package's own
// directory/nested/temp/remote Store kinds instead of an NFS handler.
package zstore

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/zarrio/zarrio/api"
)

// Kind identifies which billy.Filesystem backing a Store uses.
type Kind int

const (
	Directory Kind = iota
	NestedDirectory
	Temp
	Remote
)

// GroupMarker is the .zgroup-equivalent content (spec.md §6).
type GroupMarker struct {
	ZarrFormat int `json:"zarr_format"`
}

// ArrayMarker is the .zarray-equivalent content: shape/chunks/dtype/
// compressor metadata (spec.md §6).
type ArrayMarker struct {
	ZarrFormat int    `json:"zarr_format"`
	Shape      []int64 `json:"shape"`
	Chunks     []int  `json:"chunks"`
	DType      string `json:"dtype"`
	Compressor string `json:"compressor,omitempty"`
	FillValue  any    `json:"fill_value"`
}

// RemoteOpener constructs the billy.Filesystem for a Remote store, given
// the target and the caller's opaque storage options (spec.md §4.1 — "a
// store kind the implementation does not accept" fails with Unsupported;
// a nil RemoteOpener is exactly that case for Remote stores).
type RemoteOpener func(target string, storageOptions map[string]any) (billy.Filesystem, error)

// Store is SA's uniform handle over a chunked-array store.
type Store struct {
	fs       billy.Filesystem
	kind     Kind
	source   string // SourcePath() — stable link-origin identifier
	mode     api.Mode
	sync     *flockSynchronizer
	sqlIndex *sqliteIndex

	mu       sync.RWMutex
	metadata map[string]json.RawMessage // path -> raw .zgroup/.zarray/.zattrs blob
}

// Open opens target in the given mode (spec.md §4.1, §6).
//
// target is a filesystem path for Directory/NestedDirectory stores, or
// (for Temp/Remote) an opaque identifier combined with Options.SourceName.
func Open(target string, kind Kind, opts api.Options) (*Store, error) {
	var fs billy.Filesystem
	var source string

	switch kind {
	case Directory, NestedDirectory:
		fs = osfs.New(target)
		source = target
	case Temp:
		fs = memfs.New()
		source = opts.SourceName
		if source == "" {
			return nil, api.NewPathError("open", target, api.ErrUnsupported)
		}
	case Remote:
		return nil, api.NewPathError("open", target, api.ErrUnsupported)
	default:
		return nil, api.NewPathError("open", target, api.ErrUnsupported)
	}

	return openCommon(fs, kind, source, target, opts)
}

// OpenRemote opens a Remote store via a caller-supplied opener (this
// package has no FSSpec/wire-protocol implementation of its own — that
// implementation is an external collaborator per spec.md §1).
func OpenRemote(target string, opener RemoteOpener, opts api.Options) (*Store, error) {
	if opener == nil {
		return nil, api.NewPathError("open", target, api.ErrUnsupported)
	}
	fs, err := opener(target, opts.StorageOptions)
	if err != nil {
		return nil, fmt.Errorf("zstore: remote open: %w", err)
	}
	source := opts.SourceName
	if source == "" {
		source = target
	}
	return openCommon(fs, Remote, source, target, opts)
}

func openCommon(fs billy.Filesystem, kind Kind, source, target string, opts api.Options) (*Store, error) {
	exists := dirNonEmpty(fs)

	switch opts.Mode {
	case api.ModeCreate:
		if exists {
			return nil, api.NewPathError("open", target, api.ErrAlreadyExists)
		}
	case api.ModeRead, api.ModeReadWriteExisting, api.ModeAppend:
		if !exists {
			return nil, api.NewPathError("open", target, api.ErrNotFound)
		}
	}

	s := &Store{
		fs:       fs,
		kind:     kind,
		source:   source,
		mode:     opts.Mode,
		metadata: map[string]json.RawMessage{},
	}

	if opts.Synchronizer && (kind == Directory || kind == NestedDirectory) {
		s.sync = newFlockSynchronizer(target)
		if opts.Mode != api.ModeRead {
			if err := s.sync.Lock(); err != nil {
				return nil, err
			}
		}
	}

	if idx, err := newSQLiteIndex(); err == nil {
		s.sqlIndex = idx
	}

	if existing, ok := s.ReadConsolidated(); ok {
		s.mu.Lock()
		for p, raw := range existing.Metadata {
			s.metadata[p] = raw
		}
		s.mu.Unlock()
	}

	return s, nil
}

func dirNonEmpty(fs billy.Filesystem) bool {
	entries, err := fs.ReadDir("/")
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// SourcePath returns the stable identifier used as the origin for
// computing relative link sources (spec.md §4.1).
func (s *Store) SourcePath() string { return s.source }

// Kind reports which backing this Store uses.
func (s *Store) Kind() Kind { return s.kind }

// Exists reports whether path exists within the store.
func (s *Store) Exists(p string) bool {
	_, err := s.fs.Stat(normalizePath(p))
	return err == nil
}

// Close releases handles. Per spec.md §4.1, a subsequent Open at the same
// underlying location must still succeed even if this store's kind
// cannot be reused after close (true of all billy backings used here, so
// Close is just lock release + sqlite mirror teardown).
func (s *Store) Close() error {
	var err error
	if s.sync != nil {
		err = s.sync.Unlock()
	}
	if s.sqlIndex != nil {
		if cerr := s.sqlIndex.close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// FS exposes the underlying billy.Filesystem for zio/dtype/linkref, which
// need raw byte/JSON I/O that SA deliberately does not interpret
// (spec.md §4.1 design note: "SA does not interpret attribute contents").
func (s *Store) FS() billy.Filesystem { return s.fs }

// ChunkPath computes the on-disk key for a chunk at the given coordinates,
// sharding into subdirectories for NestedDirectory stores to avoid huge
// flat directories (spec.md §6 "chunk files under that dataset's path").
func (s *Store) ChunkPath(datasetPath string, coords []int) string {
	if len(coords) == 0 {
		// A 0-d (scalar) array has exactly one chunk, keyed "0".
		return path.Join(datasetPath, "0")
	}
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%d", c)
	}
	if s.kind == NestedDirectory {
		return path.Join(datasetPath, path.Join(parts...))
	}
	return path.Join(datasetPath, strings.Join(parts, "."))
}

func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}
