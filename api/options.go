package api

// Mode selects how Open behaves (spec.md §4.1, §6).
type Mode int

const (
	ModeCreate Mode = iota
	ModeAppend
	ModeRead
	ModeReadWriteExisting
)

// ObjectCodec names a physical encoding for object-dtype slots, as
// implemented by internal/dtype.EncodeObject/DecodeObject. The write path
// does not consult it (see Options.ObjectCodec).
type ObjectCodec int

const (
	// ObjectCodecNative is the default: a compact, self-contained
	// encoding/gob-based record — the idiomatic Go analogue of "a binary
	// pickling codec producing a self-contained record" (spec.md §4.2),
	// since Go has no pickle equivalent.
	ObjectCodecNative ObjectCodec = iota
	// ObjectCodecJSON is the alternate, human-inspectable encoding.
	ObjectCodecJSON
)

// Options are the configuration knobs recognized by Open/Write (spec.md §6).
type Options struct {
	Mode Mode

	// Synchronizer, when true, takes an advisory flock from a non-read
	// Open until Close (internal/zstore.flockSynchronizer).
	Synchronizer bool

	// ObjectCodec is not read by internal/zio: reference-typed datasets
	// are always stored as JSON reference records, whichever codec is
	// selected here.
	ObjectCodec ObjectCodec

	// StorageOptions is forwarded opaquely to remote stores.
	StorageOptions map[string]any

	// CacheSpec writes the schema cache on write/append. Default true.
	CacheSpec bool

	// ConsolidateMetadata refreshes the consolidated index after write.
	// Default true.
	ConsolidateMetadata bool

	// ParallelWorkers is the worker count for iterative chunked writes.
	// Default 1 (sequential).
	ParallelWorkers int

	// TypeMap is the explicit, caller-owned registry of semantic type
	// constructors (spec.md §9, "Global type-map coupling" design note:
	// re-architected as an explicit handle rather than a package-level
	// global).
	TypeMap TypeMap

	// SourceName is the synthetic stable source identifier a caller must
	// supply for stores that have no filesystem path (spec.md §4.1).
	SourceName string

	// ProgressCallback, if set, receives progress updates during
	// iterative/parallel chunked writes. Optional (spec.md §4.4).
	ProgressCallback func(ProgressEvent)
}

// DefaultOptions returns the documented defaults (spec.md §6).
func DefaultOptions() Options {
	return Options{
		Mode:                ModeCreate,
		CacheSpec:           true,
		ConsolidateMetadata: true,
		ParallelWorkers:     1,
	}
}

// ProgressEvent is delivered to Options.ProgressCallback during a chunked
// write.
type ProgressEvent struct {
	DatasetPath    string
	ChunksWritten  int
	ChunksTotal    int // 0 if unknown (unbounded iterator)
}

// Namespace is a cached schema namespace, as loaded from or written to the
// specifications subtree (spec.md §3, §4.4).
type Namespace struct {
	Name    string
	Version string
	Source  string // filename the namespace text came from
	JSON    string // raw JSON text of the namespace document
}

// TypeMap is the explicit registry associating semantic type names with
// constructors on read, and tracking which namespaces have been loaded for
// the write-time schema cache (spec.md §4.4, §9).
type TypeMap interface {
	// LoadedNamespaces returns every namespace the caller has loaded,
	// to be written into the schema cache on write/append.
	LoadedNamespaces() []Namespace
	// Lookup resolves a (namespace, neurodata_type) pair read from a
	// typed group/dataset's attributes. ok is false if the type map has
	// no constructor for it (present/absent result, per spec.md §9 —
	// "Exception-for-control-flow" design note).
	Lookup(namespace, neurodataType string) (ok bool)
}
