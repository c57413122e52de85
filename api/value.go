package api

// Value is the tagged union of everything a DatasetBuilder can hold.
//
// The source this backend's design is modeled on dispatches per-value-kind
// through runtime type assertions and decorator-based method selection
// (spec.md §9, "Dynamic dispatch in the source"). Here it is re-architected
// as a closed interface: the unexported valueKind method means every
// concrete Value implementation lives in this file. Callers type-switch
// over the pointer variants (*ScalarValue, *ArrayValue, ...) and reject
// anything else in a default branch; Kind() reports the variant tag.
type Value interface {
	valueKind() ValueKind
}

// ValueKind enumerates the Value variants.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindArray
	KindCompound
	KindReference
	KindIterator
)

// Kind returns v's variant tag.
func Kind(v Value) ValueKind { return v.valueKind() }

// ScalarValue is a single value of a declared DType.
type ScalarValue struct {
	DType DType
	V     any
}

func (ScalarValue) valueKind() ValueKind { return KindScalar }

// ArrayValue is an in-memory N-d array, row-major, with an explicit shape.
type ArrayValue struct {
	DType DType
	Shape []int
	// Data is a flat row-major slice of the Go type corresponding to DType
	// (e.g. []int32, []float64, []string), or []any for mixed/object data.
	Data any
	// ChunkShape is an optional per-dataset chunking override; zero value
	// means the backend picks a default.
	ChunkShape []int
	// MaxShape supports unlimited dimensions: a -1 entry means that
	// dimension is unlimited (spec.md §4.4).
	MaxShape []int64
	Compressor string // opaque codec identifier, passed through to Store
}

func (ArrayValue) valueKind() ValueKind { return KindArray }

// CompoundValue holds one or more structured records.
type CompoundValue struct {
	DType   CompoundDType
	Shape   []int
	Records []map[string]any // field name -> value, one map per record
}

func (CompoundValue) valueKind() ValueKind { return KindCompound }

// ReferenceValue holds one or more object references as a dataset's
// content (as opposed to a reference appearing inside an attribute, which
// the DAC encodes as a bare reference record — see internal/dtype).
type ReferenceValue struct {
	Shape []int
	Refs  []*ObjectRef // row-major, len == product(Shape)
}

func (ReferenceValue) valueKind() ValueKind { return KindReference }

// IteratorValue wraps a *zio.DatasetIterator (a zio.ChunkIterator plus its
// dtype; defined in internal/zio to avoid an import cycle with api) for
// iterative/parallel chunked writes. The field is declared as `any` here
// and type-asserted to *zio.DatasetIterator at the write call site,
// keeping api free of zio's dependencies (stores, worker
// pools) per the "explicit TypeMap handle, no hidden coupling" design note.
type IteratorValue struct {
	Iterator any
}

func (IteratorValue) valueKind() ValueKind { return KindIterator }

// ObjectRef identifies a builder node anywhere in any file — the in-memory
// counterpart of a link/reference record (spec.md §3). Source is "." for
// same-file; Path is absolute within that file.
type ObjectRef struct {
	Source         string
	Path           string
	ObjectID       string // nullable (empty) if the target is untyped
	SourceObjectID string // root object id of the Source file

	// Proxy is attached by internal/zio's read path and holds a
	// *linkref.Proxy (declared as `any` here to avoid api importing
	// linkref, the same escape hatch IteratorValue.Iterator uses for
	// *zio.DatasetIterator). Refs built directly by callers for a write
	// leave this nil; use internal/linkref.ProxyOf to retrieve it.
	Proxy any
}
