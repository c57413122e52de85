// Package zio is the Builder I/O Engine (BIE) component (spec.md §4.4):
// the read/write/append surface that serializes an api.GroupBuilder tree
// onto a zstore.Store, and the matching read path that reconstructs
// builder-shaped values (optionally proxying references lazily through
// internal/linkref).
package zio

import (
	"encoding/json"
	"fmt"
	"path"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/dtype"
	"github.com/zarrio/zarrio/internal/linkref"
	"github.com/zarrio/zarrio/internal/zlog"
	"github.com/zarrio/zarrio/internal/zstore"
)

// Chunk is one piece of a chunked write, named by its coordinates in the
// chunk grid (not element coordinates).
type Chunk struct {
	Coords []int
	Data   any
}

// ChunkIterator supplies chunk data to an iterative or parallel write
// (spec.md §4.4).
type ChunkIterator interface {
	Next() (Chunk, bool, error)
	Shape() []int64 // declared maxshape; -1 marks an unlimited dimension
	ChunkShape() []int
	ParallelSafe() bool
}

// Engine bundles a Store with the collaborators BIE needs: a
// linkref.Engine for resolving proxies encountered on read, and a
// reverse-reference sidecar index kept current on every write.
type Engine struct {
	Store    *zstore.Store
	Refs     *linkref.Engine
	Source   string // this store's own source name, for relative-source computation
	RefIndex *linkref.ReverseIndex

	collector *refCollector // set for the duration of a Write/Append call
}

// NewEngine constructs a BIE Engine bound to a store. It registers itself
// with refs as the Reader for both its own source name and "." (the
// same-file source links/references use), so proxies attached during
// Read resolve without the caller wiring anything else up (spec.md
// §4.3), and it opens a reverse-reference sidecar index that Write and
// Append keep current (spec.md §4.3's reverse-lookup requirement).
func NewEngine(store *zstore.Store, refs *linkref.Engine) *Engine {
	source := store.SourcePath()
	e := &Engine{Store: store, Refs: refs, Source: source}
	refs.RegisterSource(".", e)
	if source != "" {
		refs.RegisterSource(source, e)
	}
	if idx, err := linkref.NewReverseIndex(); err != nil {
		zlog.Warnf("reverse-reference index unavailable: %v", err)
	} else {
		e.RefIndex = idx
	}
	return e
}

// Close releases resources the Engine itself opened (currently the
// reverse-reference sidecar index); it does not close e.Store.
func (e *Engine) Close() error {
	if e.RefIndex != nil {
		return e.RefIndex.Close()
	}
	return nil
}

// Write serializes root and its entire subtree onto e.Store per spec.md
// §4.4 and §6 (reserved attribute names, link/reference record grammar).
func (e *Engine) Write(root *api.GroupBuilder, opts api.Options) error {
	e.collector = newRefCollector()
	defer func() { e.collector = nil }()

	if err := e.writeGroup("/", root, opts); err != nil {
		return err
	}
	if err := e.writeSchemaCache(opts); err != nil {
		return err
	}
	if e.RefIndex != nil {
		if err := e.RefIndex.Rebuild(e.collector.byObjectID); err != nil {
			return fmt.Errorf("zio: write: %w", err)
		}
	}
	if opts.ConsolidateMetadata {
		if err := e.Store.Consolidate(); err != nil {
			return fmt.Errorf("zio: write: %w", err)
		}
	}
	return nil
}

// groupExists and datasetExists check for a node's marker file rather
// than its bare path, since every node's parent directory already
// "exists" the moment its first child is written.
func groupExists(s *zstore.Store, p string) bool   { return s.Exists(path.Join(p, ".zgroup")) }
func datasetExists(s *zstore.Store, p string) bool { return s.Exists(path.Join(p, ".zarray")) }

func (e *Engine) writeGroup(p string, g *api.GroupBuilder, opts api.Options) error {
	if groupExists(e.Store, p) && opts.Mode == api.ModeCreate {
		return api.NewPathError("write", p, api.ErrAlreadyExists)
	}

	if err := e.writeGroupMarker(p); err != nil {
		return err
	}
	if err := e.writeAttrs(p, attrsOf(g.Attributes, g.ObjectID, g.Namespace, g.NeurodataType)); err != nil {
		return err
	}
	if err := e.writeLinks(p, g.Links); err != nil {
		return err
	}

	for pair := g.Groups.Oldest(); pair != nil; pair = pair.Next() {
		if err := e.writeGroup(path.Join(p, pair.Key), pair.Value, opts); err != nil {
			return err
		}
	}
	for pair := g.Datasets.Oldest(); pair != nil; pair = pair.Next() {
		if err := e.writeDataset(path.Join(p, pair.Key), pair.Value, opts); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeGroupMarker(p string) error {
	raw, err := json.Marshal(zstore.GroupMarker{ZarrFormat: 2})
	if err != nil {
		return err
	}
	if err := writeJSONFile(e.Store, path.Join(p, ".zgroup"), raw); err != nil {
		return err
	}
	e.Store.PutMetadata(p, raw)
	return nil
}

func (e *Engine) writeLinks(p string, links *orderedmap.OrderedMap[string, *api.LinkBuilder]) error {
	if links.Len() == 0 {
		return nil
	}
	records := make([]api.LinkRecord, 0, links.Len())
	for pair := links.Oldest(); pair != nil; pair = pair.Next() {
		rec := api.LinkFromBuilder(pair.Key, pair.Value.Target)
		records = append(records, rec)
		if rec.ObjectID != nil {
			e.collector.add(*rec.ObjectID, p)
		}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return e.mergeAttr(p, api.AttrLink, json.RawMessage(raw))
}

func (e *Engine) writeAttrs(p string, attrs *orderedmap.OrderedMap[string, any]) error {
	if attrs.Len() == 0 {
		return nil
	}
	flat := map[string]json.RawMessage{}
	if existing, err := e.readAttrsFile(p); err == nil {
		flat = existing
	}
	for pair := attrs.Oldest(); pair != nil; pair = pair.Next() {
		raw, err := encodeAttrValue(pair.Value)
		if err != nil {
			return api.NewAttrError("write", p, pair.Key, pair.Value, err)
		}
		flat[pair.Key] = raw
		if ref, ok := pair.Value.(*api.ObjectRef); ok && ref.ObjectID != "" {
			e.collector.add(ref.ObjectID, p)
		}
	}
	return writeAttrsFile(e.Store, p, flat)
}

// mergeAttr writes (or merges into) a single reserved attribute key
// without disturbing sibling attributes already on disk.
func (e *Engine) mergeAttr(p, key string, value json.RawMessage) error {
	flat := map[string]json.RawMessage{}
	if existing, err := e.readAttrsFile(p); err == nil {
		flat = existing
	}
	flat[key] = value
	return writeAttrsFile(e.Store, p, flat)
}

func (e *Engine) readAttrsFile(p string) (map[string]json.RawMessage, error) {
	raw, err := readFile(e.Store, path.Join(p, ".zattrs"))
	if err != nil {
		return nil, err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func writeAttrsFile(s *zstore.Store, p string, flat map[string]json.RawMessage) error {
	raw, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	if err := writeJSONFile(s, path.Join(p, ".zattrs"), raw); err != nil {
		return err
	}
	s.PutMetadata(p+"#attrs", raw)
	return nil
}

// attrsOf builds the full ordered-map of attributes a node writes,
// folding in the reserved identity attributes (spec.md §3, §6).
func attrsOf(attrs *orderedmap.OrderedMap[string, any], objectID, namespace, neurodataType string) *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	if objectID != "" {
		out.Set(api.AttrObjectID, objectID)
	}
	if namespace != "" {
		out.Set(api.AttrNamespace, namespace)
	}
	if neurodataType != "" {
		out.Set(api.AttrNeurodataType, neurodataType)
	}
	for pair := attrs.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

func encodeAttrValue(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case *api.ObjectRef:
		c, _ := dtype.NewCodec("ref")
		raw, err := c.EncodeAttr(v)
		return json.RawMessage(raw), err
	default:
		raw, err := json.Marshal(v)
		return json.RawMessage(raw), err
	}
}

func writeJSONFile(s *zstore.Store, p string, raw []byte) error {
	f, err := s.FS().Create(p)
	if err != nil {
		return fmt.Errorf("zio: create %s: %w", p, err)
	}
	defer func() { _ = f.Close() }()
	_, err = f.Write(raw)
	return err
}

func readFile(s *zstore.Store, p string) ([]byte, error) {
	f, err := s.FS().Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return out, nil
}
