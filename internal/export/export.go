// Package export is the Export Coordinator (EC) component (spec.md
// §4.5): copies a builder tree from any Source (this backend's own store
// or a foreign one) onto a fresh zstore.Store, rewriting link/reference
// sources and inheriting chunking hints along the way.
package export

import (
	"fmt"
	"path"
	"unicode/utf8"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/linkref"
	"github.com/zarrio/zarrio/internal/zio"
	"github.com/zarrio/zarrio/internal/zstore"
)

// Source is anything Export can walk: this backend's own store, or a
// foreign one adapted by the caller.
type Source interface {
	Root() (*api.GroupBuilder, error)
	// Walk visits every group and dataset node (passed as *api.GroupBuilder
	// or *api.DatasetBuilder) by path, in the order Export should build the
	// srcPath -> dstPath identity map.
	Walk(fn func(path string, node any) error) error
	// ChunkingHint reports a preferred chunk shape/codec for the dataset
	// at path, if the source has one worth preserving on export.
	ChunkingHint(path string) (chunkShape []int, codec string, ok bool)
	// SourceName identifies this source for relative-source computation
	// (spec.md §4.3's Source field on link/reference records).
	SourceName() string
}

// Export copies src's entire tree onto dst (spec.md §4.5). It is
// all-or-nothing: on any error dst is closed and the caller must discard
// it (spec.md §7 — write errors leave the destination in a partial
// state; Export never deletes it itself).
func Export(src Source, dst *zstore.Store, opts api.Options) error {
	root, err := src.Root()
	if err != nil {
		_ = dst.Close()
		return fmt.Errorf("export: read source root: %w", err)
	}

	identity := map[string]string{}
	if err := src.Walk(func(p string, _ any) error {
		identity[p] = p
		return nil
	}); err != nil {
		_ = dst.Close()
		return fmt.Errorf("export: walk source: %w", err)
	}

	rewritten := rewriteTree("/", root, src, identity)

	engine := zio.NewEngine(dst, linkref.NewEngine(1024))
	defer func() { _ = engine.Close() }()
	if err := engine.Write(rewritten, opts); err != nil {
		_ = dst.Close()
		return fmt.Errorf("export: write destination: %w", err)
	}
	return nil
}

// rewriteTree clones g's subtree, rewriting link sources per Decision D2
// and inheriting chunking hints / normalizing byte datasets along the way.
func rewriteTree(p string, g *api.GroupBuilder, src Source, identity map[string]string) *api.GroupBuilder {
	out := api.NewGroupBuilder(g.Name)
	out.ObjectID = g.ObjectID
	out.Namespace = g.Namespace
	out.NeurodataType = g.NeurodataType
	copyAttrs(out.Attributes, g.Attributes, src, identity)

	for pair := g.Links.Oldest(); pair != nil; pair = pair.Next() {
		out.AddLink(rewriteLink(pair.Value, src, identity))
	}
	for pair := g.Groups.Oldest(); pair != nil; pair = pair.Next() {
		out.AddGroup(rewriteTree(path.Join(p, pair.Key), pair.Value, src, identity))
	}
	for pair := g.Datasets.Oldest(); pair != nil; pair = pair.Next() {
		childPath := path.Join(p, pair.Key)
		out.AddDataset(rewriteDataset(childPath, pair.Value, src, identity))
	}
	return out
}

// remapSource implements Decision D2: a source counts as internal
// (rewritten to ".") iff it names this walk's own source and path is
// still a key in the export's identity map — i.e. it will be (or
// already was) exported as part of this same walk. Anything else is
// left pointing at its original external source untouched. Links and
// object references (dataset values and reference-valued attributes)
// are rewritten the same way, per spec.md §4.5.
func remapSource(source, path string, src Source, identity map[string]string) string {
	if source == "." || source == src.SourceName() {
		if _, stillPresent := identity[path]; stillPresent {
			return "."
		}
	}
	return source
}

func rewriteLink(l *api.LinkBuilder, src Source, identity map[string]string) *api.LinkBuilder {
	target := *l.Target
	target.Source = remapSource(target.Source, target.Path, src, identity)
	return api.NewLinkBuilder(l.Name, &target, target.Source != ".")
}

func rewriteRef(ref *api.ObjectRef, src Source, identity map[string]string) *api.ObjectRef {
	out := *ref
	out.Source = remapSource(ref.Source, ref.Path, src, identity)
	out.Proxy = nil
	return &out
}

func rewriteDataset(p string, d *api.DatasetBuilder, src Source, identity map[string]string) *api.DatasetBuilder {
	value := d.Value
	switch v := value.(type) {
	case *api.ArrayValue:
		clone := *v
		if chunkShape, _, ok := src.ChunkingHint(p); ok && len(chunkShape) > 0 {
			clone.ChunkShape = chunkShape
		}
		value = &clone
	case *api.ReferenceValue:
		clone := *v
		clone.Refs = make([]*api.ObjectRef, len(v.Refs))
		for i, ref := range v.Refs {
			clone.Refs[i] = rewriteRef(ref, src, identity)
		}
		value = &clone
	}
	value = normalizeFixedLengthText(value)

	out := api.NewDatasetBuilder(d.Name, value)
	out.ObjectID = d.ObjectID
	out.Namespace = d.Namespace
	out.NeurodataType = d.NeurodataType
	copyAttrs(out.Attributes, d.Attributes, src, identity)
	return out
}

// normalizeFixedLengthText converts a foreign fixed-length byte dataset
// whose content happens to be valid UTF-8 into this backend's variable-
// length text representation (spec.md §4.5) — fixed-length byte strings
// are a foreign-format artifact (e.g. HDF5 FIXED_LEN_STRING); once copied
// here there is no reason to keep the fixed-length encoding.
func normalizeFixedLengthText(v api.Value) api.Value {
	scalar, ok := v.(*api.ScalarValue)
	if !ok || scalar.DType != api.DASCII {
		return v
	}
	b, ok := scalar.V.([]byte)
	if !ok || !utf8.Valid(b) {
		return v
	}
	return &api.ScalarValue{DType: api.DText, V: string(b)}
}

// copyAttrs copies attrs onto dst, rewriting any reference-valued
// attribute's Source the same way rewriteLink rewrites a link target
// (spec.md §4.5).
func copyAttrs(dst, attrs *orderedmap.OrderedMap[string, any], src Source, identity map[string]string) {
	for pair := attrs.Oldest(); pair != nil; pair = pair.Next() {
		v := pair.Value
		if ref, ok := v.(*api.ObjectRef); ok {
			v = rewriteRef(ref, src, identity)
		}
		dst.Set(pair.Key, v)
	}
}
