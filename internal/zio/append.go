package zio

import (
	"bytes"
	"encoding/json"
	"path"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/zarrio/zarrio/api"
)

// Append merges root's tree into an existing store: nodes that already
// exist have their attributes merged (identical value is a no-op,
// divergent value is api.ErrAttributeConflict per spec.md §4.4); nodes
// that do not yet exist are written as in Write. Decision D1 (spec.md
// §9's open question on shape-only attribute differences) resolves those
// the same way: a shape change under "append" is a conflict, not a
// silent reshape.
func (e *Engine) Append(root *api.GroupBuilder, opts api.Options) error {
	opts.Mode = api.ModeAppend
	e.collector = newRefCollector()
	defer func() { e.collector = nil }()

	if err := e.appendGroup("/", root, opts); err != nil {
		return err
	}
	if err := e.writeSchemaCache(opts); err != nil {
		return err
	}
	if e.RefIndex != nil {
		if err := e.RefIndex.Rebuild(e.collector.byObjectID); err != nil {
			return err
		}
	}
	if opts.ConsolidateMetadata {
		if err := e.Store.Consolidate(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) appendGroup(p string, g *api.GroupBuilder, opts api.Options) error {
	if !groupExists(e.Store, p) {
		return e.writeGroup(p, g, opts)
	}

	if err := e.appendAttrs(p, attrsOf(g.Attributes, g.ObjectID, g.Namespace, g.NeurodataType)); err != nil {
		return err
	}
	if err := e.writeLinks(p, g.Links); err != nil {
		return err
	}
	for pair := g.Groups.Oldest(); pair != nil; pair = pair.Next() {
		if err := e.appendGroup(path.Join(p, pair.Key), pair.Value, opts); err != nil {
			return err
		}
	}
	for pair := g.Datasets.Oldest(); pair != nil; pair = pair.Next() {
		if err := e.appendDataset(path.Join(p, pair.Key), pair.Value, opts); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) appendDataset(p string, d *api.DatasetBuilder, opts api.Options) error {
	if !datasetExists(e.Store, p) {
		return e.writeDataset(p, d, opts)
	}

	if shapeOf(d.Value) != nil {
		existing, err := e.readArrayMarker(p)
		if err == nil {
			if !int64SliceEqual(existing.Shape, shapeOf(d.Value)) {
				return api.NewPathError("append", p, api.ErrAttributeConflict)
			}
		}
	}

	return e.appendAttrs(p, attrsOf(d.Attributes, d.ObjectID, d.Namespace, d.NeurodataType))
}

// appendAttrs merges incoming onto whatever attribute JSON already exists
// at p: identical raw values are left alone, new keys are added, and any
// key present in both with differing raw JSON is an api.ErrAttributeConflict.
func (e *Engine) appendAttrs(p string, incoming *orderedmap.OrderedMap[string, any]) error {
	if incoming.Len() == 0 {
		return nil
	}
	existing, err := e.readAttrsFile(p)
	if err != nil {
		existing = map[string]json.RawMessage{}
	}

	for pair := incoming.Oldest(); pair != nil; pair = pair.Next() {
		raw, err := encodeAttrValue(pair.Value)
		if err != nil {
			return api.NewAttrError("append", p, pair.Key, pair.Value, err)
		}
		if ref, ok := pair.Value.(*api.ObjectRef); ok && ref.ObjectID != "" {
			e.collector.add(ref.ObjectID, p)
		}
		if old, ok := existing[pair.Key]; ok {
			if !jsonEqual(old, raw) {
				return api.NewAttrError("append", p, pair.Key, pair.Value, api.ErrAttributeConflict)
			}
			continue
		}
		existing[pair.Key] = raw
	}
	return writeAttrsFile(e.Store, p, existing)
}

func jsonEqual(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}
	na, erra := json.Marshal(va)
	nb, errb := json.Marshal(vb)
	if erra != nil || errb != nil {
		return false
	}
	return bytes.Equal(na, nb)
}

func shapeOf(v api.Value) []int {
	if arr, ok := v.(*api.ArrayValue); ok {
		return arr.Shape
	}
	return nil
}

func int64SliceEqual(a []int64, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != int64(b[i]) {
			return false
		}
	}
	return true
}
