package zio

import (
	"context"
	"encoding/json"
	"path"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/dtype"
	"github.com/zarrio/zarrio/internal/zstore"
)

// Read reconstructs the builder-shaped tree rooted at p (spec.md §4.4).
// References encountered along the way become linkref.Proxy-backed
// api.ReferenceValue entries; callers resolve them lazily via e.Refs.
func (e *Engine) Read(p string, opts api.Options) (*api.GroupBuilder, error) {
	return e.readGroup(p)
}

func (e *Engine) readGroup(p string) (*api.GroupBuilder, error) {
	if !e.Store.Exists(path.Join(p, ".zgroup")) {
		return nil, api.NewPathError("read", p, api.ErrNotFound)
	}
	name := path.Base(p)
	g := api.NewGroupBuilder(name)

	attrs, err := e.readAttrsFile(p)
	if err == nil {
		applyReservedAttrs(attrs, &g.ObjectID, &g.Namespace, &g.NeurodataType)
		for k, raw := range attrs {
			if api.IsReservedAttrName(k) {
				continue
			}
			var v any
			_ = json.Unmarshal(raw, &v)
			g.Attributes.Set(k, v)
		}
		if linkRaw, ok := attrs[api.AttrLink]; ok {
			var records []api.LinkRecord
			if err := json.Unmarshal(linkRaw, &records); err == nil {
				for _, rec := range records {
					external := rec.Source != "." && rec.Source != ""
					lb := api.NewLinkBuilder(rec.Name, e.linkTarget(rec), external)
					g.Links.Set(rec.Name, lb)
				}
			}
		}
	}

	entries, err := e.Store.FS().ReadDir(normalizeDir(p))
	if err != nil {
		return g, nil
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			continue
		}
		childPath := path.Join(p, name)
		if e.Store.Exists(path.Join(childPath, ".zgroup")) {
			child, err := e.readGroup(childPath)
			if err != nil {
				return nil, err
			}
			g.Groups.Set(name, child)
		} else if e.Store.Exists(path.Join(childPath, ".zarray")) {
			child, err := e.readDataset(childPath)
			if err != nil {
				return nil, err
			}
			g.Datasets.Set(name, child)
		}
	}
	return g, nil
}

func (e *Engine) readDataset(p string) (*api.DatasetBuilder, error) {
	marker, err := e.readArrayMarker(p)
	if err != nil {
		return nil, api.NewPathError("read", p, err)
	}

	attrs, _ := e.readAttrsFile(p)
	declaredDType := marker.DType
	if raw, ok := attrs[api.AttrDType]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			declaredDType = s
		}
	}

	value, err := e.readDatasetValue(p, marker, declaredDType)
	if err != nil {
		return nil, api.NewPathError("read", p, err)
	}

	d := api.NewDatasetBuilder(path.Base(p), value)
	applyReservedAttrs(attrs, &d.ObjectID, &d.Namespace, &d.NeurodataType)
	for k, raw := range attrs {
		if api.IsReservedAttrName(k) {
			continue
		}
		var v any
		_ = json.Unmarshal(raw, &v)
		d.Attributes.Set(k, v)
	}
	return d, nil
}

func (e *Engine) readArrayMarker(p string) (*zstore.ArrayMarker, error) {
	raw, err := readFile(e.Store, path.Join(p, ".zarray"))
	if err != nil {
		return nil, err
	}
	var marker zstore.ArrayMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		return nil, err
	}
	return &marker, nil
}

func (e *Engine) readDatasetValue(p string, marker *zstore.ArrayMarker, declaredDType string) (api.Value, error) {
	zeroCoords := make([]int, len(marker.Shape))
	raw, err := readFile(e.Store, e.Store.ChunkPath(p, zeroCoords))
	if err != nil {
		return nil, err
	}

	if declaredDType == "|O" || declaredDType == api.DTypeObject {
		var records []api.ReferenceRecord
		if err := json.Unmarshal(raw, &records); err == nil && len(records) > 0 {
			refs := make([]*api.ObjectRef, len(records))
			for i, r := range records {
				refs[i] = e.refFromRecord(r)
			}
			return &api.ReferenceValue{Shape: intShape(marker.Shape), Refs: refs}, nil
		}
	}

	if len(marker.Shape) == 0 {
		c, err := dtype.NewCodec(reverseZarrDType(declaredDType))
		if err != nil {
			return nil, err
		}
		v, err := c.DecodeAttr(raw)
		if err != nil {
			return nil, err
		}
		return &api.ScalarValue{DType: c.DType, V: v}, nil
	}

	return &api.ArrayValue{
		DType:      reverseZarrDTypeAsDType(declaredDType),
		Shape:      intShape(marker.Shape),
		Data:       json.RawMessage(raw),
		ChunkShape: marker.Chunks,
		Compressor: marker.Compressor,
	}, nil
}

func applyReservedAttrs(attrs map[string]json.RawMessage, objectID, namespace, neurodataType *string) {
	if raw, ok := attrs[api.AttrObjectID]; ok {
		_ = json.Unmarshal(raw, objectID)
	}
	if raw, ok := attrs[api.AttrNamespace]; ok {
		_ = json.Unmarshal(raw, namespace)
	}
	if raw, ok := attrs[api.AttrNeurodataType]; ok {
		_ = json.Unmarshal(raw, neurodataType)
	}
}

// linkTarget and refFromRecord attach a linkref.Proxy to every ObjectRef
// materialized on read, so link/reference targets resolve lazily through
// e.Refs (spec.md §4.3) instead of carrying bare, unresolvable identity
// data. Same-file records (Source == ".") resolve through this same
// Engine, registered under "." in NewEngine.
func (e *Engine) linkTarget(rec api.LinkRecord) *api.ObjectRef {
	ref := &api.ObjectRef{Source: rec.Source, Path: rec.Path, SourceObjectID: rec.SourceObjectID}
	if rec.ObjectID != nil {
		ref.ObjectID = *rec.ObjectID
	}
	if e.Refs != nil {
		ref.Proxy = e.Refs.NewProxy(ref)
	}
	return ref
}

func (e *Engine) refFromRecord(rec api.ReferenceRecord) *api.ObjectRef {
	ref := &api.ObjectRef{Source: rec.Source, Path: rec.Path, SourceObjectID: rec.SourceObjectID}
	if rec.ObjectID != nil {
		ref.ObjectID = *rec.ObjectID
	}
	if e.Refs != nil {
		ref.Proxy = e.Refs.NewProxy(ref)
	}
	return ref
}

func intShape(shape []int64) []int {
	out := make([]int, len(shape))
	for i, s := range shape {
		out[i] = int(s)
	}
	return out
}

func normalizeDir(p string) string {
	if p == "/" || p == "" {
		return "."
	}
	return p[1:]
}

func reverseZarrDType(z string) string {
	switch z {
	case "<f4":
		return "float32"
	case "<f8":
		return "float64"
	case "<i8":
		return "int64"
	case "<i4":
		return "int32"
	case "<i2":
		return "int16"
	case "|i1":
		return "int8"
	case "<u8":
		return "uint64"
	case "<u4":
		return "uint32"
	case "<u2":
		return "uint16"
	case "|u1":
		return "uint8"
	case "|b1":
		return "bool"
	default:
		return "text"
	}
}

func reverseZarrDTypeAsDType(z string) api.DType {
	d, _ := api.NormalizeDType(reverseZarrDType(z))
	return d
}

// --- linkref.Reader implementation -----------------------------------

// ObjectIDAt implements linkref.Reader.
func (e *Engine) ObjectIDAt(p string) (string, bool) {
	attrs, err := e.readAttrsFile(p)
	if err != nil {
		return "", false
	}
	raw, ok := attrs[api.AttrObjectID]
	if !ok {
		return "", false
	}
	var id string
	if json.Unmarshal(raw, &id) != nil {
		return "", false
	}
	return id, id != ""
}

// ReadValueAt implements linkref.Reader.
func (e *Engine) ReadValueAt(ctx context.Context, p string) (api.Value, error) {
	if e.Store.Exists(path.Join(p, ".zgroup")) {
		g, err := e.readGroup(p)
		if err != nil {
			return nil, err
		}
		return groupAsValue(g), nil
	}
	d, err := e.readDataset(p)
	if err != nil {
		return nil, err
	}
	return d.Value, nil
}

// groupAsValue wraps a group in an IteratorValue so it can flow through
// api.Value-typed call sites (e.g. a reference target that names a
// group rather than a dataset); the iterator carries the GroupBuilder
// itself, not a chunk stream.
func groupAsValue(g *api.GroupBuilder) api.Value {
	return &api.IteratorValue{Iterator: g}
}
