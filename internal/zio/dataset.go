package zio

import (
	"encoding/json"
	"fmt"
	"path"
	"reflect"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/dtype"
	"github.com/zarrio/zarrio/internal/zstore"
)

func (e *Engine) writeDataset(p string, d *api.DatasetBuilder, opts api.Options) error {
	if datasetExists(e.Store, p) && opts.Mode == api.ModeCreate {
		return api.NewPathError("write", p, api.ErrAlreadyExists)
	}

	switch v := d.Value.(type) {
	case *api.ArrayValue:
		if err := e.writeArray(p, v, opts); err != nil {
			return err
		}
	case *api.ScalarValue:
		if err := e.writeScalar(p, v); err != nil {
			return err
		}
	case *api.ReferenceValue:
		if err := e.writeReferenceArray(p, v); err != nil {
			return err
		}
	case *api.CompoundValue:
		if err := e.writeCompound(p, v); err != nil {
			return err
		}
	case *api.IteratorValue:
		di, ok := v.Iterator.(*DatasetIterator)
		if !ok {
			return api.NewPathError("write", p, fmt.Errorf("%w: IteratorValue.Iterator must be a *zio.DatasetIterator, got %T", api.ErrUnsupported, v.Iterator))
		}
		if err := e.writeIteratorDataset(p, di, opts); err != nil {
			return err
		}
	default:
		return api.NewPathError("write", p, fmt.Errorf("%w: unsupported dataset value %T", api.ErrUnsupported, d.Value))
	}

	return e.writeAttrs(p, attrsOf(d.Attributes, d.ObjectID, d.Namespace, d.NeurodataType))
}

func (e *Engine) writeScalar(p string, v *api.ScalarValue) error {
	phys, err := api.Physical(v.DType)
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	marker := zstore.ArrayMarker{ZarrFormat: 2, Shape: []int64{}, Chunks: []int{}, DType: phys.ZarrDType}
	if err := e.writeArrayMarker(p, marker, v.DType); err != nil {
		return err
	}
	c, err := dtype.NewCodec(string(v.DType))
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	raw, err := c.EncodeAttr(v.V)
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	return writeJSONFile(e.Store, path.Join(p, "0"), raw)
}

func (e *Engine) writeArray(p string, v *api.ArrayValue, opts api.Options) error {
	phys, err := api.Physical(v.DType)
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	shape := make([]int64, len(v.Shape))
	for i, s := range v.Shape {
		shape[i] = int64(s)
	}
	marker := zstore.ArrayMarker{
		ZarrFormat: 2,
		Shape:      shape,
		Chunks:     v.ChunkShape,
		DType:      phys.ZarrDType,
		Compressor: v.Compressor,
	}
	if err := e.writeArrayMarker(p, marker, v.DType); err != nil {
		return err
	}

	// Whole-array write: a single chunk at the origin.
	c, err := dtype.NewCodec(string(v.DType))
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	encoded, err := encodeBulk(c, v.Data)
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return err
	}
	zeroCoords := make([]int, len(v.Shape))
	return writeJSONFile(e.Store, e.Store.ChunkPath(p, zeroCoords), raw)
}

// DatasetIterator pairs a ChunkIterator with the dtype its chunks encode,
// so an iterative/parallel write has everything writeIteratorDataset
// needs without widening the ChunkIterator interface itself. Callers
// build one of these and wrap it in an api.IteratorValue to opt a
// dataset into chunked writing.
type DatasetIterator struct {
	DType api.DType
	Iter  ChunkIterator
}

func (e *Engine) writeIteratorDataset(p string, di *DatasetIterator, opts api.Options) error {
	phys, err := api.Physical(di.DType)
	if err != nil {
		return api.NewPathError("write", p, err)
	}
	marker := zstore.ArrayMarker{
		ZarrFormat: 2,
		Shape:      di.Iter.Shape(),
		Chunks:     di.Iter.ChunkShape(),
		DType:      phys.ZarrDType,
	}
	if err := e.writeArrayMarker(p, marker, di.DType); err != nil {
		return err
	}
	return e.writeChunked(p, di.DType, di.Iter, opts)
}

func (e *Engine) writeArrayMarker(p string, marker zstore.ArrayMarker, d api.DType) error {
	raw, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	if err := writeJSONFile(e.Store, path.Join(p, ".zarray"), raw); err != nil {
		return err
	}
	e.Store.PutMetadata(p, raw)

	if phys, err := api.Physical(d); err == nil && phys.SetDTypeAttr {
		if err := e.mergeAttr(p, api.AttrDType, jsonString(api.DTypeObject)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeReferenceArray(p string, v *api.ReferenceValue) error {
	shape := make([]int64, len(v.Shape))
	for i, s := range v.Shape {
		shape[i] = int64(s)
	}
	marker := zstore.ArrayMarker{ZarrFormat: 2, Shape: shape, Chunks: v.Shape, DType: "|O"}
	if err := e.writeArrayMarker(p, marker, api.DRef); err != nil {
		return err
	}
	records := make([]api.ReferenceRecord, len(v.Refs))
	for i, ref := range v.Refs {
		records[i] = api.RefFromBuilder(ref)
		if ref.ObjectID != "" {
			e.collector.add(ref.ObjectID, p)
		}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	zeroCoords := make([]int, len(v.Shape))
	return writeJSONFile(e.Store, e.Store.ChunkPath(p, zeroCoords), raw)
}

func (e *Engine) writeCompound(p string, v *api.CompoundValue) error {
	shape := make([]int64, len(v.Shape))
	for i, s := range v.Shape {
		shape[i] = int64(s)
	}
	marker := zstore.ArrayMarker{ZarrFormat: 2, Shape: shape, Chunks: v.Shape, DType: "|V"}
	if err := e.writeArrayMarker(p, marker, api.DCompound); err != nil {
		return err
	}
	raw, err := json.Marshal(v.Records)
	if err != nil {
		return err
	}
	zeroCoords := make([]int, len(v.Shape))
	return writeJSONFile(e.Store, e.Store.ChunkPath(p, zeroCoords), raw)
}

func jsonString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

func encodeBulk(c *dtype.Codec, data any) (any, error) {
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return dtype.EncodeElement(c.DType, data)
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		encoded, err := dtype.EncodeElement(c.DType, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = encoded
	}
	return out, nil
}
