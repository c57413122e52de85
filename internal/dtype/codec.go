// Package dtype is the DType & Attribute Codec (DAC) component
// (spec.md §4.2): translates between semantic dtypes (api.DType) and the
// physical encodings a Zarr-compatible store actually holds on disk —
// attribute JSON, byte-string text, and reference records. A reference is
// encoded as the bare reference record (source, path, object_id,
// source_object_id); it is not wrapped in a {"zarr_dtype", "value"}
// object. Region references are rejected on encode with
// api.ErrRegionReferenceUnsupported.
//
// JSON encode/decode runs through github.com/ohler55/ojg/oj rather than
// encoding/json, grounded on the teacher's use of github.com/ohler55/ojg
// (internal/ingest/json_walker.go uses ojg/jp). NaN/±Inf are replaced by
// the sentinel strings spec.md §4.2 requires (floatToJSON) before the
// value reaches the marshaler, since encoding/json refuses to marshal
// them.
package dtype

import (
	"encoding/base64"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/ohler55/ojg/oj"

	"github.com/zarrio/zarrio/api"
)

// jsonOptions configures ojg's float formatting; NaN/Inf are substituted
// before encoding (see floatToJSON) so these only govern ordinary floats.
var jsonOptions = &oj.Options{}

const (
	nanString    = "NaN"
	posInfString = "Infinity"
	negInfString = "-Infinity"
)

// Codec encodes and decodes attribute values and dataset elements for one
// dataset or attribute's declared dtype.
type Codec struct {
	DType api.DType
}

// NewCodec resolves declared (a spec-facing dtype name, e.g. "float",
// "isodatetime") to a Codec bound to its normalized api.DType.
func NewCodec(declared string) (*Codec, error) {
	d, err := api.NormalizeDType(declared)
	if err != nil {
		return nil, err
	}
	return &Codec{DType: d}, nil
}

// EncodeAttr converts an in-memory attribute value into the JSON bytes
// stored in a .zattrs document (spec.md §4.2, §6).
func (c *Codec) EncodeAttr(value any) ([]byte, error) {
	encoded, err := EncodeElement(c.DType, value)
	if err != nil {
		return nil, err
	}
	return oj.Marshal(encoded, jsonOptions)
}

// DecodeAttr is EncodeAttr's inverse.
func (c *Codec) DecodeAttr(raw []byte) (any, error) {
	var generic any
	if err := oj.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("dtype: decode attr: %w", err)
	}
	return DecodeElement(c.DType, generic)
}

// EncodeElement converts a single Go value of the given semantic dtype
// into its JSON-ready representation (spec.md §4.2's per-dtype rules).
func EncodeElement(d api.DType, value any) (any, error) {
	switch d {
	case api.DFloat32, api.DFloat64:
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		return floatToJSON(f), nil

	case api.DText:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("dtype: text value must be a string, got %T", value)
		}
		return s, nil

	case api.DASCII:
		return encodeByteString(value)

	case api.DRegion:
		return nil, api.ErrRegionReferenceUnsupported

	case api.DRef:
		ref, ok := value.(*api.ObjectRef)
		if !ok {
			return nil, fmt.Errorf("dtype: reference value must be *api.ObjectRef, got %T", value)
		}
		return api.RefFromBuilder(ref), nil

	case api.DISODatetime:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("dtype: isodatetime value must be an RFC3339 string, got %T", value)
		}
		return s, nil

	case api.DBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("dtype: bool value must be a bool, got %T", value)
		}
		return b, nil

	case api.DCompound:
		// Compound records are normalized into map[string]any by zio
		// before reaching the codec; each field still passes through
		// this dtype's own EncodeElement when the record is built.
		return value, nil

	default:
		return value, nil
	}
}

// DecodeElement is EncodeElement's inverse, given a value already decoded
// from JSON into Go's generic any (float64/string/bool/map/slice/nil).
func DecodeElement(d api.DType, raw any) (any, error) {
	switch d {
	case api.DFloat32, api.DFloat64:
		return jsonToFloat(raw)

	case api.DText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("dtype: expected text JSON string, got %T", raw)
		}
		return s, nil

	case api.DASCII:
		return decodeByteString(raw)

	case api.DRef, api.DRegion:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dtype: expected reference object, got %T", raw)
		}
		return referenceFromMap(m)

	default:
		return raw, nil
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("dtype: expected numeric value, got %T", value)
	}
}

// floatToJSON applies spec.md §4.2's NaN/±Inf string-encoding rule: these
// three values have no JSON numeric representation, so they are written
// as the sentinel strings instead; every other float passes through as a
// JSON number.
func floatToJSON(f float64) any {
	switch {
	case math.IsNaN(f):
		return nanString
	case math.IsInf(f, 1):
		return posInfString
	case math.IsInf(f, -1):
		return negInfString
	default:
		return f
	}
}

func jsonToFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case string:
		switch v {
		case nanString:
			return math.NaN(), nil
		case posInfString:
			return math.Inf(1), nil
		case negInfString:
			return math.Inf(-1), nil
		default:
			return 0, fmt.Errorf("dtype: unrecognized float sentinel %q", v)
		}
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("dtype: expected float JSON value, got %T", raw)
	}
}

// encodeByteString applies spec.md §4.2's byte-string rule: valid UTF-8
// is UTF-8-decoded and written as a plain JSON string, with no wrapper;
// anything else is base64-encoded and wrapped as {"bytes": "<b64>"} so
// decodeByteString can tell the two apart.
func encodeByteString(value any) (any, error) {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return nil, fmt.Errorf("dtype: expected []byte or string, got %T", value)
	}
	if utf8.Valid(b) {
		return string(b), nil
	}
	return map[string]any{"bytes": base64.StdEncoding.EncodeToString(b)}, nil
}

func decodeByteString(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case map[string]any:
		data, _ := v["bytes"].(string)
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("dtype: decode byte-string base64: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("dtype: expected byte-string value, got %T", raw)
	}
}

func referenceFromMap(m map[string]any) (*api.ObjectRef, error) {
	source, _ := m["source"].(string)
	p, _ := m["path"].(string)
	if p == "" {
		return nil, fmt.Errorf("dtype: reference object missing %q", "path")
	}
	ref := &api.ObjectRef{Source: source, Path: p}
	if oid, ok := m["object_id"].(string); ok {
		ref.ObjectID = oid
	}
	if soid, ok := m["source_object_id"].(string); ok {
		ref.SourceObjectID = soid
	}
	return ref, nil
}
