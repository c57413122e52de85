package dtype

// ObjectCodec serializes arbitrary "object" dtype slots — the kind of
// free-form Go value that would otherwise have been pickled in the
// original Python implementation (spec.md §4.2's DTypeObject, §9's
// design note on api.ObjectCodec). Native mode uses encoding/gob, Go's
// closest analogue to pickling a Python object graph; JSON mode is the
// portable alternative for interop with readers outside this module.

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/zarrio/zarrio/api"
)

// EncodeObject serializes value per the requested codec, returning the
// bytes written to the chunk payload for an object-dtype slot.
func EncodeObject(codec api.ObjectCodec, value any) ([]byte, error) {
	switch codec {
	case api.ObjectCodecNative:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
			return nil, fmt.Errorf("dtype: gob-encode object: %w", err)
		}
		return buf.Bytes(), nil
	case api.ObjectCodecJSON:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("dtype: json-encode object: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("dtype: unknown object codec %v: %w", codec, api.ErrUnsupported)
	}
}

// DecodeObject is EncodeObject's inverse.
func DecodeObject(codec api.ObjectCodec, raw []byte) (any, error) {
	switch codec {
	case api.ObjectCodecNative:
		var value any
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&value); err != nil {
			return nil, fmt.Errorf("dtype: gob-decode object: %w", err)
		}
		return value, nil
	case api.ObjectCodecJSON:
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("dtype: json-decode object: %w", err)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("dtype: unknown object codec %v: %w", codec, api.ErrUnsupported)
	}
}
