package api

import "fmt"

// DType is a declared (semantic) dtype name, as used by the upstream
// hierarchical data model. It is distinct from the physical storage dtype
// a Store actually writes.
type DType string

const (
	DFloat32     DType = "float32"
	DFloat64     DType = "float64"
	DInt64       DType = "int64"
	DInt32       DType = "int32"
	DInt16       DType = "int16"
	DInt8        DType = "int8"
	DUint64      DType = "uint64"
	DUint32      DType = "uint32"
	DUint16      DType = "uint16"
	DUint8       DType = "uint8"
	DBool        DType = "bool"
	DText        DType = "text"   // variable-length UTF-8
	DASCII       DType = "ascii"  // variable-length ASCII
	DRef         DType = "ref"    // object reference
	DRegion      DType = "region" // reserved, unimplemented
	DISODatetime DType = "isodatetime"
	DCompound    DType = "compound"
)

// aliases maps every declared-dtype spelling in spec.md §3 onto the
// canonical DType it normalizes to.
var aliases = map[string]DType{
	"float":        DFloat32,
	"float32":      DFloat32,
	"double":       DFloat64,
	"float64":      DFloat64,
	"long":         DInt64,
	"int64":        DInt64,
	"int":          DInt32,
	"int32":        DInt32,
	"int16":        DInt16,
	"int8":         DInt8,
	"uint64":       DUint64,
	"uint32":       DUint32,
	"uint16":       DUint16,
	"uint8":        DUint8,
	"bool":         DBool,
	"text":         DText,
	"utf":          DText,
	"utf8":         DText,
	"utf-8":        DText,
	"ascii":        DASCII,
	"str":          DASCII,
	"ref":          DRef,
	"reference":    DRef,
	"object":       DRef,
	"region":       DRegion,
	"isodatetime":  DISODatetime,
	"compound":     DCompound,
}

// NormalizeDType resolves any spelling from the table in spec.md §3 to its
// canonical DType. It fails with ErrUnsupported for unknown spellings.
func NormalizeDType(declared string) (DType, error) {
	if d, ok := aliases[declared]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown dtype %q", ErrUnsupported, declared)
}

// PhysicalSpec describes the storage-level representation of a DType: the
// Zarr dtype string (e.g. "<f4") plus whether it requires the object codec
// and the zarr_dtype attribute to be set on write.
type PhysicalSpec struct {
	ZarrDType    string // Zarr/NumPy-style dtype string
	ItemSize     int    // bytes, 0 for variable-length
	IsObjectSlot bool   // stored via the pluggable object codec
	SetDTypeAttr bool   // zarr_dtype attribute must be written
}

// Physical returns the storage-level representation for a canonical DType.
func Physical(d DType) (PhysicalSpec, error) {
	switch d {
	case DFloat32:
		return PhysicalSpec{ZarrDType: "<f4", ItemSize: 4}, nil
	case DFloat64:
		return PhysicalSpec{ZarrDType: "<f8", ItemSize: 8}, nil
	case DInt64:
		return PhysicalSpec{ZarrDType: "<i8", ItemSize: 8}, nil
	case DInt32:
		return PhysicalSpec{ZarrDType: "<i4", ItemSize: 4}, nil
	case DInt16:
		return PhysicalSpec{ZarrDType: "<i2", ItemSize: 2}, nil
	case DInt8:
		return PhysicalSpec{ZarrDType: "|i1", ItemSize: 1}, nil
	case DUint64:
		return PhysicalSpec{ZarrDType: "<u8", ItemSize: 8}, nil
	case DUint32:
		return PhysicalSpec{ZarrDType: "<u4", ItemSize: 4}, nil
	case DUint16:
		return PhysicalSpec{ZarrDType: "<u2", ItemSize: 2}, nil
	case DUint8:
		return PhysicalSpec{ZarrDType: "|u1", ItemSize: 1}, nil
	case DBool:
		return PhysicalSpec{ZarrDType: "|b1", ItemSize: 1}, nil
	case DText:
		return PhysicalSpec{ZarrDType: "|O", ItemSize: 0}, nil
	case DASCII:
		return PhysicalSpec{ZarrDType: "|O", ItemSize: 0}, nil
	case DISODatetime:
		return PhysicalSpec{ZarrDType: "|O", ItemSize: 0}, nil
	case DRef:
		return PhysicalSpec{ZarrDType: "|O", ItemSize: 0, IsObjectSlot: true, SetDTypeAttr: true}, nil
	case DRegion:
		return PhysicalSpec{}, ErrRegionReferenceUnsupported
	case DCompound:
		return PhysicalSpec{ZarrDType: "|V", ItemSize: 0}, nil
	default:
		return PhysicalSpec{}, fmt.Errorf("%w: dtype %q", ErrUnsupported, d)
	}
}

// CompoundField is one field of a CompoundDType.
type CompoundField struct {
	Name  string
	DType DType
}

// CompoundDType describes a structured record dtype; nested reference
// fields are permitted (spec.md §4.2).
type CompoundDType struct {
	Fields []CompoundField
}
