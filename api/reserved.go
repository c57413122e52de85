package api

// Reserved attribute and path names. Implementations preserve these exact
// strings for interchange with other hierarchical-Zarr backends.
const (
	// AttrLink holds a JSON array of link records on a group.
	AttrLink = "zarr_link"
	// AttrDType gives the semantic dtype of a dataset or attribute carrier
	// when it differs from the physical storage dtype.
	AttrDType = "zarr_dtype"
	// AttrSpecLoc, on the root group, points at the schema-cache subtree.
	AttrSpecLoc = ".specloc"
	// AttrNeurodataType names the typed-group/dataset's semantic type.
	AttrNeurodataType = "neurodata_type"
	// AttrNamespace names the namespace a typed group/dataset belongs to.
	AttrNamespace = "namespace"
	// AttrObjectID is the stable identity of a typed group/dataset.
	AttrObjectID = "object_id"

	// DefaultSpecifications is the default root subtree name for cached
	// schema namespaces, at <namespace>/<version>/<source>.
	DefaultSpecifications = "specifications"

	// DTypeObject marks a dataset/attribute as holding object references.
	DTypeObject = "object"
	// DTypeRegion marks a (reserved, unimplemented) region reference.
	DTypeRegion = "region"

	// ConsolidatedMetadataKey is the reserved top-level key for the
	// consolidated metadata index.
	ConsolidatedMetadataKey = ".zmetadata"
)

// reservedAttrNames is used to reject user attributes that shadow backend
// bookkeeping (spec.md §8 property 7: "Reserved-name non-collision").
var reservedAttrNames = map[string]struct{}{
	AttrLink:          {},
	AttrDType:         {},
	AttrSpecLoc:       {},
	AttrNeurodataType: {},
	AttrNamespace:     {},
	AttrObjectID:      {},
}

// IsReservedAttrName reports whether name is owned by the backend and may
// not be written as a user attribute.
func IsReservedAttrName(name string) bool {
	_, ok := reservedAttrNames[name]
	return ok
}
