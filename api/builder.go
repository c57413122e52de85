package api

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// GroupBuilder is a named node holding ordered child mappings (subgroups,
// datasets, links) and an attribute map (spec.md §3).
//
// Children are kept in wk8/go-ordered-map rather than a plain Go map: the
// pre-order write traversal (internal/zio) and export fidelity (spec.md §8
// property 4) both depend on visiting children in the order the upstream
// framework attached them, and a plain map gives no such guarantee.
type GroupBuilder struct {
	Name       string
	ObjectID   string
	Namespace  string
	NeurodataType string

	Groups     *orderedmap.OrderedMap[string, *GroupBuilder]
	Datasets   *orderedmap.OrderedMap[string, *DatasetBuilder]
	Links      *orderedmap.OrderedMap[string, *LinkBuilder]
	Attributes *orderedmap.OrderedMap[string, any]
}

// NewGroupBuilder returns an empty, named GroupBuilder with initialized
// child maps.
func NewGroupBuilder(name string) *GroupBuilder {
	return &GroupBuilder{
		Name:       name,
		Groups:     orderedmap.New[string, *GroupBuilder](),
		Datasets:   orderedmap.New[string, *DatasetBuilder](),
		Links:      orderedmap.New[string, *LinkBuilder](),
		Attributes: orderedmap.New[string, any](),
	}
}

// SetAttr sets a user attribute, rejecting any reserved name
// (spec.md §8 property 7).
func (g *GroupBuilder) SetAttr(name string, value any) error {
	if IsReservedAttrName(name) {
		return NewAttrError("set-attr", g.Name, name, value, ErrNotSerializable)
	}
	g.Attributes.Set(name, value)
	return nil
}

// AddGroup attaches a child subgroup, replacing the relative-path slot.
func (g *GroupBuilder) AddGroup(child *GroupBuilder) { g.Groups.Set(child.Name, child) }

// AddDataset attaches a child dataset.
func (g *GroupBuilder) AddDataset(child *DatasetBuilder) { g.Datasets.Set(child.Name, child) }

// AddLink attaches a child link.
func (g *GroupBuilder) AddLink(child *LinkBuilder) { g.Links.Set(child.Name, child) }

// DatasetBuilder is a named node holding a Value and an attribute map.
type DatasetBuilder struct {
	Name          string
	ObjectID      string
	Namespace     string
	NeurodataType string

	Value      Value
	Attributes *orderedmap.OrderedMap[string, any]
}

// NewDatasetBuilder returns a named DatasetBuilder holding v.
func NewDatasetBuilder(name string, v Value) *DatasetBuilder {
	return &DatasetBuilder{
		Name:       name,
		Value:      v,
		Attributes: orderedmap.New[string, any](),
	}
}

// SetAttr sets a user attribute, rejecting any reserved name.
func (d *DatasetBuilder) SetAttr(name string, value any) error {
	if IsReservedAttrName(name) {
		return NewAttrError("set-attr", d.Name, name, value, ErrNotSerializable)
	}
	d.Attributes.Set(name, value)
	return nil
}

// LinkBuilder holds a target reference and a soft/external flag. It is not
// itself a storage node — it is recorded in its parent group's zarr_link
// attribute (spec.md §3, §4.3).
type LinkBuilder struct {
	Name     string
	Target   *ObjectRef
	External bool
}

// NewLinkBuilder returns a LinkBuilder named name pointing at target.
func NewLinkBuilder(name string, target *ObjectRef, external bool) *LinkBuilder {
	return &LinkBuilder{Name: name, Target: target, External: external}
}

// ReferenceBuilder is a value that may appear inside a dataset element or
// attribute (spec.md §3) — not a child node. It carries the same identity
// as ObjectRef plus the reserved (unimplemented) region-reference field.
type ReferenceBuilder struct {
	Target *ObjectRef
	Region string
}
