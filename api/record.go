package api

import "encoding/json"

// LinkRecord is the JSON shape of one entry in a group's zarr_link
// attribute array (spec.md §3). Unknown keys are preserved on round-trip
// export via the Extra map.
type LinkRecord struct {
	Name             string         `json:"name"`
	Source           string         `json:"source"`
	Path             string         `json:"path"`
	ObjectID         *string        `json:"object_id"`
	SourceObjectID   string         `json:"source_object_id"`
	Extra            map[string]any `json:"-"`
}

// ReferenceRecord is the JSON shape of a reference value inside a dataset
// element or (wrapped) an attribute — the same fields as LinkRecord minus
// Name (spec.md §3).
type ReferenceRecord struct {
	Source         string         `json:"source"`
	Path           string         `json:"path"`
	ObjectID       *string        `json:"object_id"`
	SourceObjectID string         `json:"source_object_id"`
	Extra          map[string]any `json:"-"`
}

// MarshalJSON flattens the known fields and Extra (unknown, preserved-on-
// round-trip keys) into a single JSON object.
func (l LinkRecord) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	for k, v := range l.Extra {
		m[k] = v
	}
	m["name"] = l.Name
	m["source"] = l.Source
	m["path"] = l.Path
	m["object_id"] = l.ObjectID
	m["source_object_id"] = l.SourceObjectID
	return json.Marshal(m)
}

// UnmarshalJSON decodes the known fields and stashes every other key in
// Extra so export round-trips preserve them (spec.md §6).
func (l *LinkRecord) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	known := map[string]bool{"name": true, "source": true, "path": true, "object_id": true, "source_object_id": true}
	if v, ok := m["name"]; ok {
		_ = json.Unmarshal(v, &l.Name)
	}
	if v, ok := m["source"]; ok {
		_ = json.Unmarshal(v, &l.Source)
	}
	if v, ok := m["path"]; ok {
		_ = json.Unmarshal(v, &l.Path)
	}
	if v, ok := m["object_id"]; ok {
		_ = json.Unmarshal(v, &l.ObjectID)
	}
	if v, ok := m["source_object_id"]; ok {
		_ = json.Unmarshal(v, &l.SourceObjectID)
	}
	for k, v := range m {
		if known[k] {
			continue
		}
		if l.Extra == nil {
			l.Extra = map[string]any{}
		}
		var val any
		_ = json.Unmarshal(v, &val)
		l.Extra[k] = val
	}
	return nil
}

// MarshalJSON flattens known fields and Extra, mirroring LinkRecord.
func (r ReferenceRecord) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	for k, v := range r.Extra {
		m[k] = v
	}
	m["source"] = r.Source
	m["path"] = r.Path
	m["object_id"] = r.ObjectID
	m["source_object_id"] = r.SourceObjectID
	return json.Marshal(m)
}

// UnmarshalJSON decodes known fields and stashes the rest in Extra.
func (r *ReferenceRecord) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	known := map[string]bool{"source": true, "path": true, "object_id": true, "source_object_id": true}
	if v, ok := m["source"]; ok {
		_ = json.Unmarshal(v, &r.Source)
	}
	if v, ok := m["path"]; ok {
		_ = json.Unmarshal(v, &r.Path)
	}
	if v, ok := m["object_id"]; ok {
		_ = json.Unmarshal(v, &r.ObjectID)
	}
	if v, ok := m["source_object_id"]; ok {
		_ = json.Unmarshal(v, &r.SourceObjectID)
	}
	for k, v := range m {
		if known[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		var val any
		_ = json.Unmarshal(v, &val)
		r.Extra[k] = val
	}
	return nil
}

// ToReferenceRecord drops the Name field, producing the reference-record
// shape from a link record (used when a link's target is also expressed
// as a reference, e.g. during export remapping).
func (l LinkRecord) ToReferenceRecord() ReferenceRecord {
	return ReferenceRecord{
		Source:         l.Source,
		Path:           l.Path,
		ObjectID:       l.ObjectID,
		SourceObjectID: l.SourceObjectID,
		Extra:          l.Extra,
	}
}

// RefFromBuilder builds a ReferenceRecord from an ObjectRef.
func RefFromBuilder(r *ObjectRef) ReferenceRecord {
	rec := ReferenceRecord{
		Source:         r.Source,
		Path:           r.Path,
		SourceObjectID: r.SourceObjectID,
	}
	if r.ObjectID != "" {
		id := r.ObjectID
		rec.ObjectID = &id
	}
	return rec
}

// LinkFromBuilder builds a LinkRecord from a LinkBuilder's target.
func LinkFromBuilder(name string, r *ObjectRef) LinkRecord {
	rec := LinkRecord{
		Name:           name,
		Source:         r.Source,
		Path:           r.Path,
		SourceObjectID: r.SourceObjectID,
	}
	if r.ObjectID != "" {
		id := r.ObjectID
		rec.ObjectID = &id
	}
	return rec
}
