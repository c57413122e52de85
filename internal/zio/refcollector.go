package zio

// refCollector gathers the (object_id -> referencing paths) records a
// single Write or Append call produces, across every link, reference
// dataset, and reference-valued attribute touched by the traversal
// already happening there, so the reverse-reference sidecar index can be
// rebuilt once at the end instead of touched per node (spec.md §4.3 —
// ReverseIndex.Rebuild "mirrors Store.Consolidate's re-run after
// mutation contract").
type refCollector struct {
	byObjectID map[string][]string
}

func newRefCollector() *refCollector {
	return &refCollector{byObjectID: map[string][]string{}}
}

// add records that path holds a link or reference naming objectID. Safe
// to call on a nil collector (e.g. from code paths reachable outside a
// Write/Append call) and a no-op when objectID is empty (untyped target).
func (c *refCollector) add(objectID, path string) {
	if c == nil || objectID == "" {
		return
	}
	c.byObjectID[objectID] = append(c.byObjectID[objectID], path)
}
