package zio

import (
	"fmt"
	"path"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/zlog"
)

// writeSchemaCache serializes every namespace the caller's TypeMap has
// loaded under /<specifications>/<namespace>/<version>/<source> as a
// scalar text dataset holding the namespace's JSON text, write-once per
// (namespace, version) (spec.md §4.4, §6's `.specloc`). Failures are
// non-fatal: each is logged through zlog as an api.ErrSchemaCacheError and
// the call still returns nil, so the main tree's write is not aborted.
func (e *Engine) writeSchemaCache(opts api.Options) error {
	if opts.TypeMap == nil {
		return nil
	}
	namespaces := opts.TypeMap.LoadedNamespaces()
	if len(namespaces) == 0 {
		return nil
	}

	root := path.Join("/", api.DefaultSpecifications)
	wroteAny := false
	for _, ns := range namespaces {
		p := path.Join(root, ns.Name, ns.Version, ns.Source)
		if e.Store.Exists(p) {
			continue // write-once per (namespace, version, source)
		}
		if err := e.writeScalar(p, &api.ScalarValue{DType: api.DText, V: ns.JSON}); err != nil {
			zlog.Warnf("%v", api.NewPathError("write", p, fmt.Errorf("%w: %v", api.ErrSchemaCacheError, err)))
			continue
		}
		wroteAny = true
	}
	if wroteAny {
		if err := e.mergeAttr("/", api.AttrSpecLoc, jsonString(root)); err != nil {
			zlog.Warnf("%v", api.NewPathError("write", "/", fmt.Errorf("%w: %v", api.ErrSchemaCacheError, err)))
		}
	}
	return nil
}
