package export

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/linkref"
	"github.com/zarrio/zarrio/internal/zio"
	"github.com/zarrio/zarrio/internal/zstore"
)

// fakeSource adapts an in-memory builder tree into export.Source, with
// optional per-path chunking hints.
type fakeSource struct {
	root   *api.GroupBuilder
	name   string
	hints  map[string][]int
}

func (f *fakeSource) Root() (*api.GroupBuilder, error) { return f.root, nil }
func (f *fakeSource) SourceName() string               { return f.name }
func (f *fakeSource) ChunkingHint(path string) ([]int, string, bool) {
	cs, ok := f.hints[path]
	return cs, "", ok
}

func (f *fakeSource) Walk(fn func(path string, node any) error) error {
	return walkGroup("/", f.root, fn)
}

func walkGroup(p string, g *api.GroupBuilder, fn func(path string, node any) error) error {
	if err := fn(p, g); err != nil {
		return err
	}
	for pair := g.Groups.Oldest(); pair != nil; pair = pair.Next() {
		if err := walkGroup(pathJoin(p, pair.Key), pair.Value, fn); err != nil {
			return err
		}
	}
	for pair := g.Datasets.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pathJoin(p, pair.Key), pair.Value); err != nil {
			return err
		}
	}
	return nil
}

func pathJoin(p, name string) string {
	if p == "/" {
		return "/" + name
	}
	return p + "/" + name
}

func newDestStore(t *testing.T) *zstore.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := zstore.Open(dir, zstore.Directory, api.Options{Mode: api.ModeCreate})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestExport_CopiesTreeAndAttributes(t *testing.T) {
	root := api.NewGroupBuilder("root")
	root.ObjectID = "root-id"
	require.NoError(t, root.SetAttr("session_description", "exported session"))

	ds := api.NewDatasetBuilder("data", &api.ScalarValue{DType: api.DFloat64, V: 1.25})
	root.AddDataset(ds)

	src := &fakeSource{root: root, name: "exported.zarr"}
	dst := newDestStore(t)

	require.NoError(t, Export(src, dst, api.DefaultOptions()))

	engine := zio.NewEngine(dst, linkref.NewEngine(64))
	got, err := engine.Read("/", api.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "root-id", got.ObjectID)

	desc, ok := got.Attributes.Get("session_description")
	require.True(t, ok)
	assert.Equal(t, "exported session", desc)

	dsGot, ok := got.Datasets.Get("data")
	require.True(t, ok)
	scalar, ok := dsGot.Value.(*api.ScalarValue)
	require.True(t, ok)
	assert.InDelta(t, 1.25, scalar.V.(float64), 1e-9)
}

func TestExport_RewritesInternalLinkSource(t *testing.T) {
	root := api.NewGroupBuilder("root")
	target := &api.ObjectRef{Source: "exported.zarr", Path: "/data", ObjectID: "data-id"}
	root.AddLink(api.NewLinkBuilder("alias", target, true))
	ds := api.NewDatasetBuilder("data", &api.ScalarValue{DType: api.DInt32, V: int32(7)})
	ds.ObjectID = "data-id"
	root.AddDataset(ds)

	src := &fakeSource{root: root, name: "exported.zarr"}
	dst := newDestStore(t)

	require.NoError(t, Export(src, dst, api.DefaultOptions()))

	engine := zio.NewEngine(dst, linkref.NewEngine(64))
	got, err := engine.Read("/", api.DefaultOptions())
	require.NoError(t, err)

	link, ok := got.Links.Get("alias")
	require.True(t, ok)
	assert.Equal(t, ".", link.Target.Source)
}

func TestExport_LeavesTrulyExternalLinkUntouched(t *testing.T) {
	root := api.NewGroupBuilder("root")
	target := &api.ObjectRef{Source: "other.zarr", Path: "/elsewhere", ObjectID: "elsewhere-id"}
	root.AddLink(api.NewLinkBuilder("remote", target, true))

	src := &fakeSource{root: root, name: "exported.zarr"}
	dst := newDestStore(t)

	require.NoError(t, Export(src, dst, api.DefaultOptions()))

	engine := zio.NewEngine(dst, linkref.NewEngine(64))
	got, err := engine.Read("/", api.DefaultOptions())
	require.NoError(t, err)

	link, ok := got.Links.Get("remote")
	require.True(t, ok)
	assert.Equal(t, "other.zarr", link.Target.Source)
}

func TestExport_RewritesReferenceValueAndAttribute(t *testing.T) {
	root := api.NewGroupBuilder("root")

	target := &api.ObjectRef{Source: "exported.zarr", Path: "/data", ObjectID: "data-id"}
	ds := api.NewDatasetBuilder("data", &api.ScalarValue{DType: api.DInt32, V: int32(7)})
	ds.ObjectID = "data-id"
	root.AddDataset(ds)

	refs := api.NewDatasetBuilder("refs", &api.ReferenceValue{
		Shape: []int{1},
		Refs:  []*api.ObjectRef{{Source: "exported.zarr", Path: "/data", ObjectID: "data-id"}},
	})
	require.NoError(t, refs.SetAttr("points_to", target))
	root.AddDataset(refs)

	src := &fakeSource{root: root, name: "exported.zarr"}
	dst := newDestStore(t)

	require.NoError(t, Export(src, dst, api.DefaultOptions()))

	engine := zio.NewEngine(dst, linkref.NewEngine(64))
	got, err := engine.Read("/", api.DefaultOptions())
	require.NoError(t, err)

	refsGot, ok := got.Datasets.Get("refs")
	require.True(t, ok)
	refVal, ok := refsGot.Value.(*api.ReferenceValue)
	require.True(t, ok)
	require.Len(t, refVal.Refs, 1)
	assert.Equal(t, ".", refVal.Refs[0].Source)

	f, err := dst.FS().Open("/refs/.zattrs")
	require.NoError(t, err)
	raw, err := io.ReadAll(f)
	require.NoError(t, err)
	_ = f.Close()

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &flat))
	var pointsTo map[string]any
	require.NoError(t, json.Unmarshal(flat["points_to"], &pointsTo))
	assert.Equal(t, ".", pointsTo["source"])
}

func TestExport_InheritsChunkingHint(t *testing.T) {
	root := api.NewGroupBuilder("root")
	arr := &api.ArrayValue{DType: api.DFloat32, Shape: []int{4}, Data: []float32{1, 2, 3, 4}, ChunkShape: []int{4}}
	root.AddDataset(api.NewDatasetBuilder("series", arr))

	src := &fakeSource{
		root:  root,
		name:  "exported.zarr",
		hints: map[string][]int{"/series": {2}},
	}
	dst := newDestStore(t)

	require.NoError(t, Export(src, dst, api.DefaultOptions()))

	engine := zio.NewEngine(dst, linkref.NewEngine(64))
	got, err := engine.Read("/", api.DefaultOptions())
	require.NoError(t, err)
	ds, ok := got.Datasets.Get("series")
	require.True(t, ok)
	arr, ok := ds.Value.(*api.ArrayValue)
	require.True(t, ok)
	assert.Equal(t, []int{2}, arr.ChunkShape)
}
