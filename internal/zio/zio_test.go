package zio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/linkref"
	"github.com/zarrio/zarrio/internal/zstore"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	store, err := zstore.Open(dir, zstore.Directory, api.Options{Mode: api.ModeCreate})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewEngine(store, linkref.NewEngine(64))
}

func TestWriteReadRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	root := api.NewGroupBuilder("root")
	root.ObjectID = "root-id"
	require.NoError(t, root.SetAttr("session_description", "a test session"))

	acq := api.NewGroupBuilder("acquisition")
	root.AddGroup(acq)

	ds := api.NewDatasetBuilder("data", &api.ScalarValue{DType: api.DFloat64, V: 3.5})
	require.NoError(t, ds.SetAttr("unit", "volts"))
	acq.AddDataset(ds)

	require.NoError(t, e.Write(root, api.DefaultOptions()))

	got, err := e.Read("/", api.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "root-id", got.ObjectID)

	child, ok := got.Groups.Get("acquisition")
	require.True(t, ok)
	dsGot, ok := child.Datasets.Get("data")
	require.True(t, ok)
	scalar, ok := dsGot.Value.(*api.ScalarValue)
	require.True(t, ok)
	assert.InDelta(t, 3.5, scalar.V.(float64), 1e-9)
}

func TestAppend_ConflictingAttributeFails(t *testing.T) {
	e := newTestEngine(t)

	root := api.NewGroupBuilder("root")
	require.NoError(t, root.SetAttr("session_description", "first"))
	require.NoError(t, e.Write(root, api.DefaultOptions()))

	again := api.NewGroupBuilder("root")
	require.NoError(t, again.SetAttr("session_description", "second"))
	err := e.Append(again, api.DefaultOptions())
	assert.ErrorIs(t, err, api.ErrAttributeConflict)
}

func TestAppend_IdenticalAttributeIsNoOp(t *testing.T) {
	e := newTestEngine(t)

	root := api.NewGroupBuilder("root")
	require.NoError(t, root.SetAttr("session_description", "same"))
	require.NoError(t, e.Write(root, api.DefaultOptions()))

	again := api.NewGroupBuilder("root")
	require.NoError(t, again.SetAttr("session_description", "same"))
	require.NoError(t, e.Append(again, api.DefaultOptions()))
}
