package zstore

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarrio/zarrio/api"
)

func TestOpenCreate_RejectsNonEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Directory, api.Options{Mode: api.ModeCreate})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s.PutMetadata("/", json.RawMessage(`{"zarr_format":2}`))
	require.NoError(t, s.Consolidate())

	_, err = Open(dir, Directory, api.Options{Mode: api.ModeCreate})
	assert.ErrorIs(t, err, api.ErrAlreadyExists)
}

func TestOpenRead_MissingFails(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, Directory, api.Options{Mode: api.ModeRead})
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestConsolidate_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Directory, api.Options{Mode: api.ModeCreate})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	s.PutMetadata("/", json.RawMessage(`{"zarr_format":2}`))
	s.PutMetadata("/g1", json.RawMessage(`{"zarr_format":2}`))
	s.PutMetadata("/g1/d1", json.RawMessage(`{"zarr_format":2,"shape":[2,2]}`))
	require.NoError(t, s.Consolidate())

	idx, ok := s.ReadConsolidated()
	require.True(t, ok)
	assert.Equal(t, []string{"/", "/g1", "/g1/d1"}, sortedPaths(idx))
}

func TestConsolidate_GrowsArenaWhenPayloadGrows(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Directory, api.Options{Mode: api.ModeCreate})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	s.PutMetadata("/", json.RawMessage(`{"zarr_format":2}`))
	require.NoError(t, s.Consolidate())

	for i := 0; i < 200; i++ {
		s.PutMetadata(fmt.Sprintf("%c%d/dataset", 'a'+i%26, i), json.RawMessage(`{"zarr_format":2,"shape":[100,100],"chunks":[10,10],"dtype":"<f8"}`))
	}
	require.NoError(t, s.Consolidate())

	idx, ok := s.ReadConsolidated()
	require.True(t, ok)
	assert.True(t, len(idx.Metadata) > 100)
}

func TestChunkPath_NestedVsFlat(t *testing.T) {
	flat := &Store{kind: Directory}
	nested := &Store{kind: NestedDirectory}

	assert.Equal(t, "big/1.2", flat.ChunkPath("big", []int{1, 2}))
	assert.Equal(t, "big/1/2", nested.ChunkPath("big", []int{1, 2}))
}
