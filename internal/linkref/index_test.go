package linkref

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReverseIndex_RebuildAndQuery(t *testing.T) {
	idx, err := NewReverseIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	require.NoError(t, idx.Rebuild(map[string][]string{
		"obj-1": {"/a/b", "/a/c"},
		"obj-2": {"/a/c"},
	}))

	var count int
	require.NoError(t, idx.db.QueryRow("SELECT count(*) FROM path_ids").Scan(&count))
	require.Equal(t, 2, count)

	require.NoError(t, idx.db.QueryRow("SELECT count(*) FROM object_refs").Scan(&count))
	require.Equal(t, 2, count)
}
