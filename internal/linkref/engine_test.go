package linkref

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarrio/zarrio/api"
)

type fakeReader struct {
	mu    sync.Mutex
	calls int
	objID string
	value api.Value
	err   error
}

func (f *fakeReader) ObjectIDAt(path string) (string, bool) { return f.objID, f.objID != "" }

func (f *fakeReader) ReadValueAt(ctx context.Context, path string) (api.Value, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.value, f.err
}

func TestProxy_ResolvesOnce(t *testing.T) {
	reader := &fakeReader{objID: "obj-1", value: &api.ScalarValue{DType: api.DInt32, V: int32(7)}}
	engine := NewEngine(16)
	engine.RegisterSource("acquisition.nwb", reader)

	proxy := engine.NewProxy(&api.ObjectRef{Source: "acquisition.nwb", Path: "/a/b", ObjectID: "obj-1"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := proxy.Resolve(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, StateResolved, proxy.State())
}

func TestEngine_UnregisteredSourceIsExternalUnavailable(t *testing.T) {
	engine := NewEngine(16)
	proxy := engine.NewProxy(&api.ObjectRef{Source: "other.nwb", Path: "/x"})

	_, err := proxy.Resolve(context.Background())
	assert.ErrorIs(t, err, api.ErrExternalUnavailable)
	assert.Equal(t, StateFailed, proxy.State())
}

func TestRelativeSource(t *testing.T) {
	assert.Equal(t, ".", RelativeSource("a.nwb", "a.nwb"))
	assert.Equal(t, "b.nwb", RelativeSource("a.nwb", "b.nwb"))
}
