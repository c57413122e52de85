package dtype

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarrio/zarrio/api"
)

func TestCodec_FloatNaNInfRoundTrip(t *testing.T) {
	c, err := NewCodec("double")
	require.NoError(t, err)

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 3.5, 0} {
		raw, err := c.EncodeAttr(f)
		require.NoError(t, err)

		got, err := c.DecodeAttr(raw)
		require.NoError(t, err)

		gf, ok := got.(float64)
		require.True(t, ok)
		if math.IsNaN(f) {
			assert.True(t, math.IsNaN(gf))
		} else {
			assert.Equal(t, f, gf)
		}
	}
}

func TestCodec_TextPassthrough(t *testing.T) {
	c, err := NewCodec("text")
	require.NoError(t, err)

	raw, err := c.EncodeAttr("hello")
	require.NoError(t, err)
	got, err := c.DecodeAttr(raw)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestCodec_AsciiBytesUTF8VsBase64(t *testing.T) {
	c, err := NewCodec("ascii")
	require.NoError(t, err)

	raw, err := c.EncodeAttr([]byte("plain text"))
	require.NoError(t, err)
	got, err := c.DecodeAttr(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain text"), got)

	binary := []byte{0xff, 0xfe, 0x00, 0x01}
	raw, err = c.EncodeAttr(binary)
	require.NoError(t, err)
	got, err = c.DecodeAttr(raw)
	require.NoError(t, err)
	assert.Equal(t, binary, got)
}

func TestCodec_ReferenceRoundTrip(t *testing.T) {
	c, err := NewCodec("ref")
	require.NoError(t, err)

	ref := &api.ObjectRef{Source: ".", Path: "/acquisition/e0", ObjectID: "abc-123"}
	raw, err := c.EncodeAttr(ref)
	require.NoError(t, err)

	got, err := c.DecodeAttr(raw)
	require.NoError(t, err)
	decoded, ok := got.(*api.ObjectRef)
	require.True(t, ok)
	assert.Equal(t, ref.Path, decoded.Path)
	assert.Equal(t, ref.ObjectID, decoded.ObjectID)
}

func TestObjectCodec_JSONRoundTrip(t *testing.T) {
	value := map[string]any{"a": 1.0, "b": "x"}

	raw, err := EncodeObject(api.ObjectCodecJSON, value)
	require.NoError(t, err)
	got, err := DecodeObject(api.ObjectCodecJSON, raw)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}
