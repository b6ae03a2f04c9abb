package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase64Empty(t *testing.T) {
	encoder := NewBase64Encoder()

	got, err := encoder.Decode("")
	require.NoError(t, err)
	require.Empty(t, got)

	encoded, err := encoder.Encode([]byte{})
	require.NoError(t, err)
	require.Empty(t, encoded)
}

func TestBase64Encode(t *testing.T) {
	encoder := NewBase64Encoder()

	got, err := encoder.Encode([]byte(`{"list":"title:Tasks","cursor":5001}`))
	require.NoError(t, err)
	require.Equal(t, "eyJsaXN0IjoidGl0bGU6VGFza3MiLCJjdXJzb3IiOjUwMDF9", got)
	require.NotContains(t, got, "=")
}

func TestBase64EncodeDecode(t *testing.T) {
	encoder := NewBase64Encoder()
	want := []byte{0xfb, 0xff, 0x3e, 0x00, 0x7f}

	encoded, err := encoder.Encode(want)
	require.NoError(t, err)
	require.NotContains(t, encoded, "+")
	require.NotContains(t, encoded, "/")

	got, err := encoder.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
