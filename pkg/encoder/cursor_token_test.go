package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openfga/listquery/pkg/storage"
)

func TestCursorTokenSerializer(t *testing.T) {
	for name, enc := range map[string]Encoder{
		"base64": nil,
		"noop":   NoopEncoder{},
	} {
		t.Run(name, func(t *testing.T) {
			s := NewCursorTokenSerializer(enc)
			want := CursorToken{List: "title:Tasks", Cursor: 5001, Advanced: true}

			token, err := s.Serialize(want)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			got, err := s.Deserialize(token, "title:Tasks")
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestCursorTokenSerializerRejects(t *testing.T) {
	s := NewCursorTokenSerializer(nil)

	token, err := s.Serialize(CursorToken{List: "title:Tasks", Cursor: 5001})
	require.NoError(t, err)

	_, err = s.Deserialize(token, "title:Orders")
	require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)

	_, err = s.Deserialize("%%%", "title:Tasks")
	require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)

	notJSON, err := NewBase64Encoder().Encode([]byte("5001"))
	require.NoError(t, err)
	_, err = s.Deserialize(notJSON, "title:Tasks")
	require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)

	negative, err := s.Serialize(CursorToken{List: "title:Tasks", Cursor: -1})
	require.NoError(t, err)
	_, err = s.Deserialize(negative, "title:Tasks")
	require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)
}
