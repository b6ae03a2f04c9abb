package encoder

import (
	"encoding/json"

	"github.com/openfga/listquery/pkg/storage"
)

// CursorToken is the state needed to resume a paginated retrieval: the list it belongs to,
// the store cursor of the next page and whether the cursor has already been advanced once.
type CursorToken struct {
	List     string `json:"list"`
	Cursor   int    `json:"cursor"`
	Advanced bool   `json:"advanced,omitempty"`
}

// CursorTokenSerializer turns cursor tokens into opaque strings and back.
type CursorTokenSerializer struct {
	encoder Encoder
}

// NewCursorTokenSerializer returns a serializer that encodes the JSON form of a token with
// the given encoder. A nil encoder means base64.
func NewCursorTokenSerializer(encoder Encoder) *CursorTokenSerializer {
	if encoder == nil {
		encoder = NewBase64Encoder()
	}
	return &CursorTokenSerializer{encoder: encoder}
}

func (s *CursorTokenSerializer) Serialize(token CursorToken) (string, error) {
	data, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	return s.encoder.Encode(data)
}

// Deserialize decodes a token produced by Serialize. Any malformed input, or a token issued
// for a different list than expectedList, yields storage.ErrInvalidContinuationToken.
func (s *CursorTokenSerializer) Deserialize(token string, expectedList string) (CursorToken, error) {
	data, err := s.encoder.Decode(token)
	if err != nil {
		return CursorToken{}, storage.ErrInvalidContinuationToken
	}

	var t CursorToken
	if err := json.Unmarshal(data, &t); err != nil {
		return CursorToken{}, storage.ErrInvalidContinuationToken
	}
	if t.List != expectedList || t.Cursor < 0 {
		return CursorToken{}, storage.ErrInvalidContinuationToken
	}
	return t, nil
}
