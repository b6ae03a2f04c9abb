package encoder

import "encoding/base64"

// Base64Encoder encodes data as unpadded URL-safe base64 so that tokens can be passed in
// query strings without escaping.
type Base64Encoder struct{}

var _ Encoder = (*Base64Encoder)(nil)

func NewBase64Encoder() *Base64Encoder {
	return &Base64Encoder{}
}

func (e *Base64Encoder) Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func (e *Base64Encoder) Encode(data []byte) (string, error) {
	return base64.RawURLEncoding.EncodeToString(data), nil
}
