package codec

import "encoding/base64"

// ToBase64 codifica bytes en base64 estándar (RFC 4648).
func ToBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// FromBase64 decodifica base64 estándar (RFC 4648).
func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
