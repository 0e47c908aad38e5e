// Package codec provee la serialización binaria canónica de OWID.
//
// Todos los enteros multi-byte son little-endian. Los strings se escriben
// un byte por code unit UTF-16 (low 8 bits) terminados en 0x00; este es el
// formato histórico del wire y NO es UTF-8 (ver DESIGN.md). La misma
// secuencia de bytes se usa en el wire y como mensaje de firma: cualquier
// divergencia rompe interop.
package codec

import "errors"

// Errores del codec.
var (
	ErrOutOfRange         = errors.New("codec: value out of range")
	ErrEmptyString        = errors.New("codec: empty string")
	ErrTooLong            = errors.New("codec: list exceeds 16-bit count")
	ErrBadSignatureLength = errors.New("codec: signature must be exactly 64 bytes")
	ErrTruncated          = errors.New("codec: unexpected end of data")
)

// SignatureLength es el tamaño fijo de una firma r||s P-256.
const SignatureLength = 64
