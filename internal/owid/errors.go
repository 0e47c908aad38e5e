package owid

import (
	"errors"
	"fmt"
)

// Errores fatales del dominio. Un mismatch de firma o una clave/signer no
// encontrados NO son errores: son estados terminales (ver Status).
var (
	ErrNoTarget     = errors.New("owid: no target set")
	ErrNoDomain     = errors.New("owid: no domain set")
	ErrNoPrivateKey = errors.New("owid: signer has no private keys")
)

// UnsupportedVersionError indica un byte de versión desconocido en el wire.
type UnsupportedVersionError struct {
	Version byte
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("owid: unsupported version %d", e.Version)
}

// DomainMismatchError indica que el dominio del signer no coincide con el
// del OWID al verificar.
type DomainMismatchError struct {
	OWID   string
	Signer string
}

func (e *DomainMismatchError) Error() string {
	return fmt.Sprintf("owid: signer domain %q does not match owid domain %q", e.Signer, e.OWID)
}
