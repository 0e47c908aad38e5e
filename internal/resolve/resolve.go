// Package resolve implementa la resolución de Signers: el mapa
// (version, domain) -> Signer con memoización in-process y fetch HTTP
// opcional. Es el único punto de I/O de red del sistema.
//
// La clave de lookup es SIEMPRE estructural sobre (version, domain) — un
// string compuesto "v{version}|{domain}" — nunca identidad de objetos: una
// clave recién construida con los mismos campos encuentra la entrada
// cacheada.
package resolve

import (
	"fmt"
)

// cacheKey arma la clave compuesta estructural para (version, domain).
func cacheKey(version byte, domain string) string {
	return fmt.Sprintf("v%d|%s", version, domain)
}

// FetchError indica que el fetch HTTP del signer falló (status no-2xx,
// transporte o JSON inválido).
type FetchError struct {
	Domain string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve: signer fetch failed for %q: %v", e.Domain, e.Err)
	}
	return fmt.Sprintf("resolve: signer fetch failed for %q: status %d", e.Domain, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
