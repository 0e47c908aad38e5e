package owid

import "context"

// Signer describe una entidad firmante identificada por dominio DNS: la
// versión de OWID que emite, metadata humana de contacto y su historial
// ordenado de claves. PublicKeys alcanza para verificar; PrivateKeys sólo
// está poblado del lado que firma (nunca viaja por la API pública).
type Signer struct {
	Version     byte   `json:"version" yaml:"version"`
	Domain      string `json:"domain" yaml:"domain"`
	Name        string `json:"name" yaml:"name"`
	Email       string `json:"email" yaml:"email"`
	TermsURL    string `json:"termsURL" yaml:"termsURL"`
	PublicKeys  []*Key `json:"publicKeys" yaml:"publicKeys"`
	PrivateKeys []*Key `json:"privateKeys,omitempty" yaml:"privateKeys,omitempty"`
}

// NewestPrivateKey devuelve la clave privada más nueva por Created.
// Empates se resuelven por orden de lista (gana la primera). Falla
// ErrNoPrivateKey si el historial privado está vacío.
func (s *Signer) NewestPrivateKey() (*Key, error) {
	if len(s.PrivateKeys) == 0 {
		return nil, ErrNoPrivateKey
	}
	newest := s.PrivateKeys[0]
	for _, k := range s.PrivateKeys[1:] {
		if k.Created.After(newest.Created) {
			newest = k
		}
	}
	return newest, nil
}

// Public devuelve una copia del Signer sin claves privadas, apta para
// servir en el endpoint público.
func (s *Signer) Public() *Signer {
	return &Signer{
		Version:    s.Version,
		Domain:     s.Domain,
		Name:       s.Name,
		Email:      s.Email,
		TermsURL:   s.TermsURL,
		PublicKeys: s.PublicKeys,
	}
}

// Sign crea un OWID para el target y lo firma con este Signer.
func (s *Signer) Sign(target Target) (*OWID, error) {
	o := New(target)
	if err := o.SignWithSigner(s); err != nil {
		return nil, err
	}
	return o, nil
}

// SignerService resuelve Signers por (version, domain). Es el único punto
// de I/O de red del core; las implementaciones viven en internal/resolve.
// Un signer genuinamente desconocido se reporta como (nil, nil), no como
// error.
type SignerService interface {
	Get(ctx context.Context, version byte, domain string) (*Signer, error)
}
