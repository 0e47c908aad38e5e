package owid

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/SWAN-community/owid/internal/security/ecdsa256"
)

// Key es una clave de un Signer: el PEM (SPKI pública o PKCS#8 privada) y
// su instante de creación. La clave crypto materializada se cachea de forma
// lazy; el cache se invalida solo si el PEM cambia. La materialización
// PEM -> crypto key es determinística, así que una carrera benigna sobre el
// cache es aceptable (gana la primera).
type Key struct {
	PEM     string    `json:"pem" yaml:"pem"`
	Created time.Time `json:"created" yaml:"created"`

	mu        sync.Mutex
	cachedPEM string
	cached    any
}

// NewKey crea una Key con el PEM y fecha de creación dados.
func NewKey(pem string, created time.Time) *Key {
	return &Key{PEM: pem, Created: created}
}

// CryptoKey materializa (y cachea) la clave crypto del PEM. Si el PEM
// cambió desde la última materialización, el cache se descarta.
func (k *Key) CryptoKey() (any, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cached != nil && k.cachedPEM == k.PEM {
		return k.cached, nil
	}
	ck, err := ecdsa256.ImportPEM(k.PEM)
	if err != nil {
		return nil, err
	}
	k.cached = ck
	k.cachedPEM = k.PEM
	return ck, nil
}

// keyJSON es la forma wire de una Key (sin el cache interno).
type keyJSON struct {
	PEM     string    `json:"pem"`
	Created time.Time `json:"created"`
}

// MarshalJSON serializa pem y created; el cache nunca viaja.
func (k *Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyJSON{PEM: k.PEM, Created: k.Created})
}

// UnmarshalJSON reconstruye la Key como objeto de primera clase para que
// la materialización lazy funcione sobre claves recibidas por HTTP.
func (k *Key) UnmarshalJSON(data []byte) error {
	var v keyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	k.PEM = v.PEM
	k.Created = v.Created
	k.cached = nil
	k.cachedPEM = ""
	return nil
}
