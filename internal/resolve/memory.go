package resolve

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/SWAN-community/owid/internal/owid"
)

// Memory es la variante en memoria del servicio de resolución: un mapa
// asociativo sin red. El delay sintético opcional suspende al caller antes
// de responder (para tests y modelado de latencia). Un miss devuelve
// (nil, nil): signer genuinamente desconocido.
//
// Seguro para Get concurrente.
type Memory struct {
	c     *gocache.Cache
	delay time.Duration
}

// NewMemory crea la variante en memoria. delay 0 responde inmediato.
func NewMemory(delay time.Duration) *Memory {
	return &Memory{
		c:     gocache.New(gocache.NoExpiration, 0),
		delay: delay,
	}
}

// Add registra un Signer bajo su (version, domain).
func (m *Memory) Add(s *owid.Signer) {
	m.c.Set(cacheKey(s.Version, s.Domain), s, gocache.NoExpiration)
}

// Get implementa owid.SignerService.
func (m *Memory) Get(ctx context.Context, version byte, domain string) (*owid.Signer, error) {
	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if v, ok := m.c.Get(cacheKey(version, domain)); ok {
		return v.(*owid.Signer), nil
	}
	return nil, nil
}
