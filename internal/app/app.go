// Package app es la capa de servicio del host de signers: registra
// dominios, rota claves, firma payloads y verifica OWIDs recibidos.
// Los handlers HTTP y los CLIs delegan acá.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SWAN-community/owid/internal/email"
	"github.com/SWAN-community/owid/internal/metrics"
	"github.com/SWAN-community/owid/internal/observability/logger"
	"github.com/SWAN-community/owid/internal/owid"
	"github.com/SWAN-community/owid/internal/security/ecdsa256"
	"github.com/SWAN-community/owid/internal/store"
)

// App agrupa las dependencias del host de signers.
type App struct {
	Store    store.Store
	Resolver owid.SignerService
	Notifier *email.Notifier
}

// New crea la App.
func New(st store.Store, resolver owid.SignerService, notifier *email.Notifier) *App {
	return &App{Store: st, Resolver: resolver, Notifier: notifier}
}

// Register da de alta un signer nuevo para el dominio con su primer par de
// claves. Devuelve el signer completo (con la privada) para que el caller
// decida qué exponer.
func (a *App) Register(ctx context.Context, domain, name, contact, termsURL string) (*owid.Signer, error) {
	priv, pub, err := ecdsa256.Generate()
	if err != nil {
		return nil, err
	}
	privPEM, err := ecdsa256.ExportPrivatePEM(priv)
	if err != nil {
		return nil, err
	}
	pubPEM, err := ecdsa256.ExportPublicPEM(pub)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := &owid.Signer{
		Version:     owid.Version1,
		Domain:      domain,
		Name:        name,
		Email:       contact,
		TermsURL:    termsURL,
		PublicKeys:  []*owid.Key{owid.NewKey(pubPEM, now)},
		PrivateKeys: []*owid.Key{owid.NewKey(privPEM, now)},
	}
	if err := a.Store.Put(ctx, s); err != nil {
		return nil, err
	}

	logger.From(ctx).Info("signer registered",
		logger.Domain(domain),
		logger.KeyCount(1))
	return s, nil
}

// Rotate genera un par de claves nuevo para el dominio y lo agrega al
// historial; las claves anteriores quedan publicadas para seguir
// verificando OWIDs viejos. Devuelve la clave pública nueva y un ID
// generado para esta rotación (el que va a logs y a la notificación); el
// store persiste el par con un ID propio, distinto de éste.
func (a *App) Rotate(ctx context.Context, domain string) (*owid.Key, string, error) {
	s, err := a.Store.Get(ctx, domain)
	if err != nil {
		return nil, "", err
	}

	priv, pub, err := ecdsa256.Generate()
	if err != nil {
		return nil, "", err
	}
	privPEM, err := ecdsa256.ExportPrivatePEM(priv)
	if err != nil {
		return nil, "", err
	}
	pubPEM, err := ecdsa256.ExportPublicPEM(pub)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	pubKey := owid.NewKey(pubPEM, now)
	privKey := owid.NewKey(privPEM, now)
	if err := a.Store.AddKeys(ctx, domain, pubKey, privKey); err != nil {
		return nil, "", err
	}

	keyID := uuid.NewString()
	logger.From(ctx).Info("signing key rotated",
		logger.Domain(domain),
		logger.KeyID(keyID),
		logger.KeyCount(len(s.PublicKeys)+1))
	a.Notifier.KeyRotated(domain, s.Email, keyID, now)
	return pubKey, keyID, nil
}

// PublicSigner devuelve el signer del dominio sin claves privadas, listo
// para servir en el endpoint público.
func (a *App) PublicSigner(ctx context.Context, domain string) (*owid.Signer, error) {
	s, err := a.Store.Get(ctx, domain)
	if err != nil {
		return nil, err
	}
	return s.Public(), nil
}

// Sign crea y firma un OWID sobre el payload con el signer hosteado del
// dominio. Devuelve la forma wire en base64.
func (a *App) Sign(ctx context.Context, domain string, payload []byte) (string, error) {
	s, err := a.Store.Get(ctx, domain)
	if err != nil {
		return "", err
	}
	o, err := s.Sign(&owid.ByteArrayTarget{Value: payload})
	if err != nil {
		return "", fmt.Errorf("app: sign for %s: %w", domain, err)
	}
	encoded, err := o.AsBase64()
	if err != nil {
		return "", err
	}
	metrics.SignTotal.Inc()
	return encoded, nil
}

// Verify decodifica un OWID recibido (base64) junto a su payload y lo
// verifica resolviendo el signer vía el servicio de resolución.
func (a *App) Verify(ctx context.Context, encoded string, payload []byte) (owid.Status, *owid.Signer, error) {
	o, err := owid.FromBase64(&owid.ByteArrayTarget{Value: payload}, encoded)
	if err != nil {
		return owid.StatusException, nil, err
	}
	status, err := o.VerifyWithService(ctx, a.Resolver)
	metrics.VerifyTotal.WithLabelValues(status.String()).Inc()
	if err != nil {
		return status, nil, err
	}
	logger.From(ctx).Debug("owid verified",
		logger.Domain(o.Domain),
		logger.VerifyStatus(status.String()))
	return status, o.Signer(), nil
}
