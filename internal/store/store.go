// Package store persiste los signers hosteados por este proceso: su
// metadata y el historial completo de claves. Las claves privadas se
// cifran en reposo con secretbox cuando OWID_MASTER_KEY está presente.
//
// Drivers: "file" (YAML por dominio, escritura atómica) y "postgres"
// (pgx). Ambos devuelven los signers con las privadas ya descifradas.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/SWAN-community/owid/internal/owid"
	"github.com/SWAN-community/owid/internal/security/secretbox"
)

var (
	// ErrNotFound indica que el dominio no está hosteado en este store.
	ErrNotFound = errors.New("store: signer not found")

	// ErrAlreadyExists indica un alta duplicada de dominio.
	ErrAlreadyExists = errors.New("store: signer already exists")
)

// Store es el contrato de persistencia de signers hosteados.
type Store interface {
	// Get devuelve el signer del dominio con sus claves privadas
	// descifradas. ErrNotFound si no está hosteado.
	Get(ctx context.Context, domain string) (*owid.Signer, error)

	// Put da de alta un signer completo. ErrAlreadyExists si el dominio
	// ya está hosteado.
	Put(ctx context.Context, s *owid.Signer) error

	// AddKeys agrega un par (pública, privada) al historial del dominio.
	// Las claves viejas se conservan: siguen haciendo falta para
	// verificar OWIDs firmados antes de la rotación.
	AddKeys(ctx context.Context, domain string, pub, priv *owid.Key) error

	// List devuelve los dominios hosteados.
	List(ctx context.Context) ([]string, error)

	// Close libera recursos del driver.
	Close() error
}

// Config selecciona e inicializa el driver.
type Config struct {
	Driver string // "file" | "postgres"
	File   struct {
		Dir string
	}
	DSN string
}

// Open crea el Store según la configuración.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPG(ctx, cfg.DSN)
	case "file", "":
		return NewFile(cfg.File.Dir)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// encryptPEM cifra un PEM privado si hay clave maestra; si no, lo deja en
// claro y lo marca.
func encryptPEM(pem string) (value string, encrypted bool, err error) {
	if !secretbox.Ready() {
		return pem, false, nil
	}
	ct, err := secretbox.Encrypt(pem)
	if err != nil {
		return "", false, err
	}
	return ct, true, nil
}

// decryptPEM deshace encryptPEM.
func decryptPEM(value string, encrypted bool) (string, error) {
	if !encrypted {
		return value, nil
	}
	return secretbox.Decrypt(value)
}

// newKeyID genera el ID estable de un par de claves en el historial.
func newKeyID() string {
	return uuid.NewString()
}
