// Package email notifica por SMTP eventos del ciclo de vida de claves al
// contacto del signer (rotaciones). Si no hay SMTP configurado es un no-op.
package email

import (
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/SWAN-community/owid/internal/observability/logger"
)

// Config configura el notifier SMTP.
type Config struct {
	Enabled            bool
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	InsecureSkipVerify bool // sólo dev
}

// Notifier envía emails de notificación. El zero value (o Enabled=false)
// es un no-op seguro.
type Notifier struct {
	cfg Config
}

// New crea un Notifier con la configuración dada.
func New(cfg Config) *Notifier {
	return &Notifier{cfg: cfg}
}

// KeyRotated avisa al contacto del signer que se agregó una clave nueva a
// su historial. Errores de SMTP se loguean y no cortan la rotación.
func (n *Notifier) KeyRotated(domain, to, keyID string, created time.Time) {
	if n == nil || !n.cfg.Enabled || to == "" {
		return
	}

	subject := fmt.Sprintf("OWID signing key rotated for %s", domain)
	text := fmt.Sprintf(
		"A new OWID signing key was added for %s.\n\nKey ID: %s\nCreated: %s\n\nOlder keys remain published for verification of previously signed OWIDs.\n",
		domain, keyID, created.UTC().Format(time.RFC3339),
	)

	m := mail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)

	d := mail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         n.cfg.Host,
		InsecureSkipVerify: n.cfg.InsecureSkipVerify, // sólo dev
	}

	if err := d.DialAndSend(m); err != nil {
		logger.Named("email").Warn("rotation notification failed",
			logger.Domain(domain),
			logger.Err(err))
		return
	}
	logger.Named("email").Info("rotation notification sent",
		logger.Domain(domain),
		logger.KeyID(keyID))
}
