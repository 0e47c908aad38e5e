// Package handlers implementa los endpoints HTTP del host de signers.
package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/SWAN-community/owid/internal/app"
)

// Deps agrupa las dependencias compartidas por los handlers.
type Deps struct {
	App *app.App
}

// requestDomain resuelve el dominio objetivo de un request: query param
// explícito primero, si no el Host del request (sin puerto). El endpoint
// del signer vive en el propio dominio del firmante, así que el Host es el
// default natural.
func requestDomain(r *http.Request) string {
	if d := strings.TrimSpace(r.URL.Query().Get("domain")); d != "" {
		return d
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSpace(host))
}
