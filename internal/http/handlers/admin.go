package handlers

import (
	"errors"
	"net/http"
	"time"

	httpx "github.com/SWAN-community/owid/internal/http"
	"github.com/SWAN-community/owid/internal/store"
)

type registerRequest struct {
	Domain   string `json:"domain"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	TermsURL string `json:"termsURL"`
}

// NewAdminRegisterHandler sirve POST /owid/api/v1/admin/signer: da de alta
// un signer nuevo con su primer par de claves.
func NewAdminRegisterHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		if req.Domain == "" {
			httpx.WriteError(w, http.StatusBadRequest, "missing_domain", "domain es requerido")
			return
		}

		s, err := d.App.Register(r.Context(), req.Domain, req.Name, req.Email, req.TermsURL)
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				httpx.WriteError(w, http.StatusConflict, "already_exists", "dominio ya hosteado")
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "register_failed", "")
			return
		}
		// Sólo la vista pública sale por la API.
		httpx.WriteJSON(w, http.StatusCreated, s.Public())
	}
}

type rotateRequest struct {
	Domain string `json:"domain"`
}

type rotateResponse struct {
	Domain  string    `json:"domain"`
	KeyID   string    `json:"keyId"`
	PEM     string    `json:"pem"` // clave pública nueva
	Created time.Time `json:"created"`
}

// NewAdminRotateHandler sirve POST /owid/api/v1/admin/rotate: agrega un
// par de claves nuevo al historial del dominio.
func NewAdminRotateHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rotateRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		if req.Domain == "" {
			httpx.WriteError(w, http.StatusBadRequest, "missing_domain", "domain es requerido")
			return
		}

		pub, keyID, err := d.App.Rotate(r.Context(), req.Domain)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, "signer_not_found", "dominio no hosteado")
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "rotate_failed", "")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rotateResponse{
			Domain:  req.Domain,
			KeyID:   keyID,
			PEM:     pub.PEM,
			Created: pub.Created,
		})
	}
}
