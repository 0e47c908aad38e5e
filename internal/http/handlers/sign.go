package handlers

import (
	"errors"
	"net/http"

	"github.com/SWAN-community/owid/internal/codec"
	httpx "github.com/SWAN-community/owid/internal/http"
	"github.com/SWAN-community/owid/internal/store"
)

type signRequest struct {
	Domain  string `json:"domain"`
	Payload string `json:"payload"` // base64
}

type signResponse struct {
	OWID string `json:"owid"` // forma wire en base64
}

// NewSignHandler sirve POST /owid/api/v1/sign: firma el payload con el
// signer hosteado y devuelve el OWID serializado.
func NewSignHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		domain := req.Domain
		if domain == "" {
			domain = requestDomain(r)
		}
		payload, err := codec.FromBase64(req.Payload)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_payload", "payload debe ser base64")
			return
		}

		encoded, err := d.App.Sign(r.Context(), domain, payload)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, "signer_not_found", "dominio no hosteado")
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "sign_failed", "")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, signResponse{OWID: encoded})
	}
}
