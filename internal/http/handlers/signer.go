package handlers

import (
	"errors"
	"net/http"

	httpx "github.com/SWAN-community/owid/internal/http"
	"github.com/SWAN-community/owid/internal/store"
)

// NewSignerHandler sirve GET /owid/api/v1/signer: el JSON público del
// signer hosteado (nunca claves privadas).
func NewSignerHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domain := requestDomain(r)
		if domain == "" {
			httpx.WriteError(w, http.StatusBadRequest, "missing_domain", "no se pudo resolver el dominio del request")
			return
		}

		s, err := d.App.PublicSigner(r.Context(), domain)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, "signer_not_found", "dominio no hosteado")
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, s)
	}
}
