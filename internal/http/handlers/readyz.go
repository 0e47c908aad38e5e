package handlers

import (
	"context"
	"net/http"
	"time"

	httpx "github.com/SWAN-community/owid/internal/http"
	"github.com/SWAN-community/owid/internal/store"
)

// NewReadyzHandler sirve GET /readyz: verifica que el store responda.
func NewReadyzHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := st.List(ctx); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
