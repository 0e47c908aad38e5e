package handlers

import (
	"errors"
	"net/http"

	"github.com/SWAN-community/owid/internal/codec"
	httpx "github.com/SWAN-community/owid/internal/http"
	"github.com/SWAN-community/owid/internal/owid"
	"github.com/SWAN-community/owid/internal/resolve"
)

type verifyRequest struct {
	OWID    string `json:"owid"`    // forma wire en base64
	Payload string `json:"payload"` // base64 del target
}

type verifyResponse struct {
	Status string        `json:"status"`
	Signer *signerSummary `json:"signer,omitempty"`
}

type signerSummary struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// NewVerifyHandler sirve POST /owid/api/v1/verify: decodifica el OWID
// recibido y lo verifica resolviendo el signer de su dominio.
func NewVerifyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		payload, err := codec.FromBase64(req.Payload)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_payload", "payload debe ser base64")
			return
		}

		status, signer, err := d.App.Verify(r.Context(), req.OWID, payload)
		if err != nil {
			var unsupported *owid.UnsupportedVersionError
			var fetchErr *resolve.FetchError
			switch {
			case errors.As(err, &unsupported):
				httpx.WriteError(w, http.StatusBadRequest, "unsupported_version", unsupported.Error())
			case errors.As(err, &fetchErr):
				httpx.WriteError(w, http.StatusBadGateway, "signer_fetch_failed", fetchErr.Error())
			case errors.Is(err, codec.ErrTruncated), errors.Is(err, codec.ErrBadSignatureLength):
				httpx.WriteError(w, http.StatusBadRequest, "invalid_owid", "owid truncado o mal formado")
			default:
				httpx.WriteError(w, http.StatusBadRequest, "invalid_owid", "")
			}
			return
		}

		resp := verifyResponse{Status: status.String()}
		if signer != nil {
			resp.Signer = &signerSummary{Domain: signer.Domain, Name: signer.Name}
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
