package middlewares

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// WithAdminAuth protege las rutas administrativas con un bearer JWT HS256
// firmado con el secreto compartido. Sin secreto configurado, el área
// admin queda deshabilitada.
func WithAdminAuth(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeAuthError(w, http.StatusServiceUnavailable, "admin_disabled", "admin.jwt_secret no configurado")
				return
			}

			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(auth, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "falta bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			tok, err := jwtv5.Parse(raw, func(t *jwtv5.Token) (any, error) {
				return []byte(secret), nil
			}, jwtv5.WithValidMethods([]string{"HS256"}))
			if err != nil || !tok.Valid {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "token inválido o vencido")
				return
			}
			if mc, ok := tok.Claims.(jwtv5.MapClaims); ok {
				if scope, _ := mc["scope"].(string); scope != "admin" {
					writeAuthError(w, http.StatusForbidden, "forbidden", "scope admin requerido")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IssueAdminToken emite un token admin HS256 (usado por el CLI).
func IssueAdminToken(secret string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwtv5.MapClaims{
		"scope": "admin",
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tk.SignedString([]byte(secret))
}

// writeAuthError evita importar el paquete http padre (ciclo).
func writeAuthError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": desc,
	})
}
