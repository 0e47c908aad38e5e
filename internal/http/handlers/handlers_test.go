package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWAN-community/owid/internal/app"
	"github.com/SWAN-community/owid/internal/email"
	"github.com/SWAN-community/owid/internal/http/handlers"
	"github.com/SWAN-community/owid/internal/http/middlewares"
	"github.com/SWAN-community/owid/internal/http/router"
	"github.com/SWAN-community/owid/internal/owid"
	"github.com/SWAN-community/owid/internal/resolve"
	"github.com/SWAN-community/owid/internal/store"
)

const adminSecret = "test-admin-secret"

type fixture struct {
	srv      *httptest.Server
	store    store.Store
	resolver *resolve.Memory
	token    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var cfg store.Config
	cfg.Driver = "file"
	cfg.File.Dir = t.TempDir()
	st, err := store.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	resolver := resolve.NewMemory(0)
	a := app.New(st, resolver, email.New(email.Config{}))

	h := router.New(router.Config{
		Deps:           handlers.Deps{App: a},
		Store:          st,
		AdminJWTSecret: adminSecret,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	token, err := middlewares.IssueAdminToken(adminSecret, time.Minute)
	require.NoError(t, err)

	return &fixture{srv: srv, store: st, resolver: resolver, token: token}
}

func (f *fixture) post(t *testing.T, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (f *fixture) register(t *testing.T, domain string) {
	t.Helper()
	resp, body := f.post(t, "/owid/api/v1/admin/signer", map[string]string{
		"domain": domain,
		"name":   "Example Org",
		"email":  "ops@" + domain,
	}, f.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// El verify resuelve vía el cache en memoria del fixture.
	s, err := f.store.Get(context.Background(), domain)
	require.NoError(t, err)
	f.resolver.Add(s.Public())
}

func TestSignerEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, "example.test")

	resp, err := http.Get(f.srv.URL + "/owid/api/v1/signer?domain=example.test")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s owid.Signer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, "example.test", s.Domain)
	assert.NotEmpty(t, s.PublicKeys)
	// Las privadas jamás salen por la API pública.
	assert.Empty(t, s.PrivateKeys)
}

func TestSignerEndpoint_UnknownDomain(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/owid/api/v1/signer?domain=nope.test")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSignThenVerify(t *testing.T) {
	f := newFixture(t)
	f.register(t, "example.test")

	payload := base64.StdEncoding.EncodeToString([]byte("example test"))
	resp, body := f.post(t, "/owid/api/v1/sign", map[string]string{
		"domain":  "example.test",
		"payload": payload,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var signResp struct {
		OWID string `json:"owid"`
	}
	require.NoError(t, json.Unmarshal(body, &signResp))
	require.NotEmpty(t, signResp.OWID)

	resp, body = f.post(t, "/owid/api/v1/verify", map[string]string{
		"owid":    signResp.OWID,
		"payload": payload,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var verifyResp struct {
		Status string `json:"status"`
		Signer *struct {
			Domain string `json:"domain"`
		} `json:"signer"`
	}
	require.NoError(t, json.Unmarshal(body, &verifyResp))
	assert.Equal(t, "valid", verifyResp.Status)
	require.NotNil(t, verifyResp.Signer)
	assert.Equal(t, "example.test", verifyResp.Signer.Domain)
}

func TestVerify_TamperedPayload(t *testing.T) {
	f := newFixture(t)
	f.register(t, "example.test")

	payload := base64.StdEncoding.EncodeToString([]byte("original"))
	_, body := f.post(t, "/owid/api/v1/sign", map[string]string{
		"domain":  "example.test",
		"payload": payload,
	}, "")
	var signResp struct {
		OWID string `json:"owid"`
	}
	require.NoError(t, json.Unmarshal(body, &signResp))

	tampered := base64.StdEncoding.EncodeToString([]byte("tampered"))
	resp, body := f.post(t, "/owid/api/v1/verify", map[string]string{
		"owid":    signResp.OWID,
		"payload": tampered,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var verifyResp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &verifyResp))
	assert.Equal(t, "not_valid", verifyResp.Status)
}

func TestVerify_UnknownSigner(t *testing.T) {
	f := newFixture(t)
	f.register(t, "example.test")

	payload := base64.StdEncoding.EncodeToString([]byte("x"))
	_, body := f.post(t, "/owid/api/v1/sign", map[string]string{
		"domain":  "example.test",
		"payload": payload,
	}, "")
	var signResp struct {
		OWID string `json:"owid"`
	}
	require.NoError(t, json.Unmarshal(body, &signResp))

	// Resolver vacío: el dominio no se conoce.
	f.resolver = resolve.NewMemory(0)
	o, err := owid.FromBase64(&owid.ByteArrayTarget{Value: []byte("x")}, signResp.OWID)
	require.NoError(t, err)
	status, err := o.VerifyWithService(context.Background(), f.resolver)
	require.NoError(t, err)
	assert.Equal(t, owid.StatusSignerNotFound, status)
}

func TestAdmin_RequiresToken(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.post(t, "/owid/api/v1/admin/signer", map[string]string{"domain": "x.test"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.post(t, "/owid/api/v1/admin/signer", map[string]string{"domain": "x.test"}, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_Rotate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "example.test")

	resp, body := f.post(t, "/owid/api/v1/admin/rotate", map[string]string{"domain": "example.test"}, f.token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var rotateResp struct {
		KeyID string `json:"keyId"`
		PEM   string `json:"pem"`
	}
	require.NoError(t, json.Unmarshal(body, &rotateResp))
	assert.NotEmpty(t, rotateResp.KeyID)
	assert.Contains(t, rotateResp.PEM, "BEGIN PUBLIC KEY")

	s, err := f.store.Get(context.Background(), "example.test")
	require.NoError(t, err)
	assert.Len(t, s.PublicKeys, 2)
	assert.Len(t, s.PrivateKeys, 2)
}

func TestAdmin_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "example.test")

	resp, _ := f.post(t, "/owid/api/v1/admin/signer", map[string]string{"domain": "example.test"}, f.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReadyz(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
