package resolve_test

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWAN-community/owid/internal/owid"
	"github.com/SWAN-community/owid/internal/resolve"
	"github.com/SWAN-community/owid/internal/security/ecdsa256"
)

func testSigner(t *testing.T, domain string) (*owid.Signer, *ecdsa.PrivateKey) {
	t.Helper()
	priv, pub, err := ecdsa256.Generate()
	require.NoError(t, err)
	pem, err := ecdsa256.ExportPublicPEM(pub)
	require.NoError(t, err)
	return &owid.Signer{
		Version:    owid.Version1,
		Domain:     domain,
		Name:       "Example Org",
		Email:      "ops@" + domain,
		TermsURL:   "https://" + domain + "/terms",
		PublicKeys: []*owid.Key{owid.NewKey(pem, time.Now().UTC().Add(-time.Hour))},
	}, priv
}

func TestMemory_StructuralKey(t *testing.T) {
	m := resolve.NewMemory(0)
	s, _ := testSigner(t, "example.test")
	m.Add(s)

	// La búsqueda es estructural sobre (version, domain): no hace falta el
	// mismo objeto para encontrar la entrada.
	got, err := m.Get(context.Background(), owid.Version1, "example.test")
	require.NoError(t, err)
	assert.Same(t, s, got)

	// Miss genuino: nil, nil.
	got, err = m.Get(context.Background(), owid.Version1, "not.found")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Otra versión es otra clave.
	got, err = m.Get(context.Background(), 2, "example.test")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_DelayRespectsContext(t *testing.T) {
	m := resolve.NewMemory(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Get(ctx, owid.Version1, "example.test")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

// signerServer levanta un endpoint de signer con contador de fetches.
func signerServer(t *testing.T, s *owid.Signer, delay time.Duration, fetches *atomic.Int32) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/owid/api/v1/signer" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return srv, u.Host
}

func TestHTTP_FetchAndMemoize(t *testing.T) {
	s, _ := testSigner(t, "example.test")
	var fetches atomic.Int32
	_, host := signerServer(t, s, 0, &fetches)

	h := resolve.NewHTTP(resolve.HTTPConfig{Scheme: "http"})

	got, err := h.Get(context.Background(), owid.Version1, host)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "example.test", got.Domain)
	require.Len(t, got.PublicKeys, 1)

	// Las claves llegan como objetos de primera clase: materializan lazy.
	_, err = got.PublicKeys[0].CryptoKey()
	require.NoError(t, err)

	// Segunda llamada: memoizado, sin red.
	again, err := h.Get(context.Background(), owid.Version1, host)
	require.NoError(t, err)
	assert.Same(t, got, again)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestHTTP_ConcurrentGetsCollapse(t *testing.T) {
	s, _ := testSigner(t, "example.test")
	var fetches atomic.Int32
	_, host := signerServer(t, s, 50*time.Millisecond, &fetches)

	h := resolve.NewHTTP(resolve.HTTPConfig{Scheme: "http"})

	const n = 20
	results := make([]*owid.Signer, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := h.Get(context.Background(), owid.Version1, host)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	// N Gets concurrentes => exactamente un fetch; todos reciben la misma
	// instancia.
	assert.Equal(t, int32(1), fetches.Load())
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestHTTP_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	h := resolve.NewHTTP(resolve.HTTPConfig{Scheme: "http"})
	_, err = h.Get(context.Background(), owid.Version1, u.Host)

	var fetchErr *resolve.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
}

func TestHTTP_ErrorsAreNotCached(t *testing.T) {
	s, _ := testSigner(t, "example.test")
	var fetches atomic.Int32
	var failFirst atomic.Bool
	failFirst.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if failFirst.Swap(false) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	h := resolve.NewHTTP(resolve.HTTPConfig{Scheme: "http"})

	_, err = h.Get(context.Background(), owid.Version1, u.Host)
	require.Error(t, err)

	got, err := h.Get(context.Background(), owid.Version1, u.Host)
	require.NoError(t, err)
	assert.Equal(t, "example.test", got.Domain)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestHTTP_CancelledCaller(t *testing.T) {
	s, _ := testSigner(t, "example.test")
	var fetches atomic.Int32
	_, host := signerServer(t, s, 200*time.Millisecond, &fetches)

	h := resolve.NewHTTP(resolve.HTTPConfig{Scheme: "http"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Get(ctx, owid.Version1, host)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// El fetch compartido sigue y el resultado queda cacheado para el
	// próximo caller.
	time.Sleep(300 * time.Millisecond)
	got, err := h.Get(context.Background(), owid.Version1, host)
	require.NoError(t, err)
	assert.Equal(t, "example.test", got.Domain)
	assert.Equal(t, int32(1), fetches.Load())
}
