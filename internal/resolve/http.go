package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/SWAN-community/owid/internal/metrics"
	"github.com/SWAN-community/owid/internal/observability/logger"
	"github.com/SWAN-community/owid/internal/owid"
)

const (
	defaultScheme       = "https"
	defaultFetchTimeout = 10 * time.Second
)

// HTTPConfig configura la variante HTTP del resolver.
type HTTPConfig struct {
	// Scheme del endpoint remoto: "https" (default) o "http" para dev.
	Scheme string

	// Timeout por fetch. Default: 10s.
	Timeout time.Duration

	// Client permite inyectar un *http.Client propio (tests).
	Client *http.Client

	// Shared es el segundo nivel opcional (redis) compartido entre procesos.
	Shared Shared

	// SharedTTL es el TTL de las entradas en el nivel compartido.
	// 0 = sin expiración.
	SharedTTL time.Duration
}

// HTTP resuelve signers contra GET {scheme}://{domain}/owid/api/v{version}/signer.
//
// En miss emite un único fetch por clave aunque haya N Get concurrentes:
// los que llegan tarde esperan el resultado en vuelo (singleflight). Los
// resultados se memoizan in-process de por vida del proceso; los misses y
// errores NO se cachean. Las entradas sólo se escriben en éxito.
type HTTP struct {
	scheme    string
	timeout   time.Duration
	client    *http.Client
	shared    Shared
	sharedTTL time.Duration

	c  *gocache.Cache
	sf singleflight.Group
}

// NewHTTP crea la variante HTTP con la configuración dada.
func NewHTTP(cfg HTTPConfig) *HTTP {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = defaultScheme
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{
		scheme:    scheme,
		timeout:   timeout,
		client:    client,
		shared:    cfg.Shared,
		sharedTTL: cfg.SharedTTL,
		c:         gocache.New(gocache.NoExpiration, 0),
	}
}

// Get implementa owid.SignerService.
func (h *HTTP) Get(ctx context.Context, version byte, domain string) (*owid.Signer, error) {
	key := cacheKey(version, domain)
	if v, ok := h.c.Get(key); ok {
		metrics.SignerCacheHits.Inc()
		return v.(*owid.Signer), nil
	}
	metrics.SignerCacheMisses.Inc()

	// singleflight colapsa N Gets concurrentes de la misma clave en un solo
	// fetch; DoChan deja al caller cancelable sin matar el fetch compartido.
	ch := h.sf.DoChan(key, func() (any, error) {
		return h.load(version, domain, key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*owid.Signer), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Add pre-carga un Signer sin pasar por la red (ej: los dominios hosteados
// por este mismo proceso).
func (h *HTTP) Add(s *owid.Signer) {
	h.c.Set(cacheKey(s.Version, s.Domain), s, gocache.NoExpiration)
}

// load corre dentro de singleflight: nivel compartido primero, después red.
// Usa su propio deadline (el resultado se comparte entre callers, no debe
// morir con el contexto de uno solo).
func (h *HTTP) load(version byte, domain, key string) (*owid.Signer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if h.shared != nil {
		if raw, err := h.shared.Get(ctx, key); err == nil && raw != "" {
			var s owid.Signer
			if err := json.Unmarshal([]byte(raw), &s); err == nil {
				h.c.Set(key, &s, gocache.NoExpiration)
				return &s, nil
			}
			// Entrada compartida corrupta: ignorar y refetchear.
			logger.Named("resolve").Warn("shared cache entry invalid, refetching",
				logger.Domain(domain))
		}
	}

	s, err := h.fetch(ctx, version, domain)
	if err != nil {
		metrics.SignerFetchTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SignerFetchTotal.WithLabelValues("ok").Inc()

	h.c.Set(key, s, gocache.NoExpiration)
	if h.shared != nil {
		if raw, err := json.Marshal(s); err == nil {
			_ = h.shared.Set(ctx, key, string(raw), h.sharedTTL)
		}
	}
	return s, nil
}

// fetch hace el GET y parsea el JSON del signer.
func (h *HTTP) fetch(ctx context.Context, version byte, domain string) (*owid.Signer, error) {
	url := fmt.Sprintf("%s://%s/owid/api/v%d/signer", h.scheme, domain, version)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Domain: domain, Err: err}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{Domain: domain, Err: err}
	}
	defer resp.Body.Close()

	metrics.SignerFetchLatency.Observe(float64(time.Since(start).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Domain: domain, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Domain: domain, Err: err}
	}

	var s owid.Signer
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, &FetchError{Domain: domain, Err: err}
	}

	logger.Named("resolve").Debug("signer fetched",
		logger.Domain(domain),
		logger.DurationMs(time.Since(start).Milliseconds()))
	return &s, nil
}
