package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OWID-related Prometheus metrics. These are defined in a standalone package
// to avoid import cycles between resolve (fetch) and HTTP packages.

var (
	SignTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "owid_sign_total",
		Help: "OWIDs firmados por este proceso",
	})

	VerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "owid_verify_total",
		Help: "Verificaciones de OWID por estado terminal",
	}, []string{"status"})

	SignerFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "owid_signer_fetch_total",
		Help: "Fetches HTTP de signers por resultado", // result: ok|error
	}, []string{"result"})

	SignerFetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "owid_signer_fetch_latency_ms",
		Help:    "Latencia del fetch de signer en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	SignerCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "owid_signer_cache_hits_total",
		Help: "Hits del cache in-process de signers",
	})

	SignerCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "owid_signer_cache_misses_total",
		Help: "Misses del cache in-process de signers",
	})
)

// RegisterOWID registers the owid metrics on the given registry (or default if nil).
func RegisterOWID(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		SignTotal,
		VerifyTotal,
		SignerFetchTotal,
		SignerFetchLatency,
		SignerCacheHits,
		SignerCacheMisses,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
