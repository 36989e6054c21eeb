package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidadmin_uploads_total",
			Help: "Videos uploaded, by folder.",
		},
		[]string{"folder"},
	)

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidadmin_upload_bytes_total",
		Help: "Bytes written to the object store by uploads.",
	})

	deletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidadmin_deletions_total",
			Help: "Delete requests, by outcome (deleted, missing).",
		},
		[]string{"result"},
	)

	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidadmin_login_attempts_total",
			Help: "Login attempts, by outcome.",
		},
		[]string{"result"},
	)

	urlCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidadmin_signed_url_cache_hits_total",
		Help: "Signed URL cache hits.",
	})
	urlCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidadmin_signed_url_cache_misses_total",
		Help: "Signed URL cache misses.",
	})
)
