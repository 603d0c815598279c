package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nobre_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nobre_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})

	signatureRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nobre_signature_rejections_total",
		Help: "Interactions rejected for a missing or invalid signature",
	})

	interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nobre_interactions_total",
		Help: "Interactions handled, labeled by command",
	}, []string{"command"})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nobre_verifications_total",
		Help: "Verification attempts, labeled by outcome",
	}, []string{"status"})

	sideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nobre_verification_side_effect_failures_total",
		Help: "Recorded identities whose role grant or welcome message failed",
	}, []string{"effect"})
)
