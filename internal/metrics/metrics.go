// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "espasatel_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "espasatel_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Lite mode
	LiteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "espasatel_lite_decisions_total",
			Help: "Rendering mode decisions by deciding tier",
		},
		[]string{"source", "lite"},
	)

	// Leads
	LeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "espasatel_leads_total",
			Help: "Lead submissions by outcome",
		},
		[]string{"status"}, // sent, invalid, forbidden, rate_limited, relay_error
	)

	RelayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "espasatel_relay_duration_seconds",
			Help:    "Time spent delivering a lead to the messenger, retries included",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"outcome"},
	)

	// Domain
	OfferQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "espasatel_offer_queries_total",
			Help: "Offer ranking requests by product",
		},
		[]string{"product"},
	)

	AdvisorResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "espasatel_advisor_results_total",
			Help: "Recommendation walks that reached a result, by product",
		},
		[]string{"product"},
	)

	TriageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "espasatel_triage_outcomes_total",
			Help: "Accident triage classifications by procedure",
		},
		[]string{"procedure"}, // simplified, police
	)
)
