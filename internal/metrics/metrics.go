// Package metrics holds the Prometheus collectors of the pipeline. They
// register with the default registry on import and are served by the HTTP
// adapter on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClicksTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clickflow_clicks_tracked_total",
		Help: "Clicks recorded, by traffic source",
	}, []string{"source"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clickflow_sessions_active",
		Help: "Sessions currently held in the active-session index",
	})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clickflow_sessions_ended_total",
		Help: "Sessions ended, by reason (explicit, timeout, shutdown)",
	}, []string{"reason"})

	// outcome is one of created, replay, not_found, invalid, error.
	ConversionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clickflow_conversions_processed_total",
		Help: "Conversion webhooks handled, by outcome",
	}, []string{"outcome"})

	ConversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clickflow_conversion_duration_seconds",
		Help:    "Latency of conversion webhook processing",
		Buckets: prometheus.DefBuckets,
	})

	RulesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clickflow_rules_applied_total",
		Help: "Conversion rules whose conditions matched, by rule id",
	}, []string{"rule"})

	FraudScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clickflow_fraud_risk_score",
		Help:    "Distribution of fraud risk scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	FraudIndicators = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clickflow_fraud_indicators_total",
		Help: "Fraud indicators raised, by code",
	}, []string{"indicator"})

	// result is one of sent, queued, dropped.
	TriggersPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clickflow_triggers_total",
		Help: "Outbound trigger events, by type and result",
	}, []string{"type", "result"})
)
