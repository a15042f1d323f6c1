// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Document store operations (Badger)
// - Insights store queries and event ingestion (DuckDB)
// - API endpoint latency and throughput
// - Rating writes and aggregate recomputation
// - Score predictions and the model service client
// - Group voting lifecycle
// - Event delivery and WebSocket connections

var (
	// Store Metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_op_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"operation", "entity"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_op_errors_total",
			Help: "Total number of document store operation errors",
		},
		[]string{"operation", "entity", "error_type"},
	)

	StoreTxnConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_txn_conflicts_total",
			Help: "Total number of transaction conflicts that triggered a retry",
		},
		[]string{"operation"},
	)

	StoreTxnRetriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_txn_retries_exhausted_total",
			Help: "Total number of transactions abandoned after exhausting retries",
		},
		[]string{"operation"},
	)

	// Insights Metrics
	InsightsQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_query_duration_seconds",
			Help:    "Duration of insights store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	InsightsQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_query_errors_total",
			Help: "Total number of insights store query errors",
		},
		[]string{"operation", "error_type"},
	)

	InsightsEventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_events_written_total",
			Help: "Total number of rating events written to the insights store",
		},
	)

	InsightsEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_events_dropped_total",
			Help: "Total number of rating events dropped because the buffer was full",
		},
	)

	InsightsBatchFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insights_batch_flush_duration_seconds",
			Help:    "Duration of insights batch flush operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	InsightsBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insights_batch_size",
			Help:    "Number of rating events in each batch flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	InsightsBufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insights_buffer_depth",
			Help: "Current depth of the insights event buffer",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Rating Metrics
	RatingWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_writes_total",
			Help: "Total number of rating writes",
		},
		[]string{"op", "bucket"}, // op: "create", "update", "delete"; bucket: rater personality
	)

	AggregateRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregate_recompute_duration_seconds",
			Help:    "Duration of place aggregate recomputation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AggregateRecomputeRatings = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregate_recompute_ratings",
			Help:    "Number of ratings read per aggregate recomputation",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Prediction Metrics
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of score predictions served",
		},
		[]string{"method"}, // "hybrid", "heuristic_only"
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prediction_duration_seconds",
			Help:    "Duration of score predictions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method"},
	)

	PredictionNeighbors = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prediction_similar_neighbors",
			Help:    "Number of similar neighbors contributing to each heuristic prediction",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	ModelServiceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_service_requests_total",
			Help: "Total number of requests to the learned-model service",
		},
		[]string{"operation", "result"}, // result: "success", "failure", "rejected"
	)

	ModelRefreshesDue = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "model_refreshes_due_total",
			Help: "Total number of model refresh triggers published",
		},
	)

	// Group Voting Metrics
	GroupsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groups_created_total",
			Help: "Total number of groups created",
		},
	)

	VotesCast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votes_cast_total",
			Help: "Total number of ballots cast or replaced",
		},
	)

	GroupsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groups_finalized_total",
			Help: "Total number of groups that reached place_selected",
		},
		[]string{"trigger"}, // "auto", "manual"
	)

	FinalizeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finalize_conflicts_total",
			Help: "Total number of finalization attempts that lost the status race",
		},
	)

	CandidatesGenerated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "group_candidates_generated",
			Help:    "Number of candidate places generated per recommendation run",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		},
	)

	// Geo Metrics
	GeoLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_lookup_duration_seconds",
			Help:    "Duration of place lookups in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"}, // "external", "grid", "scan"
	)

	GeoFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_fallbacks_total",
			Help: "Total number of lookups that fell back past the external service",
		},
		[]string{"to"}, // "grid", "scan"
	)

	GeoServiceCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geo_service_call_duration_seconds",
			Help:    "Duration of external place directory calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Event Delivery Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of events consumed",
		},
		[]string{"topic"},
	)

	EventsParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_parse_failed_total",
			Help: "Total number of events that failed to parse",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "Duration of event handler execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordStoreOp records a document store operation metric
func RecordStoreOp(operation, entity string, duration time.Duration, err error) {
	StoreOpDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		StoreOpErrors.WithLabelValues(operation, entity, errorType).Inc()
	}
}

// RecordTxnConflict records a transaction conflict retry
func RecordTxnConflict(operation string) {
	StoreTxnConflicts.WithLabelValues(operation).Inc()
}

// RecordTxnRetriesExhausted records a transaction abandoned after retries
func RecordTxnRetriesExhausted(operation string) {
	StoreTxnRetriesExhausted.WithLabelValues(operation).Inc()
}

// RecordInsightsQuery records an insights store query metric
func RecordInsightsQuery(operation string, duration time.Duration, err error) {
	InsightsQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		InsightsQueryErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// RecordInsightsFlush records an insights batch flush
func RecordInsightsFlush(duration time.Duration, batchSize int) {
	InsightsBatchFlushDuration.Observe(duration.Seconds())
	InsightsBatchSize.Observe(float64(batchSize))
	InsightsEventsWritten.Add(float64(batchSize))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRatingWrite records a rating write by operation and rater bucket
func RecordRatingWrite(op, bucket string) {
	RatingWrites.WithLabelValues(op, bucket).Inc()
}

// RecordAggregateRecompute records a place aggregate recomputation
func RecordAggregateRecompute(duration time.Duration, ratingCount int) {
	AggregateRecomputeDuration.Observe(duration.Seconds())
	AggregateRecomputeRatings.Observe(float64(ratingCount))
}

// RecordPrediction records a served prediction
func RecordPrediction(method string, duration time.Duration, similarNeighbors int) {
	PredictionsTotal.WithLabelValues(method).Inc()
	PredictionDuration.WithLabelValues(method).Observe(duration.Seconds())
	PredictionNeighbors.Observe(float64(similarNeighbors))
}

// RecordModelServiceRequest records a model service call outcome
func RecordModelServiceRequest(operation, result string) {
	ModelServiceRequests.WithLabelValues(operation, result).Inc()
}

// RecordFinalize records a group finalization by trigger ("auto" or "manual")
func RecordFinalize(trigger string) {
	GroupsFinalized.WithLabelValues(trigger).Inc()
}

// RecordGeoLookup records a place lookup by serving source
func RecordGeoLookup(source string, duration time.Duration) {
	GeoLookupDuration.WithLabelValues(source).Observe(duration.Seconds())
	if source == "grid" || source == "scan" {
		GeoFallbacks.WithLabelValues(source).Inc()
	}
}

// RecordEventPublished records a published event
func RecordEventPublished(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsumed records a consumed event and its handler duration
func RecordEventConsumed(topic string, duration time.Duration) {
	EventsConsumed.WithLabelValues(topic).Inc()
	EventProcessingDuration.Observe(duration.Seconds())
}
