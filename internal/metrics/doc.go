// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

/*
Package metrics provides Prometheus instrumentation for all Convene
components.

Metrics register with the default registry via promauto at package load;
the /metrics endpoint exposes them through promhttp. Helper functions
(RecordStoreOp, RecordPrediction, RecordFinalize, ...) wrap the common
observation patterns so call sites stay one line.

Metric Groups:

  - store_*: Badger document store operations and transaction conflicts
  - insights_*: DuckDB queries and the buffered event writer
  - api_*: HTTP request counts, latencies, and rate limit rejections
  - rating_* / aggregate_*: rating writes and per-place recomputation
  - prediction_* / model_*: score predictions and model service calls
  - groups_* / votes_* / finalize_*: group decision lifecycle
  - geo_*: place lookups and fallback paths
  - events_* / websocket_*: event delivery and live connections
  - circuit_breaker_*: breaker state for external collaborators

Label cardinality stays bounded: entity names, operation verbs, topics,
and personality buckets are all small fixed sets. Error types truncate
at 50 characters to keep accidental high-cardinality labels in check.
*/
package metrics
