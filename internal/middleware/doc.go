// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

// Package middleware provides the HTTP middleware stack: request ID
// tracking, Prometheus instrumentation, and gzip compression. CORS and
// rate limiting are configured in the API layer where the router and
// security config live.
//
// Middleware here wraps http.HandlerFunc so the same components serve
// both the chi router (via an adapter) and bare handlers in tests.
package middleware
