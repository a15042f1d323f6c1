// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/metrics"
)

// rateLimitTier sizes a per-route-group rate limit.
type rateLimitTier struct {
	Requests int
	Window   time.Duration
}

// Tiers by endpoint character. Health checks poll constantly, writes hit
// the store, and the dataset export streams the whole event log.
var (
	tierHealth = rateLimitTier{Requests: 1000, Window: time.Minute}
	tierWrite  = rateLimitTier{Requests: 30, Window: time.Minute}
	tierExport = rateLimitTier{Requests: 10, Window: time.Minute}
)

// Security bundles the transport-level protections built from
// config.SecurityConfig: CORS and per-client rate limiting. It carries no
// authentication; identity arrives pre-verified from the gateway.
type Security struct {
	cfg  config.SecurityConfig
	cors func(http.Handler) http.Handler
}

// NewSecurity builds the middleware factories from cfg. An empty origin
// list allows no cross-origin callers.
func NewSecurity(cfg config.SecurityConfig) *Security {
	return &Security{
		cfg: cfg,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-User-ID", "X-Request-ID"},
			MaxAge:         86400,
		}),
	}
}

// CORS returns the CORS middleware. Applied globally so OPTIONS
// preflights reach it before routing.
func (s *Security) CORS() func(http.Handler) http.Handler {
	return s.cors
}

// RateLimit returns the default per-IP rate limiter.
func (s *Security) RateLimit() func(http.Handler) http.Handler {
	return s.limit(rateLimitTier{Requests: s.cfg.RateLimitReqs, Window: s.cfg.RateLimitWindow})
}

// RateLimitHealth returns the permissive limiter for health endpoints.
func (s *Security) RateLimitHealth() func(http.Handler) http.Handler {
	return s.limit(tierHealth)
}

// RateLimitWrite returns the limiter for store-mutating endpoints.
func (s *Security) RateLimitWrite() func(http.Handler) http.Handler {
	return s.limit(tierWrite)
}

// RateLimitExport returns the strict limiter for dataset exports.
func (s *Security) RateLimitExport() func(http.Handler) http.Handler {
	return s.limit(tierExport)
}

func (s *Security) limit(tier rateLimitTier) func(http.Handler) http.Handler {
	if s.cfg.RateLimitDisabled || tier.Requests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		tier.Requests,
		tier.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"too many requests", nil)
		}),
	)
}
