// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/middleware"
)

// Router assembles the chi routing tree over the handlers, the live
// feed, and the security middleware.
type Router struct {
	handler  *Handler
	live     *LiveFeed
	security *Security
}

// NewRouter builds the router. live may be nil; the live route then
// answers 503.
func NewRouter(h *Handler, live *LiveFeed, sec config.SecurityConfig) *Router {
	return &Router{
		handler:  h,
		live:     live,
		security: NewSecurity(sec),
	}
}

// hfMiddleware adapts http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler shape.
func hfMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Handler returns the fully assembled HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Global stack: real IP first so rate limit keys see it, CORS
	// before routing so OPTIONS preflights always match.
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(hfMiddleware(middleware.RequestID))
	r.Use(rt.security.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(rt.security.RateLimitHealth())
		r.Get("/", rt.handler.Health)
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.security.RateLimit())

		// JSON endpoints carry the full instrumentation stack.
		r.Group(func(r chi.Router) {
			r.Use(hfMiddleware(middleware.PrometheusMetrics))
			r.Use(hfMiddleware(middleware.Compression))

			r.Route("/users", func(r chi.Router) {
				r.With(rt.security.RateLimitWrite()).Post("/", rt.handler.CreateUser)
				r.Get("/{id}", rt.handler.GetUser)
				r.Put("/{id}", rt.handler.UpdateUser)
				r.Put("/{id}/personality", rt.handler.UpdatePersonality)
			})

			r.Route("/ratings", func(r chi.Router) {
				r.With(rt.security.RateLimitWrite()).Post("/", rt.handler.CreateRating)
				r.Get("/{id}", rt.handler.GetRating)
				r.Put("/{id}", rt.handler.UpdateRating)
				r.Delete("/{id}", rt.handler.DeleteRating)
			})

			r.Route("/places", func(r chi.Router) {
				r.With(rt.security.RateLimitWrite()).Post("/", rt.handler.CreatePlace)
				r.Get("/nearby", rt.handler.NearbyPlaces)
				r.Get("/feed", rt.handler.PlacesFeed)
				r.Get("/{id}", rt.handler.GetPlace)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", rt.handler.ListGroups)
				r.With(rt.security.RateLimitWrite()).Post("/", rt.handler.CreateGroup)
				r.Get("/{id}", rt.handler.GetGroup)
				r.Post("/{id}/members", rt.handler.AddMember)
				r.Delete("/{id}/members/{userId}", rt.handler.RemoveMember)
				r.Post("/{id}/recommendations", rt.handler.GenerateRecommendations)
				r.Post("/{id}/votes", rt.handler.CastVotes)
				r.Get("/{id}/votes", rt.handler.VotingResults)
				r.Post("/{id}/finalize", rt.handler.FinalizeGroup)
				r.Post("/{id}/archive", rt.handler.ArchiveGroup)
			})

			r.Post("/predict", rt.handler.Predict)
			r.Post("/predict/batch", rt.handler.PredictBatch)
			r.Get("/predictor/info", rt.handler.PredictorInfo)

			r.Get("/insights/activity", rt.handler.InsightsActivity)
			r.Get("/insights/personality", rt.handler.InsightsPersonality)
			r.Get("/insights/places", rt.handler.InsightsPlaces)
		})

		// The dataset export streams CSV; keep it off the gzip wrapper
		// so rows flush as they are written.
		r.With(rt.security.RateLimitExport()).Get("/insights/dataset", rt.handler.InsightsDataset)

		// The live feed hijacks the connection, which the Prometheus
		// and gzip response wrappers cannot do.
		r.Get("/groups/{id}/live", rt.serveLive)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (rt *Router) serveLive(w http.ResponseWriter, r *http.Request) {
	if rt.live == nil {
		respondError(w, http.StatusServiceUnavailable, "EXTERNAL_UNAVAILABLE",
			"live feed is not available", nil)
		return
	}
	rt.live.ServeGroup(w, r)
}
