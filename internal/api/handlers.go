// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/geo"
	"github.com/convene-app/convene/internal/insights"
	"github.com/convene-app/convene/internal/predict"
	"github.com/convene-app/convene/internal/store"
	"github.com/convene-app/convene/internal/voting"
)

// Handler holds every dependency the HTTP endpoints need. All fields are
// set at construction and read-only afterwards.
type Handler struct {
	store     *store.Store
	voting    *voting.Service
	predictor *predict.Predictor
	resolver  *geo.Resolver
	insights  *insights.DB // nil when the insights store is disabled
	cfg       *config.Config
	started   time.Time
}

// NewHandler wires the endpoint dependencies. insightsDB may be nil;
// insights endpoints then answer 503.
func NewHandler(st *store.Store, vs *voting.Service, pr *predict.Predictor,
	resolver *geo.Resolver, insightsDB *insights.DB, cfg *config.Config) *Handler {
	return &Handler{
		store:     st,
		voting:    vs,
		predictor: pr,
		resolver:  resolver,
		insights:  insightsDB,
		cfg:       cfg,
		started:   time.Now(),
	}
}

// healthStatus is the GET /health payload.
type healthStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Insights      bool    `json:"insights"`
	GeoDirectory  bool    `json:"geoDirectory"`
	ModelService  bool    `json:"modelService"`
}

// Health reports liveness plus which optional collaborators are wired.
// Collaborator flags describe configuration, not reachability; the
// breaker-guarded clients degrade silently at request time.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
		Insights:      h.insights != nil,
		GeoDirectory:  h.cfg.Geo.ServiceURL != "",
		ModelService:  h.cfg.Predictor.ServiceURL != "",
	})
}

// HealthLive answers the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HealthReady answers the readiness probe. The store opens before the
// HTTP server starts, so reaching this handler implies readiness.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
