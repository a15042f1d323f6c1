// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/convene-app/convene/internal/geo"
	"github.com/convene-app/convene/internal/models"
	"github.com/convene-app/convene/internal/scoring"
)

// CreatePlace handles POST /api/v1/places. The new place enters the
// spatial index immediately so it shows up in nearby queries without
// waiting for the next grid rebuild.
func (h *Handler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCaller(w, r); !ok {
		return
	}

	var req models.CreatePlaceRequest
	if apiErr := decodeBody(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	place, err := h.store.CreatePlace(req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.resolver.Grid().Upsert(geo.Point{
		ID:       place.ID,
		Name:     place.Name,
		Address:  place.Address,
		Location: place.Location,
	})
	respondData(w, http.StatusCreated, place)
}

// GetPlace handles GET /api/v1/places/{id}. With ?viewer=<userID> the
// place is re-projected for that viewer: stats stay objective, Score and
// Confidence carry the personalized prediction. Unrated places score
// neutral with zero confidence.
func (h *Handler) GetPlace(w http.ResponseWriter, r *http.Request) {
	place, err := h.store.GetPlace(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	viewerID := r.URL.Query().Get("viewer")
	if viewerID == "" {
		respondData(w, http.StatusOK, place)
		return
	}

	viewer, err := h.store.GetUser(viewerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	ratings, err := h.store.RatingsForPlace(place.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	view := models.PlaceView{Place: *place, Score: scoring.NeutralScore}
	if vs, ok := scoring.ForViewer(ratings, viewer.AdjustmentFactor); ok {
		view.Score = vs.Score
		view.Confidence = vs.Confidence
	}
	respondData(w, http.StatusOK, view)
}

// NearbyPlaces handles GET /api/v1/places/nearby?lat&lng&radius_km.
// Results come from the resolver's degradation chain: external directory,
// spatial grid, full scan. Directory matches unknown to the store render
// without stats.
func (h *Handler) NearbyPlaces(w http.ResponseWriter, r *http.Request) {
	origin, ok := h.parseOrigin(w, r)
	if !ok {
		return
	}
	radius := h.clampRadius(r, h.cfg.Places.DefaultNearbyRadiusKm)
	limit := getIntParam(r, "limit", h.cfg.API.DefaultPageSize)
	if limit <= 0 || limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}

	matches, err := h.resolver.Nearby(r.Context(), origin, radius, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	out := make([]models.NearbyPlace, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.NearbyPlace{
			Place:      h.hydratePlace(m),
			DistanceKm: m.DistanceKm,
		})
	}
	respondData(w, http.StatusOK, out)
}

// PlacesFeed handles GET /api/v1/places/feed: nearby places ordered for
// the viewer, rated places first by score×confidence, unrated trailing
// nearest-first with the neutral score.
func (h *Handler) PlacesFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := r.URL.Query().Get("viewer")
	if viewerID == "" {
		viewerID = caller(r)
	}
	if viewerID == "" {
		respondError(w, http.StatusForbidden, "UNAUTHORIZED", "viewer parameter or X-User-ID header required", nil)
		return
	}

	viewer, err := h.store.GetUser(viewerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	origin, haveOrigin := parseLatLng(r)
	if !haveOrigin {
		if viewer.LastKnownLocation == nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"lat and lng required: viewer has no known location", nil)
			return
		}
		origin = *viewer.LastKnownLocation
	}
	radius := h.clampRadius(r, h.cfg.Places.FeedRadiusKm)

	matches, err := h.resolver.Nearby(r.Context(), origin, radius, h.cfg.Places.FeedLimit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	items := make([]scoring.RatedPlace, 0, len(matches))
	for _, m := range matches {
		ratings, err := h.store.RatingsForPlace(m.PlaceID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		items = append(items, scoring.RatedPlace{
			Place:      h.hydratePlace(m),
			DistanceKm: m.DistanceKm,
			Ratings:    ratings,
		})
	}
	respondData(w, http.StatusOK, scoring.Feed(items, viewer.AdjustmentFactor))
}

// hydratePlace loads the stored document behind a geo match, falling
// back to the match's own identity for directory-only places.
func (h *Handler) hydratePlace(m geo.Match) models.Place {
	if place, err := h.store.GetPlace(m.PlaceID); err == nil {
		return *place
	}
	return models.Place{ID: m.PlaceID, Name: m.Name, Address: m.Address, Location: m.Location}
}

// parseOrigin reads required lat/lng query parameters, answering a
// validation error when absent.
func (h *Handler) parseOrigin(w http.ResponseWriter, r *http.Request) (models.LatLng, bool) {
	origin, ok := parseLatLng(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "lat and lng query parameters required", nil)
		return models.LatLng{}, false
	}
	if apiErr := validateRequest(&origin); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return models.LatLng{}, false
	}
	return origin, true
}

func parseLatLng(r *http.Request) (models.LatLng, bool) {
	lat, okLat := getFloatParam(r, "lat")
	lng, okLng := getFloatParam(r, "lng")
	if !okLat || !okLng {
		return models.LatLng{}, false
	}
	return models.LatLng{Lat: lat, Lng: lng}, true
}

// clampRadius reads radius_km, applying the default and the configured
// ceiling.
func (h *Handler) clampRadius(r *http.Request, def float64) float64 {
	radius, ok := getFloatParam(r, "radius_km")
	if !ok || radius <= 0 {
		radius = def
	}
	if max := h.cfg.Places.MaxNearbyRadiusKm; max > 0 && radius > max {
		radius = max
	}
	return radius
}
