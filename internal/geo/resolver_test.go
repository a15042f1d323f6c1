// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/convene-app/convene/internal/config"
	"github.com/convene-app/convene/internal/models"
)

func testGeoConfig(serviceURL string) config.GeoConfig {
	return config.GeoConfig{
		ServiceURL:        serviceURL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 100,
		Burst:             10,
		GridCellKm:        1,
	}
}

func noScan(t *testing.T) ScanFunc {
	return func(ctx context.Context) ([]Point, error) {
		t.Helper()
		t.Error("store scan should not run")
		return nil, nil
	}
}

func TestClient_Nearby(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"lat":       q.Get("lat"),
			"lng":       q.Get("lng"),
			"radius_km": q.Get("radius_km"),
			"limit":     q.Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"places": [
			{"placeId": "p2", "name": "Beta", "location": {"lat": 40.71, "lng": -74.01}, "distanceKm": 1.2},
			{"placeId": "p1", "name": "Alpha", "location": {"lat": 40.72, "lng": -74.0}, "distanceKm": 0.4}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(testGeoConfig(srv.URL))
	matches, err := client.Nearby(context.Background(), nyc, 5, 10)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}

	if gotQuery["lat"] != "40.7128" || gotQuery["lng"] != "-74.006" {
		t.Errorf("query coordinates = %v", gotQuery)
	}
	if gotQuery["radius_km"] != "5" || gotQuery["limit"] != "10" {
		t.Errorf("query radius/limit = %v", gotQuery)
	}

	// Responses are re-sorted by distance regardless of wire order.
	if len(matches) != 2 || matches[0].PlaceID != "p1" || matches[1].PlaceID != "p2" {
		t.Errorf("matches = %+v, want p1 then p2", matches)
	}
	if matches[0].Name != "Alpha" {
		t.Errorf("matches[0].Name = %q, want Alpha", matches[0].Name)
	}
}

func TestClient_NearbyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "directory down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(testGeoConfig(srv.URL))
	_, err := client.Nearby(context.Background(), nyc, 5, 10)
	if err == nil {
		t.Fatal("Nearby() should fail on HTTP 502")
	}
	if models.KindOf(err) != models.KindUnavailable {
		t.Errorf("KindOf(err) = %v, want KindUnavailable", models.KindOf(err))
	}
}

func TestResolver_UsesExternalFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"places": [{"placeId": "ext1", "name": "External", "location": {"lat": 40.71, "lng": -74.0}, "distanceKm": 0.5}]}`))
	}))
	defer srv.Close()

	grid := NewSpatialGrid(1)
	grid.Upsert(Point{ID: "local1", Location: nyc})

	resolver := NewResolver(NewClient(testGeoConfig(srv.URL)), grid, noScan(t))

	matches, err := resolver.Nearby(context.Background(), nyc, 5, 0)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(matches) != 1 || matches[0].PlaceID != "ext1" {
		t.Errorf("matches = %+v, want external result only", matches)
	}
}

func TestResolver_FallsBackToGrid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	grid := NewSpatialGrid(1)
	grid.Upsert(Point{ID: "local1", Name: "Local", Location: nyc})
	grid.Upsert(Point{ID: "faraway", Location: la})

	resolver := NewResolver(NewClient(testGeoConfig(srv.URL)), grid, noScan(t))

	matches, err := resolver.Nearby(context.Background(), nyc, 5, 0)
	if err != nil {
		t.Fatalf("Nearby() should degrade, got error: %v", err)
	}
	if len(matches) != 1 || matches[0].PlaceID != "local1" {
		t.Errorf("matches = %+v, want grid result local1", matches)
	}
}

func TestResolver_NoClientUsesGrid(t *testing.T) {
	grid := NewSpatialGrid(1)
	grid.Upsert(Point{ID: "local1", Location: nyc})

	resolver := NewResolver(nil, grid, noScan(t))

	matches, err := resolver.Nearby(context.Background(), nyc, 5, 0)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(matches) != 1 || matches[0].PlaceID != "local1" {
		t.Errorf("matches = %+v, want local1", matches)
	}
}

func TestResolver_ColdGridScansStore(t *testing.T) {
	scanned := false
	scan := func(ctx context.Context) ([]Point, error) {
		scanned = true
		return []Point{
			{ID: "p1", Name: "Near", Location: newark},
			{ID: "p2", Name: "Far", Location: la},
		}, nil
	}

	resolver := NewResolver(nil, NewSpatialGrid(1), scan)

	matches, err := resolver.Nearby(context.Background(), nyc, 50, 0)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if !scanned {
		t.Fatal("store scan should have run against the cold grid")
	}
	if len(matches) != 1 || matches[0].PlaceID != "p1" {
		t.Errorf("matches = %+v, want p1 within 50km", matches)
	}
	if matches[0].DistanceKm <= 0 || matches[0].DistanceKm > 50 {
		t.Errorf("DistanceKm = %v, want computed distance in (0, 50]", matches[0].DistanceKm)
	}
}

func TestResolver_ScanErrorPropagates(t *testing.T) {
	scan := func(ctx context.Context) ([]Point, error) {
		return nil, models.Unavailable("store offline")
	}

	resolver := NewResolver(nil, NewSpatialGrid(1), scan)

	_, err := resolver.Nearby(context.Background(), nyc, 5, 0)
	if err == nil {
		t.Fatal("Nearby() should surface a scan failure")
	}
}

func TestResolver_LimitCapsResults(t *testing.T) {
	grid := NewSpatialGrid(1)
	grid.Upsert(Point{ID: "a", Location: nyc})
	grid.Upsert(Point{ID: "b", Location: models.LatLng{Lat: nyc.Lat + 0.001, Lng: nyc.Lng}})
	grid.Upsert(Point{ID: "c", Location: models.LatLng{Lat: nyc.Lat + 0.002, Lng: nyc.Lng}})

	resolver := NewResolver(nil, grid, noScan(t))

	matches, err := resolver.Nearby(context.Background(), nyc, 5, 2)
	if err != nil {
		t.Fatalf("Nearby() error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("len(matches) = %d, want 2 (closest first)", len(matches))
	}
	if matches[0].PlaceID != "a" {
		t.Errorf("matches[0] = %s, want a", matches[0].PlaceID)
	}
}
