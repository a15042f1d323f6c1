// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package geo

import (
	"fmt"
	"sync"
	"testing"

	"github.com/convene-app/convene/internal/models"
)

var (
	nyc    = models.LatLng{Lat: 40.7128, Lng: -74.0060}
	newark = models.LatLng{Lat: 40.7357, Lng: -74.1724}
	philly = models.LatLng{Lat: 39.9526, Lng: -75.1652}
	boston = models.LatLng{Lat: 42.3601, Lng: -71.0589}
	la     = models.LatLng{Lat: 34.0522, Lng: -118.2437}
)

func TestHaversine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		a, b       models.LatLng
		expectedKm float64
		tolerance  float64
	}{
		{"NYC to LA", nyc, la, 3935, 50},
		{"NYC to Newark", nyc, newark, 14, 2},
		{"NYC to Boston", nyc, boston, 306, 10},
		{"same point", nyc, nyc, 0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := Haversine(tt.a, tt.b)
			diff := dist - tt.expectedKm
			if diff < 0 {
				diff = -diff
			}
			if diff > tt.tolerance {
				t.Errorf("Haversine = %.2f km, want ~%.2f km (diff: %.2f)", dist, tt.expectedKm, diff)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	t.Parallel()

	if d1, d2 := Haversine(nyc, boston), Haversine(boston, nyc); d1 != d2 {
		t.Errorf("Haversine not symmetric: %v vs %v", d1, d2)
	}
}

func TestSpatialGrid_UpsertAndRemove(t *testing.T) {
	t.Parallel()

	grid := NewSpatialGrid(50)

	grid.Upsert(Point{ID: "p1", Name: "Alpha", Location: nyc})
	grid.Upsert(Point{ID: "p2", Name: "Beta", Location: la})

	if grid.Size() != 2 {
		t.Errorf("Size() = %d, want 2", grid.Size())
	}

	// Upsert with the same ID moves the point instead of duplicating it
	grid.Upsert(Point{ID: "p1", Name: "Alpha", Location: boston})
	if grid.Size() != 2 {
		t.Errorf("Size() after move = %d, want 2", grid.Size())
	}

	matches := grid.Nearby(boston, 10)
	if len(matches) != 1 || matches[0].PlaceID != "p1" {
		t.Errorf("Nearby(boston) = %+v, want moved p1", matches)
	}

	if !grid.Remove("p1") {
		t.Error("Remove('p1') should return true")
	}
	if grid.Remove("nonexistent") {
		t.Error("Remove('nonexistent') should return false")
	}
	if grid.Size() != 1 {
		t.Errorf("Size() after remove = %d, want 1", grid.Size())
	}
}

func TestSpatialGrid_Nearby(t *testing.T) {
	t.Parallel()

	grid := NewSpatialGrid(50)
	grid.Upsert(Point{ID: "nyc", Name: "New York", Location: nyc})
	grid.Upsert(Point{ID: "newark", Name: "Newark", Location: newark})
	grid.Upsert(Point{ID: "philly", Name: "Philadelphia", Location: philly})
	grid.Upsert(Point{ID: "boston", Name: "Boston", Location: boston})

	tests := []struct {
		radiusKm float64
		wantIDs  []string
	}{
		{50, []string{"nyc", "newark"}},
		{200, []string{"nyc", "newark", "philly"}},
		{500, []string{"nyc", "newark", "philly", "boston"}},
	}

	for _, tt := range tests {
		matches := grid.Nearby(nyc, tt.radiusKm)
		if len(matches) != len(tt.wantIDs) {
			t.Errorf("Nearby(%vkm) returned %d matches, want %d", tt.radiusKm, len(matches), len(tt.wantIDs))
			continue
		}
		for i, want := range tt.wantIDs {
			if matches[i].PlaceID != want {
				t.Errorf("Nearby(%vkm)[%d] = %s, want %s (distance ordering)", tt.radiusKm, i, matches[i].PlaceID, want)
			}
		}
	}
}

func TestSpatialGrid_NearbyKeepsAddress(t *testing.T) {
	t.Parallel()

	grid := NewSpatialGrid(50)
	grid.Upsert(Point{ID: "nyc", Name: "New York", Address: "1 Centre St", Location: nyc})

	matches := grid.Nearby(nyc, 10)
	if len(matches) != 1 {
		t.Fatalf("Nearby() returned %d matches, want 1", len(matches))
	}
	if matches[0].Address != "1 Centre St" {
		t.Errorf("Nearby()[0].Address = %q, want %q", matches[0].Address, "1 Centre St")
	}
}

func TestSpatialGrid_NearbyOrdersTiesByID(t *testing.T) {
	t.Parallel()

	grid := NewSpatialGrid(50)
	// Same coordinates, so identical distances; IDs break the tie.
	grid.Upsert(Point{ID: "b", Location: nyc})
	grid.Upsert(Point{ID: "a", Location: nyc})
	grid.Upsert(Point{ID: "c", Location: nyc})

	matches := grid.Nearby(nyc, 1)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if matches[i].PlaceID != id {
			t.Errorf("matches[%d].PlaceID = %s, want %s", i, matches[i].PlaceID, id)
		}
	}
}

func TestSpatialGrid_Reload(t *testing.T) {
	t.Parallel()

	grid := NewSpatialGrid(50)
	grid.Upsert(Point{ID: "stale", Location: la})

	grid.Reload([]Point{
		{ID: "p1", Location: nyc},
		{ID: "p2", Location: newark},
	})

	if grid.Size() != 2 {
		t.Errorf("Size() after Reload = %d, want 2", grid.Size())
	}
	if len(grid.Nearby(la, 50)) != 0 {
		t.Error("stale entry should be gone after Reload")
	}
	if len(grid.Nearby(nyc, 50)) != 2 {
		t.Error("reloaded entries should be queryable")
	}
}

func TestSpatialGrid_Clear(t *testing.T) {
	t.Parallel()

	grid := NewSpatialGrid(50)
	grid.Upsert(Point{ID: "p1", Location: nyc})
	grid.Upsert(Point{ID: "p2", Location: la})

	grid.Clear()

	if grid.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", grid.Size())
	}
	if grid.NumCells() != 0 {
		t.Errorf("NumCells() after Clear = %d, want 0", grid.NumCells())
	}
}

func TestSpatialGrid_Concurrent(t *testing.T) {
	t.Parallel()

	grid := NewSpatialGrid(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				loc := models.LatLng{
					Lat: float64(id%90) - 45,
					Lng: float64(j%180) - 90,
				}
				grid.Upsert(Point{ID: fmt.Sprintf("p%d-%d", id, j), Location: loc})
				grid.Nearby(loc, 100)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkSpatialGrid_Nearby(b *testing.B) {
	grid := NewSpatialGrid(1)
	for i := 0; i < 10000; i++ {
		grid.Upsert(Point{
			ID: fmt.Sprintf("p%d", i),
			Location: models.LatLng{
				Lat: nyc.Lat + float64(i%100)*0.001,
				Lng: nyc.Lng + float64(i/100)*0.001,
			},
		})
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		grid.Nearby(nyc, 5)
	}
}
