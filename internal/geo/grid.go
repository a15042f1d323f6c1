// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package geo

import (
	"math"
	"sync"

	"github.com/convene-app/convene/internal/models"
)

// SpatialGrid divides geographic space into cells for fast proximity
// queries over stored places. Instead of O(n) comparisons, a radius
// query only inspects cells overlapping the bounding box and filters
// the survivors by exact haversine distance.
//
// The grid is a read replica of place identity: it is rebuilt from the
// store at startup and kept current by place writes. It holds ID, name
// and position only; stats always come from the store.
type SpatialGrid struct {
	mu       sync.RWMutex
	cells    map[cellKey]*cell
	points   map[string]*gridPoint
	cellSize float64 // cell edge in degrees
}

type cellKey struct {
	X, Y int
}

type cell struct {
	points []*gridPoint
}

type gridPoint struct {
	Point
	key cellKey
}

// NewSpatialGrid creates a grid with the given approximate cell edge in
// kilometers. Smaller cells mean tighter candidate sets but more cells
// per radius query.
func NewSpatialGrid(cellSizeKm float64) *SpatialGrid {
	if cellSizeKm <= 0 {
		cellSizeKm = 1
	}

	// 1 degree is roughly 111km at the equator.
	return &SpatialGrid{
		cells:    make(map[cellKey]*cell),
		points:   make(map[string]*gridPoint),
		cellSize: cellSizeKm / 111.0,
	}
}

func (g *SpatialGrid) keyFor(loc models.LatLng) cellKey {
	lng := loc.Lng
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}

	return cellKey{
		X: int(math.Floor(lng / g.cellSize)),
		Y: int(math.Floor(loc.Lat / g.cellSize)),
	}
}

// Upsert adds a place to the grid, replacing any existing entry with
// the same ID (places can move when their record is corrected).
func (g *SpatialGrid) Upsert(p Point) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upsertLocked(p)
}

func (g *SpatialGrid) upsertLocked(p Point) {
	if existing, ok := g.points[p.ID]; ok {
		g.removeFromCellLocked(existing)
	}

	gp := &gridPoint{Point: p, key: g.keyFor(p.Location)}

	c, ok := g.cells[gp.key]
	if !ok {
		c = &cell{points: make([]*gridPoint, 0, 4)}
		g.cells[gp.key] = c
	}
	c.points = append(c.points, gp)
	g.points[p.ID] = gp
}

// Remove drops a place from the grid. Returns false when the ID was
// not indexed.
func (g *SpatialGrid) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	gp, ok := g.points[id]
	if !ok {
		return false
	}

	g.removeFromCellLocked(gp)
	delete(g.points, id)
	return true
}

func (g *SpatialGrid) removeFromCellLocked(gp *gridPoint) {
	c, ok := g.cells[gp.key]
	if !ok {
		return
	}

	for i, p := range c.points {
		if p.ID == gp.ID {
			c.points[i] = c.points[len(c.points)-1]
			c.points = c.points[:len(c.points)-1]
			break
		}
	}

	if len(c.points) == 0 {
		delete(g.cells, gp.key)
	}
}

// Reload replaces the entire index in one critical section. The
// maintenance service calls this after scanning the store.
func (g *SpatialGrid) Reload(points []Point) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cells = make(map[cellKey]*cell)
	g.points = make(map[string]*gridPoint, len(points))
	for _, p := range points {
		g.upsertLocked(p)
	}
}

// Nearby returns all indexed places within radiusKm of origin, ordered
// by distance then place ID.
func (g *SpatialGrid) Nearby(origin models.LatLng, radiusKm float64) []Match {
	g.mu.RLock()
	defer g.mu.RUnlock()

	span := int(math.Ceil(radiusKm/111.0/g.cellSize)) + 1
	center := g.keyFor(origin)

	var matches []Match
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			c, ok := g.cells[cellKey{X: center.X + dx, Y: center.Y + dy}]
			if !ok {
				continue
			}

			for _, p := range c.points {
				dist := Haversine(origin, p.Location)
				if dist <= radiusKm {
					matches = append(matches, Match{
						PlaceID:    p.ID,
						Name:       p.Name,
						Address:    p.Address,
						Location:   p.Location,
						DistanceKm: dist,
					})
				}
			}
		}
	}

	sortMatches(matches)
	return matches
}

// Size returns the number of indexed places.
func (g *SpatialGrid) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.points)
}

// NumCells returns the number of non-empty cells.
func (g *SpatialGrid) NumCells() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}

// Clear removes all indexed places.
func (g *SpatialGrid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cells = make(map[cellKey]*cell)
	g.points = make(map[string]*gridPoint)
}
