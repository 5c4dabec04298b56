// Package geofence holds the geofence catalog, containment evaluation and
// edge-triggered entry/exit detection.
package geofence

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

var (
	ErrNotFound    = errors.New("geofence not found")
	ErrDuplicateID = errors.New("geofence id already exists")
)

// Registry is the in-memory geofence catalog shared by all tracking sessions.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	fences    map[string]models.Geofence
	maxRadius float64
	now       func() time.Time
}

// NewRegistry returns an empty registry enforcing maxRadius (meters).
func NewRegistry(maxRadius float64) *Registry {
	if maxRadius <= 0 {
		maxRadius = models.DefaultMaxRadiusMeters
	}
	return &Registry{
		fences:    make(map[string]models.Geofence),
		maxRadius: maxRadius,
		now:       time.Now,
	}
}

// MaxRadius returns the configured radius cap.
func (r *Registry) MaxRadius() float64 {
	return r.maxRadius
}

// Create adds a new geofence. CreatedAt is set when zero.
func (r *Registry) Create(g models.Geofence) (models.Geofence, error) {
	if err := g.Validate(r.maxRadius); err != nil {
		return models.Geofence{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fences[g.ID]; exists {
		return models.Geofence{}, fmt.Errorf("%w: %s", ErrDuplicateID, g.ID)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.now()
	}
	g.UpdatedAt = g.CreatedAt
	r.fences[g.ID] = g
	return g, nil
}

// Update replaces the definition for g.ID, keeping its CreatedAt.
func (r *Registry) Update(g models.Geofence) (models.Geofence, error) {
	if err := g.Validate(r.maxRadius); err != nil {
		return models.Geofence{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.fences[g.ID]
	if !ok {
		return models.Geofence{}, fmt.Errorf("%w: %s", ErrNotFound, g.ID)
	}
	g.CreatedAt = prev.CreatedAt
	g.UpdatedAt = r.now()
	r.fences[g.ID] = g
	return g, nil
}

// Delete removes a geofence.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fences[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.fences, id)
	return nil
}

// Get returns one geofence.
func (r *Registry) Get(id string) (models.Geofence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.fences[id]
	if !ok {
		return models.Geofence{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return g, nil
}

// List returns all geofences ordered by id.
func (r *Registry) List() []models.Geofence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Geofence, 0, len(r.fences))
	for _, g := range r.fences {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load replaces the catalog, e.g. from the store at startup. Invalid
// definitions are skipped and returned as a joined error.
func (r *Registry) Load(fences []models.Geofence) error {
	next := make(map[string]models.Geofence, len(fences))
	var errs []error
	for _, g := range fences {
		if err := g.Validate(r.maxRadius); err != nil {
			errs = append(errs, fmt.Errorf("geofence %q: %w", g.ID, err))
			continue
		}
		next[g.ID] = g
	}
	r.mu.Lock()
	r.fences = next
	r.mu.Unlock()
	return errors.Join(errs...)
}

// Nearest returns the geofence whose center is closest to c.
func (r *Registry) Nearest(c geo.Coordinate) (models.Geofence, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best    models.Geofence
		minDist = math.MaxFloat64
		found   bool
	)
	for _, g := range r.fences {
		if g.Disabled {
			continue
		}
		d := geo.DistanceMeters(c, g.Center)
		if d < minDist || (d == minDist && g.ID < best.ID) {
			best, minDist, found = g, d, true
		}
	}
	if !found {
		return models.Geofence{}, 0, ErrNotFound
	}
	return best, minDist, nil
}
