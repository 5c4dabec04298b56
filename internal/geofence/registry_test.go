package geofence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

func mainOffice() models.Geofence {
	return models.Geofence{
		ID:           "office-main",
		Name:         "Main Office",
		Center:       geo.Coordinate{Latitude: 21.355897, Longitude: 78.980604},
		RadiusMeters: 500,
		ZoneType:     models.ZoneOffice,
	}
}

func westBranch() models.Geofence {
	return models.Geofence{
		ID:           "office-branch1",
		Name:         "Branch Office - West",
		Center:       geo.Coordinate{Latitude: 21.315897, Longitude: 78.940604},
		RadiusMeters: 400,
		ZoneType:     models.ZoneBranch,
	}
}

func TestRegistry_CRUD(t *testing.T) {
	r := NewRegistry(0)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return created }

	g, err := r.Create(mainOffice())
	require.NoError(t, err)
	assert.Equal(t, created, g.CreatedAt)

	_, err = r.Create(mainOffice())
	assert.ErrorIs(t, err, ErrDuplicateID)

	updated := mainOffice()
	updated.RadiusMeters = 250
	r.now = func() time.Time { return created.Add(time.Hour) }
	g, err = r.Update(updated)
	require.NoError(t, err)
	assert.Equal(t, created, g.CreatedAt)
	assert.Equal(t, created.Add(time.Hour), g.UpdatedAt)

	got, err := r.Get("office-main")
	require.NoError(t, err)
	assert.Equal(t, 250.0, got.RadiusMeters)

	_, err = r.Update(westBranch())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Delete("office-main"))
	assert.ErrorIs(t, r.Delete("office-main"), ErrNotFound)
	_, err = r.Get("office-main")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry(300)
	_, err := r.Create(mainOffice())
	assert.ErrorIs(t, err, models.ErrInvalidGeofence)
	assert.Empty(t, r.List())
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry(0)
	_, _ = r.Create(westBranch())
	_, _ = r.Create(mainOffice())
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "office-branch1", list[0].ID)
	assert.Equal(t, "office-main", list[1].ID)
}

func TestRegistry_LoadSkipsInvalid(t *testing.T) {
	r := NewRegistry(0)
	bad := westBranch()
	bad.RadiusMeters = 0
	err := r.Load([]models.Geofence{mainOffice(), bad})
	assert.ErrorIs(t, err, models.ErrInvalidGeofence)
	assert.Len(t, r.List(), 1)
}

func TestRegistry_Nearest(t *testing.T) {
	r := NewRegistry(0)
	_, _, err := r.Nearest(geo.Coordinate{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _ = r.Create(mainOffice())
	_, _ = r.Create(westBranch())
	g, d, err := r.Nearest(geo.Coordinate{Latitude: 21.316, Longitude: 78.941})
	require.NoError(t, err)
	assert.Equal(t, "office-branch1", g.ID)
	assert.Less(t, d, 100.0)
}

func TestRegistry_NearestSkipsDisabled(t *testing.T) {
	r := NewRegistry(0)
	branch := westBranch()
	branch.Disabled = true
	_, err := r.Create(mainOffice())
	require.NoError(t, err)
	_, err = r.Create(branch)
	require.NoError(t, err)

	g, _, err := r.Nearest(geo.Coordinate{Latitude: 21.316, Longitude: 78.941})
	require.NoError(t, err)
	assert.Equal(t, "office-main", g.ID)

	require.NoError(t, r.Delete("office-main"))
	_, _, err = r.Nearest(geo.Coordinate{Latitude: 21.316, Longitude: 78.941})
	assert.ErrorIs(t, err, ErrNotFound)
}
