package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var office = Coordinate{Latitude: 21.355897, Longitude: 78.980604}

func TestDistanceMeters_Symmetric(t *testing.T) {
	points := []Coordinate{
		office,
		{Latitude: 21.315897, Longitude: 78.940604},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 51.5074, Longitude: -0.1278},
		{Latitude: 89.9, Longitude: 179.9},
	}
	for _, a := range points {
		for _, b := range points {
			ab := DistanceMeters(a, b)
			ba := DistanceMeters(b, a)
			assert.InEpsilon(t, ab+1, ba+1, 1e-6, "distance %v->%v not symmetric", a, b)
		}
	}
}

func TestDistanceMeters_Zero(t *testing.T) {
	assert.Equal(t, 0.0, DistanceMeters(office, office))
}

func TestDistanceMeters_KnownValue(t *testing.T) {
	// One degree of latitude is R*pi/180.
	a := Coordinate{Latitude: 0, Longitude: 0}
	b := Coordinate{Latitude: 1, Longitude: 0}
	assert.InDelta(t, EarthRadiusMeters*math.Pi/180, DistanceMeters(a, b), 1e-6)
}

func TestBearing(t *testing.T) {
	origin := Coordinate{}
	assert.InDelta(t, 0, Bearing(origin, Coordinate{Latitude: 1}), 1e-9)
	assert.InDelta(t, 90, Bearing(origin, Coordinate{Longitude: 1}), 1e-9)
	assert.InDelta(t, 180, Bearing(origin, Coordinate{Latitude: -1}), 1e-9)
	assert.InDelta(t, 270, Bearing(origin, Coordinate{Longitude: -1}), 1e-9)
}

func TestOffset_NorthAndEast(t *testing.T) {
	north := Offset(office, 100, 0)
	assert.Greater(t, north.Latitude, office.Latitude)
	assert.InDelta(t, office.Longitude, north.Longitude, 1e-12)
	assert.InDelta(t, 100, DistanceMeters(office, north), 0.5)

	east := Offset(office, 100, math.Pi/2)
	assert.Greater(t, east.Longitude, office.Longitude)
	assert.InDelta(t, office.Latitude, east.Latitude, 1e-9)
	assert.InDelta(t, 100, DistanceMeters(office, east), 0.5)
}

func TestOffset_ZeroDistance(t *testing.T) {
	assert.Equal(t, office, Offset(office, 0, 1.234))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Coordinate
		wantErr bool
	}{
		{"office", office, false},
		{"corners", Coordinate{Latitude: -90, Longitude: 180}, false},
		{"lat too high", Coordinate{Latitude: 90.1}, true},
		{"lng too low", Coordinate{Longitude: -180.5}, true},
		{"nan", Coordinate{Latitude: math.NaN()}, true},
		{"inf", Coordinate{Longitude: math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.c)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinate)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeDegrees(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeDegrees(360))
	assert.Equal(t, 270.0, NormalizeDegrees(-90))
	assert.Equal(t, 45.0, NormalizeDegrees(765))
}

func TestPointRoundTrip(t *testing.T) {
	p := Point(office)
	require.Equal(t, SRID, p.SRID())
	assert.Equal(t, office.Longitude, p.X())
	assert.Equal(t, office, FromPoint(p))
}
