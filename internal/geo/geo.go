// Package geo holds the geodesy helpers used by geofence evaluation and
// inertial dead reckoning.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

const (
	// EarthRadiusMeters is the mean radius used for haversine distances.
	EarthRadiusMeters = 6371000
	// EquatorialRadiusMeters is the WGS84 semi-major axis, used by Offset.
	EquatorialRadiusMeters = 6378137
	// SRID of every coordinate handled by the engine.
	SRID = 4326
)

// ErrInvalidCoordinate is returned by Validate for out-of-range input.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects NaN/Inf and values outside [-90,90] x [-180,180].
// DistanceMeters assumes its inputs already passed this check.
func Validate(c Coordinate) error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// DistanceMeters calculates the great-circle distance between two points.
func DistanceMeters(a, b Coordinate) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing calculates the initial bearing from a to b in degrees [0,360).
func Bearing(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	deltaLon := toRadians(b.Longitude - a.Longitude)

	y := math.Sin(deltaLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(deltaLon)

	return NormalizeDegrees(toDegrees(math.Atan2(y, x)))
}

// Offset moves c by meters along bearingRad (0 = north, clockwise) using the
// equirectangular small-distance approximation.
func Offset(c Coordinate, meters, bearingRad float64) Coordinate {
	dLat := meters * math.Cos(bearingRad) / EquatorialRadiusMeters
	dLng := meters * math.Sin(bearingRad) / (EquatorialRadiusMeters * math.Cos(toRadians(c.Latitude)))
	return Coordinate{
		Latitude:  c.Latitude + toDegrees(dLat),
		Longitude: c.Longitude + toDegrees(dLng),
	}
}

// NormalizeDegrees folds any angle into [0,360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// RadiansToDegrees converts an angle from radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return toDegrees(rad)
}

// Point returns c as a go-geom XY point (x = longitude) tagged with SRID 4326.
func Point(c Coordinate) *geom.Point {
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{c.Longitude, c.Latitude}).SetSRID(SRID)
}

// FromPoint is the inverse of Point.
func FromPoint(p *geom.Point) Coordinate {
	return Coordinate{Latitude: p.Y(), Longitude: p.X()}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
