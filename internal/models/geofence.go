package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twpayne/go-geom/encoding/wkb"
	"gorm.io/gorm"

	"geo_attend/internal/geo"
)

// DefaultMaxRadiusMeters caps geofence radii unless configured otherwise.
const DefaultMaxRadiusMeters = 5000

// ErrInvalidGeofence is returned when a geofence definition is unusable.
var ErrInvalidGeofence = errors.New("invalid geofence")

// ZoneType classifies a geofence.
type ZoneType string

const (
	ZoneOffice ZoneType = "office"
	ZoneBranch ZoneType = "branch"
	ZoneField  ZoneType = "field"
)

// Geofence is a circular zone. Center is also kept as a WKB point so the
// table can be indexed by PostGIS.
type Geofence struct {
	ID           string         `json:"id" gorm:"primaryKey;size:64"`
	Name         string         `json:"name"`
	Center       geo.Coordinate `json:"center" gorm:"embedded;embeddedPrefix:center_"`
	CenterWKB    []byte         `json:"-" gorm:"type:bytea"`
	RadiusMeters float64        `json:"radius_meters"`
	ZoneType     ZoneType       `json:"zone_type"`
	Address      string         `json:"address,omitempty"`

	// Disabled fences are still monitored but refuse check-ins and are
	// skipped by nearest-fence lookups.
	Disabled bool `json:"disabled"`
	// OpensAt and ClosesAt ("HH:MM") bound the hours check-ins are accepted
	// without a flag. Both empty means any time. ClosesAt before OpensAt
	// wraps past midnight.
	OpensAt  string `json:"opens_at,omitempty"`
	ClosesAt string `json:"closes_at,omitempty"`
	// AllowedDays lists the weekdays check-ins are accepted. Empty means every day.
	AllowedDays []time.Weekday `json:"allowed_days,omitempty" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the id, center, zone type and 0 < radius <= maxRadius.
func (g Geofence) Validate(maxRadius float64) error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidGeofence)
	}
	if err := geo.Validate(g.Center); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeofence, err)
	}
	if !(g.RadiusMeters > 0) {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidGeofence)
	}
	if maxRadius > 0 && g.RadiusMeters > maxRadius {
		return fmt.Errorf("%w: radius %.0fm exceeds %.0fm", ErrInvalidGeofence, g.RadiusMeters, maxRadius)
	}
	switch g.ZoneType {
	case ZoneOffice, ZoneBranch, ZoneField:
	default:
		return fmt.Errorf("%w: unknown zone type %q", ErrInvalidGeofence, g.ZoneType)
	}
	if (g.OpensAt == "") != (g.ClosesAt == "") {
		return fmt.Errorf("%w: opens_at and closes_at must be set together", ErrInvalidGeofence)
	}
	for _, clock := range []string{g.OpensAt, g.ClosesAt} {
		if clock == "" {
			continue
		}
		if _, err := minuteOfDay(clock); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeofence, err)
		}
	}
	for _, d := range g.AllowedDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", ErrInvalidGeofence, d)
		}
	}
	return nil
}

// AllowsDay reports whether t's weekday is an allowed check-in day.
func (g Geofence) AllowsDay(t time.Time) bool {
	if len(g.AllowedDays) == 0 {
		return true
	}
	for _, d := range g.AllowedDays {
		if d == t.Weekday() {
			return true
		}
	}
	return false
}

// WithinHours reports whether t's hour and minute fall inside the opening
// hours, bounds included. Invalid hours never match.
func (g Geofence) WithinHours(t time.Time) bool {
	if g.OpensAt == "" && g.ClosesAt == "" {
		return true
	}
	opens, err := minuteOfDay(g.OpensAt)
	if err != nil {
		return false
	}
	closes, err := minuteOfDay(g.ClosesAt)
	if err != nil {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if opens <= closes {
		return m >= opens && m <= closes
	}
	return m >= opens || m <= closes
}

func minuteOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// BeforeSave keeps CenterWKB in sync with Center.
func (g *Geofence) BeforeSave(tx *gorm.DB) error {
	b, err := wkb.Marshal(geo.Point(g.Center), binary.LittleEndian)
	if err != nil {
		return err
	}
	g.CenterWKB = b
	return nil
}

// GeofenceEvaluation is the containment result for one sample.
type GeofenceEvaluation struct {
	GeofenceID     string  `json:"geofence_id"`
	DistanceMeters float64 `json:"distance_meters"`
	IsInside       bool    `json:"is_inside"`
}

// EventKind is the direction of a boundary crossing.
type EventKind string

const (
	EventEntry EventKind = "entry"
	EventExit  EventKind = "exit"
)

// GeofenceEvent records one edge of the containment flag.
type GeofenceEvent struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	WorkerID       uint           `json:"worker_id" gorm:"index"`
	GeofenceID     string         `json:"geofence_id" gorm:"index"`
	Kind           EventKind      `json:"kind"`
	At             time.Time      `json:"at"`
	DistanceMeters float64        `json:"distance_meters"`
	Sample         PositionSample `json:"sample" gorm:"embedded;embeddedPrefix:sample_"`
}
