// Package attendance implements the check-in/check-out session state machine
// and the in-memory ledger of completed records.
package attendance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"geo_attend/internal/events"
	"geo_attend/internal/models"
)

var (
	ErrNoActiveGeofence = errors.New("no active geofence")
	ErrNoLocation       = errors.New("no location available")
	ErrAlreadyCheckedIn = errors.New("already checked in")
	ErrNotCheckedIn     = errors.New("not checked in")
	ErrOutsideGeofence  = errors.New("outside the active geofence")

	ErrGeofenceDisabled      = errors.New("geofence is disabled")
	ErrDayNotAllowed         = errors.New("check-in not allowed on this day")
	ErrAlreadyCheckedInToday = errors.New("already checked in today")
)

// FlagOutsideHours marks check-ins accepted outside a geofence's opening hours.
const FlagOutsideHours = "Check-in outside allowed time window"


// DefaultLateAfter is 09:00 local time.
const DefaultLateAfter = 9 * time.Hour

// Policy controls record classification.
type Policy struct {
	// LateAfter is the time of day after which a check-in is late. Only hours
	// and minutes are compared.
	LateAfter time.Duration
	// Location is the timezone the time of day is read in.
	Location *time.Location
	// OncePerDay refuses a second check-in on the same local day.
	OncePerDay bool
}

// DefaultPolicy marks check-ins after 09:00 local time as late.
func DefaultPolicy() Policy {
	return Policy{LateAfter: DefaultLateAfter, Location: time.Local}
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Classify returns late when checkIn's local hour:minute is after the threshold.
func (p Policy) Classify(checkIn time.Time) models.AttendanceStatus {
	local := checkIn.In(p.location())
	minuteOfDay := local.Hour()*60 + local.Minute()
	if minuteOfDay > int(p.LateAfter/time.Minute) {
		return models.StatusLate
	}
	return models.StatusPresent
}

// Admit applies fence's schedule to a check-in at t. A disabled fence or a
// day outside AllowedDays is refused; a time outside the opening hours is
// accepted with a flag.
func (p Policy) Admit(fence models.Geofence, t time.Time) (string, error) {
	local := t.In(p.location())
	switch {
	case fence.Disabled:
		return "", ErrGeofenceDisabled
	case !fence.AllowsDay(local):
		return "", ErrDayNotAllowed
	case !fence.WithinHours(local):
		return FlagOutsideHours, nil
	}
	return "", nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// Machine holds at most one open session. It is driven from a single
// goroutine (the tracking loop) and does no locking of its own.
type Machine struct {
	workerID uint
	policy   Policy
	sink     events.Sink
	clock    func() time.Time
	newID    func() string
	open     *models.AttendanceSession
	// lastCheckIn backs Policy.OncePerDay.
	lastCheckIn time.Time
}

// Option configures a Machine.
type Option func(*Machine)

func WithPolicy(p Policy) Option         { return func(m *Machine) { m.policy = p } }
func WithSink(s events.Sink) Option      { return func(m *Machine) { m.sink = s } }
func WithClock(c func() time.Time) Option { return func(m *Machine) { m.clock = c } }

// NewMachine returns an idle machine for workerID.
func NewMachine(workerID uint, opts ...Option) *Machine {
	m := &Machine{
		workerID: workerID,
		policy:   DefaultPolicy(),
		sink:     events.Discard,
		clock:    time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns a copy of the open session, if any.
func (m *Machine) Current() (models.AttendanceSession, bool) {
	if m.open == nil {
		return models.AttendanceSession{}, false
	}
	return *m.open, true
}

// CheckIn opens a session at geofenceID. State is unchanged on error.
func (m *Machine) CheckIn(geofenceID string, sample *models.PositionSample) (models.AttendanceSession, error) {
	now := m.clock()
	if err := m.precheck(geofenceID, sample, now); err != nil {
		return models.AttendanceSession{}, err
	}
	return m.openAt(geofenceID, sample, now, ""), nil
}

// Admit opens a session at fence after applying its schedule with
// Policy.Admit. State is unchanged on error.
func (m *Machine) Admit(fence models.Geofence, sample *models.PositionSample) (models.AttendanceSession, error) {
	now := m.clock()
	if err := m.precheck(fence.ID, sample, now); err != nil {
		return models.AttendanceSession{}, err
	}
	flag, err := m.policy.Admit(fence, now)
	if err != nil {
		return models.AttendanceSession{}, err
	}
	return m.openAt(fence.ID, sample, now, flag), nil
}

func (m *Machine) precheck(geofenceID string, sample *models.PositionSample, now time.Time) error {
	switch {
	case geofenceID == "":
		return ErrNoActiveGeofence
	case sample == nil:
		return ErrNoLocation
	case m.open != nil:
		return ErrAlreadyCheckedIn
	case m.policy.OncePerDay && !m.lastCheckIn.IsZero() &&
		dayOf(m.lastCheckIn, m.policy.Location).Equal(dayOf(now, m.policy.Location)):
		return ErrAlreadyCheckedInToday
	}
	return nil
}

func (m *Machine) openAt(geofenceID string, sample *models.PositionSample, now time.Time, flag string) models.AttendanceSession {
	s := models.AttendanceSession{
		WorkerID:        m.workerID,
		GeofenceID:      geofenceID,
		CheckInAt:       now,
		CheckInLocation: *sample,
		Flag:            flag,
	}
	m.open = &s
	m.lastCheckIn = now

	m.sink.Publish(events.Event{
		Type:     events.TypeSessionOpened,
		WorkerID: m.workerID,
		At:       s.CheckInAt,
		Session:  &s,
	})
	return s
}

// CheckOut closes the open session and returns its record. State is
// unchanged on error.
func (m *Machine) CheckOut(sample *models.PositionSample) (models.AttendanceRecord, error) {
	switch {
	case m.open == nil:
		return models.AttendanceRecord{}, ErrNotCheckedIn
	case sample == nil:
		return models.AttendanceRecord{}, ErrNoLocation
	}

	closed := *m.open
	checkOutAt := m.clock()
	closed.CheckOutAt = &checkOutAt
	closed.CheckOutLocation = sample

	status := m.policy.Classify(closed.CheckInAt)
	record := models.AttendanceRecord{
		ID:               m.newID(),
		WorkerID:         m.workerID,
		Date:             dayOf(closed.CheckInAt, m.policy.Location),
		CheckInAt:        closed.CheckInAt,
		CheckOutAt:       checkOutAt,
		CheckInLocation:  closed.CheckInLocation,
		CheckOutLocation: *sample,
		GeofenceID:       closed.GeofenceID,
		DurationMinutes:  checkOutAt.Sub(closed.CheckInAt).Minutes(),
		Status:           status,
		Flagged:          closed.Flag != "",
	}
	var notes []string
	if status == models.StatusLate {
		notes = append(notes, "Late arrival")
	}
	if closed.Flag != "" {
		notes = append(notes, closed.Flag)
	}
	record.Notes = strings.Join(notes, "; ")
	m.open = nil

	m.sink.Publish(events.Event{
		Type:     events.TypeSessionClosed,
		WorkerID: m.workerID,
		At:       checkOutAt,
		Session:  &closed,
	})
	m.sink.Publish(events.Event{
		Type:     events.TypeRecordCompleted,
		WorkerID: m.workerID,
		At:       checkOutAt,
		Record:   &record,
	})
	return record, nil
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
