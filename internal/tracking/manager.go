package tracking

import (
	"sync"
	"time"

	"geo_attend/internal/events"
	"geo_attend/internal/geofence"
	"geo_attend/internal/location"
)

// Manager keeps one session per worker, each fed by a push-driven location
// feed and sensor feed that device connections write into.
type Manager struct {
	mu       sync.Mutex
	registry *geofence.Registry
	sink     events.Sink
	cfg      Config
	maxAge   time.Duration
	clock    func() time.Time
	sessions map[uint]*workerSession
}

type workerSession struct {
	session *Session
	feed    *location.Feed
	sensors *location.SensorFeed
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxFixAge lets CurrentFix reuse a pushed fix no older than d.
func WithMaxFixAge(d time.Duration) ManagerOption {
	return func(m *Manager) { m.maxAge = d }
}

// WithManagerClock overrides time.Now for every session the manager creates.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = now }
}

func NewManager(registry *geofence.Registry, sink events.Sink, cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		sink:     sink,
		cfg:      cfg,
		clock:    time.Now,
		sessions: make(map[uint]*workerSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) get(workerID uint) *workerSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ws, ok := m.sessions[workerID]; ok {
		return ws
	}
	feedOpts := []location.FeedOption{location.WithClock(m.clock)}
	if m.maxAge > 0 {
		feedOpts = append(feedOpts, location.WithMaxFixAge(m.maxAge))
	}
	ws := &workerSession{
		feed:    location.NewFeed(workerID, feedOpts...),
		sensors: location.NewSensorFeed(),
	}
	ws.session = NewSession(workerID, m.registry, ws.feed, ws.sensors, m.sink, m.cfg, WithClock(m.clock))
	m.sessions[workerID] = ws
	return ws
}

// Session returns the worker's session, creating it on first use.
func (m *Manager) Session(workerID uint) *Session {
	return m.get(workerID).session
}

// Feeds returns the worker's location and sensor feeds.
func (m *Manager) Feeds(workerID uint) (*location.Feed, *location.SensorFeed) {
	ws := m.get(workerID)
	return ws.feed, ws.sensors
}

// Workers lists the workers with a session.
func (m *Manager) Workers() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uint, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uint]*workerSession)
	m.mu.Unlock()

	for _, ws := range sessions {
		ws.session.Close()
	}
}
