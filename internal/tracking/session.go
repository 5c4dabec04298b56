// Package tracking owns the per-worker tracking session: it feeds positions
// through geofence evaluation and edge detection, switches to inertial dead
// reckoning when fixes are unavailable, and serialises attendance commands.
//
// Every piece of mutable session state is touched only by the session's event
// loop goroutine. Public methods and source callbacks hand closures to that
// loop; nothing blocking ever runs on it.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"geo_attend/internal/attendance"
	"geo_attend/internal/events"
	"geo_attend/internal/geofence"
	"geo_attend/internal/inertial"
	"geo_attend/internal/location"
	"geo_attend/internal/models"
)

var (
	ErrClosed          = errors.New("tracking session closed")
	ErrAlreadyTracking = errors.New("tracking already started")
)

// Config holds the tunables shared by every session.
type Config struct {
	FixTimeout    time.Duration
	Subscribe     location.SubscribeOptions
	RequireInside bool
	Policy        attendance.Policy
}

// DefaultConfig mirrors the mobile client: 2 s / 5 m updates, 3 s fix timeout.
func DefaultConfig() Config {
	return Config{
		FixTimeout: 3 * time.Second,
		Subscribe:  location.SubscribeOptions{Interval: 2 * time.Second, MinDistanceMeters: 5},
		Policy:     attendance.DefaultPolicy(),
	}
}

// Status is a snapshot of a session for API consumers.
type Status struct {
	WorkerID         uint                       `json:"worker_id"`
	Tracking         bool                       `json:"tracking"`
	Mode             events.Mode                `json:"mode"`
	ActiveGeofenceID string                     `json:"active_geofence_id,omitempty"`
	Containment      string                     `json:"containment"`
	Location         *models.PositionSample     `json:"location,omitempty"`
	AccuracyLevel    string                     `json:"accuracy_level"`
	Evaluation       *models.GeofenceEvaluation `json:"evaluation,omitempty"`
	Session          *models.AttendanceSession  `json:"session,omitempty"`
	DroppedSamples   int                        `json:"dropped_samples"`
	InertialUpdates  int                        `json:"inertial_updates"`
}

// Session is one worker's tracking engine.
type Session struct {
	workerID uint
	cfg      Config
	registry *geofence.Registry
	source   location.Source
	sensors  location.SensorSource
	sink     events.Sink
	clock    func() time.Time

	// Loop-owned state.
	detector   *geofence.Detector
	machine    *attendance.Machine
	estimator  *inertial.Estimator
	activeID   string
	lastSample *models.PositionSample
	lastFix    *models.PositionSample
	lastEval   *models.GeofenceEvaluation
	mode       events.Mode
	tracking   bool
	generation int
	gpsSub     location.Subscription
	sensorSubs []location.Subscription
	dropped    int

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides time.Now for the session and its state machine.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.clock = now }
}

// NewSession builds a session and starts its event loop. Close releases it.
func NewSession(workerID uint, registry *geofence.Registry, source location.Source, sensors location.SensorSource, sink events.Sink, cfg Config, opts ...Option) *Session {
	if sink == nil {
		sink = events.Discard
	}
	s := &Session{
		workerID:  workerID,
		cfg:       cfg,
		registry:  registry,
		source:    source,
		sensors:   sensors,
		sink:      sink,
		clock:     time.Now,
		detector:  geofence.NewDetector(),
		estimator: inertial.New(),
		mode:      events.ModeIdle,
		cmds:      make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.machine = attendance.NewMachine(workerID,
		attendance.WithPolicy(cfg.Policy),
		attendance.WithSink(sink),
		attendance.WithClock(s.clock),
	)
	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.quit:
			s.release()
			return
		}
	}
}

// exec runs fn on the loop and waits for it.
func (s *Session) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(finished) }:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// post queues fn from a source callback without waiting for it to run.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.quit:
	}
}

// Close stops tracking and ends the event loop.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Start requests permission, tries to get a first fix and subscribes to
// updates. Without permission or a fix it falls back to dead reckoning from
// the last trusted fix; with no such fix it reports the session unavailable
// and returns an error wrapping inertial.ErrNoBaseline.
func (s *Session) Start(ctx context.Context) error {
	var (
		already bool
		gen     int
	)
	if err := s.exec(ctx, func() {
		already = s.tracking
		if !already {
			s.tracking = true
			s.generation++
			gen = s.generation
		}
	}); err != nil {
		return err
	}
	if already {
		return ErrAlreadyTracking
	}

	// Permission and first fix may block; keep them off the loop.
	var (
		failure error
		fix     *models.PositionSample
	)
	granted, err := s.source.RequestPermission(ctx)
	switch {
	case ctx.Err() != nil:
		s.abortStart(gen)
		return ctx.Err()
	case err != nil:
		failure = fmt.Errorf("%w: %v", location.ErrPermissionDenied, err)
	case !granted:
		failure = location.ErrPermissionDenied
	default:
		f, err := s.source.CurrentFix(ctx, s.cfg.FixTimeout)
		if ctx.Err() != nil {
			s.abortStart(gen)
			return ctx.Err()
		}
		if err != nil {
			failure = err
		} else {
			fix = &f
		}
	}

	var result error
	if err := s.exec(ctx, func() {
		if gen != s.generation {
			return
		}
		// Subscribe even without permission so fixes resume once it is granted.
		if err := s.subscribeGPS(gen); err != nil {
			if failure == nil {
				failure = err
			} else {
				logrus.WithError(err).WithField("worker_id", s.workerID).Warn("Location subscription failed.")
			}
		}
		if fix != nil && failure == nil {
			s.onFix(*fix)
			s.setMode(events.ModeGPS, "")
			return
		}
		if fix != nil {
			s.onFix(*fix)
		}
		result = s.enterFallback(gen, failure)
	}); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"worker_id": s.workerID,
		"failure":   failure,
	}).Info("Tracking started.")
	return result
}

func (s *Session) abortStart(gen int) {
	_ = s.exec(context.Background(), func() {
		if gen == s.generation {
			s.tracking = false
		}
	})
}

// Stop cancels every subscription and stops the estimator.
func (s *Session) Stop(ctx context.Context) error {
	return s.exec(ctx, func() {
		s.release()
		logrus.WithField("worker_id", s.workerID).Info("Tracking stopped.")
	})
}

// release runs on the loop.
func (s *Session) release() {
	s.generation++
	s.tracking = false
	if s.gpsSub != nil {
		s.gpsSub.Cancel()
		s.gpsSub = nil
	}
	s.exitFallback()
	if s.mode != events.ModeIdle {
		s.setMode(events.ModeIdle, "tracking stopped")
	}
}

func (s *Session) subscribeGPS(gen int) error {
	sub, err := s.source.Subscribe(s.cfg.Subscribe,
		func(sample models.PositionSample) {
			s.post(func() {
				if gen == s.generation {
					s.onFix(sample)
				}
			})
		},
		func(err error) {
			s.post(func() {
				if gen == s.generation {
					s.onSourceFailure(gen, err)
				}
			})
		},
	)
	if err != nil {
		return err
	}
	s.gpsSub = sub
	return nil
}

// onFix handles a trusted fix, leaving fallback if it was active.
func (s *Session) onFix(sample models.PositionSample) {
	sample.Source = models.SourceGPS
	if !s.apply(sample) {
		return
	}
	fix := sample
	s.lastFix = &fix
	if s.mode == events.ModeInertial || s.mode == events.ModeUnavailable {
		s.exitFallback()
		s.setMode(events.ModeGPS, "fix recovered")
	}
}

// onSourceFailure switches to dead reckoning. The GPS subscription stays
// open; its next fix ends the fallback.
func (s *Session) onSourceFailure(gen int, err error) {
	if s.mode == events.ModeInertial || s.mode == events.ModeUnavailable {
		return
	}
	_ = s.enterFallback(gen, err)
}

// enterFallback starts dead reckoning from the last trusted fix.
func (s *Session) enterFallback(gen int, reason error) error {
	reasonText := ""
	if reason != nil {
		reasonText = reason.Error()
	}
	if err := s.estimator.Start(s.lastFix); err != nil {
		s.setMode(events.ModeUnavailable, reasonText)
		if reason == nil {
			return err
		}
		return fmt.Errorf("%w: %w", reason, err)
	}
	if s.sensors != nil {
		subscribe := []func(func(models.SensorReading)) (location.Subscription, error){
			s.sensors.SubscribeAccelerometer,
			s.sensors.SubscribeGyroscope,
			s.sensors.SubscribeMagnetometer,
		}
		handlers := []func(models.SensorReading){s.onAccelerometer, s.estimator.Gyroscope, s.estimator.Magnetometer}
		for i, sub := range subscribe {
			handle := handlers[i]
			subscription, err := sub(func(r models.SensorReading) {
				s.post(func() {
					if gen == s.generation && s.estimator.Running() {
						handle(r)
					}
				})
			})
			if err != nil {
				logrus.WithError(err).WithField("worker_id", s.workerID).Warn("Sensor subscription failed.")
				continue
			}
			s.sensorSubs = append(s.sensorSubs, subscription)
		}
	}
	s.setMode(events.ModeInertial, reasonText)
	return nil
}

func (s *Session) exitFallback() {
	for _, sub := range s.sensorSubs {
		sub.Cancel()
	}
	s.sensorSubs = nil
	s.estimator.Stop()
}

func (s *Session) onAccelerometer(r models.SensorReading) {
	if sample, ok := s.estimator.Accelerometer(r); ok {
		s.apply(sample)
	}
}

// apply runs one sample through evaluation and edge detection. Samples not
// newer than the previous one are dropped.
func (s *Session) apply(sample models.PositionSample) bool {
	if s.lastSample != nil && !sample.CapturedAt.After(s.lastSample.CapturedAt) {
		s.dropped++
		logrus.WithFields(logrus.Fields{
			"worker_id":   s.workerID,
			"captured_at": sample.CapturedAt,
			"last":        s.lastSample.CapturedAt,
		}).Debug("Dropping out-of-order position sample.")
		return false
	}
	s.lastSample = &sample

	ev := events.Event{
		Type:     events.TypePositionUpdated,
		WorkerID: s.workerID,
		At:       sample.CapturedAt,
		Position: &sample,
	}

	if fence, ok := s.activeFence(); ok {
		eval := geofence.Evaluate(sample, fence)
		s.lastEval = &eval
		ev.Evaluation = &eval
		s.sink.Publish(ev)

		if transition, fired := s.detector.Observe(eval, sample, sample.CapturedAt); fired {
			transition.WorkerID = s.workerID
			s.sink.Publish(events.Event{
				Type:       events.TypeGeofenceTransition,
				WorkerID:   s.workerID,
				At:         transition.At,
				Transition: &transition,
			})
		}
		return true
	}
	s.sink.Publish(ev)
	return true
}

// activeFence looks up the active geofence, dropping it if it was deleted.
func (s *Session) activeFence() (models.Geofence, bool) {
	if s.activeID == "" {
		return models.Geofence{}, false
	}
	fence, err := s.registry.Get(s.activeID)
	if err != nil {
		logrus.WithField("geofence_id", s.activeID).Warn("Active geofence no longer exists, clearing.")
		s.activeID = ""
		s.lastEval = nil
		s.detector.Reset("")
		return models.Geofence{}, false
	}
	return fence, true
}

func (s *Session) setMode(mode events.Mode, reason string) {
	if s.mode == mode {
		return
	}
	s.mode = mode
	s.sink.Publish(events.Event{
		Type:         events.TypeAvailabilityChanged,
		WorkerID:     s.workerID,
		At:           s.clock(),
		Availability: &events.Availability{Mode: mode, Reason: reason},
	})
}

// currentLocation is the latest sample while positions are flowing.
func (s *Session) currentLocation() *models.PositionSample {
	if !s.tracking || s.lastSample == nil {
		return nil
	}
	if s.mode != events.ModeGPS && s.mode != events.ModeInertial {
		return nil
	}
	sample := *s.lastSample
	return &sample
}

// SetActiveGeofence selects the geofence to evaluate; "" clears it.
// Selecting a different geofence resets edge detection.
func (s *Session) SetActiveGeofence(ctx context.Context, id string) error {
	var result error
	err := s.exec(ctx, func() {
		if id == "" {
			s.activeID = ""
			s.lastEval = nil
			s.detector.Reset("")
			return
		}
		if _, err := s.registry.Get(id); err != nil {
			result = err
			return
		}
		if id != s.activeID {
			s.activeID = id
			s.lastEval = nil
			s.detector.Reset(id)
		}
	})
	if err != nil {
		return err
	}
	return result
}

// ActiveGeofence returns the active geofence definition, if any.
func (s *Session) ActiveGeofence(ctx context.Context) (models.Geofence, bool, error) {
	var (
		fence models.Geofence
		ok    bool
	)
	err := s.exec(ctx, func() { fence, ok = s.activeFence() })
	return fence, ok, err
}

// CheckIn opens an attendance session at the active geofence using the
// current location, subject to the geofence's schedule.
func (s *Session) CheckIn(ctx context.Context) (models.AttendanceSession, error) {
	var (
		session models.AttendanceSession
		result  error
	)
	err := s.exec(ctx, func() {
		fence, hasFence := s.activeFence()
		sample := s.currentLocation()
		_, open := s.machine.Current()
		if s.cfg.RequireInside && hasFence && sample != nil && !open {
			if !geofence.Evaluate(*sample, fence).IsInside {
				result = attendance.ErrOutsideGeofence
				return
			}
		}
		if hasFence {
			session, result = s.machine.Admit(fence, sample)
			return
		}
		session, result = s.machine.CheckIn("", sample)
	})
	if err != nil {
		return models.AttendanceSession{}, err
	}
	return session, result
}

// CheckOut closes the open attendance session using the current location.
func (s *Session) CheckOut(ctx context.Context) (models.AttendanceRecord, error) {
	var (
		record models.AttendanceRecord
		result error
	)
	err := s.exec(ctx, func() {
		record, result = s.machine.CheckOut(s.currentLocation())
	})
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	return record, result
}

// Status returns a snapshot of the session.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.exec(ctx, func() {
		_, hasFence := s.activeFence()
		_, containment := s.detector.State()
		st = Status{
			WorkerID:        s.workerID,
			Tracking:        s.tracking,
			Mode:            s.mode,
			Containment:     containment.String(),
			Location:        s.currentLocation(),
			DroppedSamples:  s.dropped,
			InertialUpdates: s.estimator.Updates(),
		}
		if hasFence {
			st.ActiveGeofenceID = s.activeID
			if s.lastEval != nil {
				eval := *s.lastEval
				st.Evaluation = &eval
			}
		}
		if st.Location != nil {
			st.AccuracyLevel = models.AccuracyLevel(st.Location.AccuracyMeters)
		} else {
			st.AccuracyLevel = models.AccuracyLevel(nil)
		}
		if open, ok := s.machine.Current(); ok {
			st.Session = &open
		}
	})
	return st, err
}
