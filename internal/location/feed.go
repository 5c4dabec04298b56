package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

// Feed is a Source whose fixes are pushed in by a device connection.
//
// Subscriptions outlive permission changes: nothing is delivered while
// permission is denied, and delivery resumes with the first fix pushed after
// it is granted again.
type Feed struct {
	workerID  uint
	maxFixAge time.Duration
	now       func() time.Time

	// deliverMu orders fan-out so subscribers see fixes and failures in the
	// order the feed accepted them.
	deliverMu sync.Mutex

	mu         sync.Mutex
	permission bool
	latest     *models.PositionSample
	waiters    []chan models.PositionSample
	subs       map[*feedSubscriber]struct{}
}

type feedSubscriber struct {
	opts      SubscribeOptions
	limiter   *rate.Limiter
	last      *models.PositionSample
	onSample  func(models.PositionSample)
	onFailure func(error)
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithMaxFixAge lets CurrentFix answer from the latest pushed fix when it is
// younger than d instead of waiting for a new one.
func WithMaxFixAge(d time.Duration) FeedOption {
	return func(f *Feed) { f.maxFixAge = d }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) FeedOption {
	return func(f *Feed) { f.now = now }
}

// NewFeed returns a Feed with permission granted until the device says otherwise.
func NewFeed(workerID uint, opts ...FeedOption) *Feed {
	f := &Feed{
		workerID:   workerID,
		now:        time.Now,
		permission: true,
		subs:       make(map[*feedSubscriber]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RequestPermission reports the permission last declared by the device.
func (f *Feed) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission, nil
}

// CurrentFix waits up to timeout for the next pushed fix.
func (f *Feed) CurrentFix(ctx context.Context, timeout time.Duration) (models.PositionSample, error) {
	f.mu.Lock()
	if !f.permission {
		f.mu.Unlock()
		return models.PositionSample{}, ErrPermissionDenied
	}
	if f.latest != nil && f.maxFixAge > 0 && f.now().Sub(f.latest.CapturedAt) <= f.maxFixAge {
		fix := *f.latest
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan models.PositionSample, 1)
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case fix := <-ch:
		return fix, nil
	case <-timer.C:
		f.dropWaiter(ch)
		return models.PositionSample{}, ErrFixTimeout
	case <-ctx.Done():
		f.dropWaiter(ch)
		return models.PositionSample{}, ctx.Err()
	}
}

func (f *Feed) dropWaiter(ch chan models.PositionSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// Subscribe registers listeners for pushed fixes and source failures. It
// succeeds while permission is denied; fixes flow once it is granted.
func (f *Feed) Subscribe(opts SubscribeOptions, onSample func(models.PositionSample), onFailure func(error)) (Subscription, error) {
	if onSample == nil {
		return nil, fmt.Errorf("subscribe: nil sample callback")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &feedSubscriber{opts: opts, onSample: onSample, onFailure: onFailure}
	sub.reset()
	f.subs[sub] = struct{}{}

	var once sync.Once
	return cancelFunc(func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, sub)
			f.mu.Unlock()
		})
	}), nil
}

// Push accepts a fix from the device and fans it out.
func (f *Feed) Push(sample models.PositionSample) error {
	if err := geo.Validate(sample.Coordinate); err != nil {
		return err
	}
	sample.Source = models.SourceGPS

	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	if !f.permission {
		f.mu.Unlock()
		return ErrPermissionDenied
	}
	f.latest = &sample
	waiters := f.waiters
	f.waiters = nil

	var deliver []*feedSubscriber
	for sub := range f.subs {
		if sub.accept(sample) {
			deliver = append(deliver, sub)
		}
	}
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- sample
	}
	for _, sub := range deliver {
		sub.onSample(sample)
	}
	return nil
}

// accept applies the distance and interval filters. Called with f.mu held.
func (s *feedSubscriber) accept(sample models.PositionSample) bool {
	if s.last != nil && s.opts.MinDistanceMeters > 0 &&
		geo.DistanceMeters(s.last.Coordinate, sample.Coordinate) < s.opts.MinDistanceMeters {
		return false
	}
	if s.limiter != nil && !s.limiter.AllowN(sample.CapturedAt, 1) {
		return false
	}
	s.last = &sample
	return true
}

// reset clears the filters so the next fix is delivered unconditionally.
func (s *feedSubscriber) reset() {
	s.last = nil
	s.limiter = nil
	if s.opts.Interval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(s.opts.Interval), 1)
	}
}

// SetPermission records the device's permission state. Revoking it is
// reported to subscribers as ErrPermissionDenied.
func (f *Feed) SetPermission(granted bool) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	changed := f.permission != granted
	f.permission = granted
	f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"worker_id": f.workerID,
		"granted":   granted,
	}).Info("Device location permission updated.")

	if changed && !granted {
		f.fail(ErrPermissionDenied)
	}
}

// Fail reports a source-side failure (e.g. the device lost its fix). The
// next fix after a failure bypasses the subscription filters, so a worker
// who has not moved still gets a fresh fix through.
func (f *Feed) Fail(err error) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()
	f.fail(err)
}

func (f *Feed) fail(err error) {
	f.mu.Lock()
	var notify []func(error)
	for sub := range f.subs {
		sub.reset()
		if sub.onFailure != nil {
			notify = append(notify, sub.onFailure)
		}
	}
	f.mu.Unlock()

	logrus.WithError(err).WithField("worker_id", f.workerID).Warn("Location source failure.")
	for _, fn := range notify {
		fn(err)
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
