package attendance

import (
	"sort"
	"sync"
	"time"

	"geo_attend/internal/events"
	"geo_attend/internal/models"
)

const (
	metricsWindowDays = 30
	// workingDaysPerWindow approximates the working days in a 30-day window.
	workingDaysPerWindow = 20
)

// Metrics summarises a worker's recent attendance.
type Metrics struct {
	TotalPresent        int        `json:"total_present"`
	TotalAbsent         int        `json:"total_absent"`
	TotalLate           int        `json:"total_late"`
	TotalWorkingMinutes float64    `json:"total_working_minutes"`
	AverageDailyMinutes float64    `json:"average_daily_minutes"`
	PunctualityRate     float64    `json:"punctuality_rate"`
	AttendanceRate      float64    `json:"attendance_rate"`
	LastCheckIn         *time.Time `json:"last_check_in"`
	LastCheckOut        *time.Time `json:"last_check_out"`
}

// Ledger keeps completed records per worker, newest first. It implements
// events.Sink so it can be fed from the dispatcher.
type Ledger struct {
	mu      sync.RWMutex
	records map[uint][]models.AttendanceRecord
	now     func() time.Time
	loc     *time.Location
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLedgerLocation sets the zone record dates are kept in. It should match
// the Policy location used to close sessions.
func WithLedgerLocation(loc *time.Location) LedgerOption {
	return func(l *Ledger) { l.loc = loc }
}

// NewLedger returns an empty ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{records: make(map[uint][]models.AttendanceRecord), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stores a record.
func (l *Ledger) Append(r models.AttendanceRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := append(l.records[r.WorkerID], r)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CheckInAt.After(list[j].CheckInAt) })
	l.records[r.WorkerID] = list
}

// Publish appends completed records.
func (l *Ledger) Publish(ev events.Event) {
	if ev.Type == events.TypeRecordCompleted && ev.Record != nil {
		l.Append(*ev.Record)
	}
}

// All returns every record for workerID, newest first.
func (l *Ledger) All(workerID uint) []models.AttendanceRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.AttendanceRecord(nil), l.records[workerID]...)
}

// ForDate returns records whose Date falls on the same calendar day as day.
func (l *Ledger) ForDate(workerID uint, day time.Time) []models.AttendanceRecord {
	y, m, d := day.Date()
	var out []models.AttendanceRecord
	for _, r := range l.All(workerID) {
		ry, rm, rd := r.Date.In(day.Location()).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, r)
		}
	}
	return out
}

// Between returns records with from <= Date <= to.
func (l *Ledger) Between(workerID uint, from, to time.Time) []models.AttendanceRecord {
	var out []models.AttendanceRecord
	for _, r := range l.All(workerID) {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out
}

// Metrics computes the summary over the last 30 calendar days, counting the
// whole of the first day.
func (l *Ledger) Metrics(workerID uint) Metrics {
	now := l.now()
	from := dayOf(now.AddDate(0, 0, -metricsWindowDays), l.loc)
	return Summarize(l.Between(workerID, from, now))
}

// Summarize computes metrics over records ordered newest first.
func Summarize(recent []models.AttendanceRecord) Metrics {
	var m Metrics
	for _, r := range recent {
		switch r.Status {
		case models.StatusPresent:
			m.TotalPresent++
		case models.StatusLate:
			m.TotalLate++
		}
		m.TotalWorkingMinutes += r.DurationMinutes
	}
	m.TotalAbsent = max(0, workingDaysPerWindow-m.TotalPresent-m.TotalLate)
	if n := len(recent); n > 0 {
		m.AverageDailyMinutes = m.TotalWorkingMinutes / float64(n)
		m.PunctualityRate = float64(m.TotalPresent) / float64(n) * 100
		m.AttendanceRate = float64(m.TotalPresent+m.TotalLate) / workingDaysPerWindow * 100
		in, out := recent[0].CheckInAt, recent[0].CheckOutAt
		m.LastCheckIn, m.LastCheckOut = &in, &out
	}
	return m
}
