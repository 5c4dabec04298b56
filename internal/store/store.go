// Package store persists workers, geofences, attendance records, geofence
// events and location history in Postgres through gorm.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"geo_attend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the service uses.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&models.Worker{},
		&models.Geofence{},
		&models.AttendanceRecord{},
		&models.GeofenceEvent{},
		&models.LocationHistory{},
	)
}

// translate maps driver errors onto the package's sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicate
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// --- Workers ---

func (s *Store) CreateWorker(ctx context.Context, w *models.Worker) error {
	return translate(s.db.WithContext(ctx).Create(w).Error)
}

func (s *Store) WorkerByEmail(ctx context.Context, email string) (models.Worker, error) {
	var w models.Worker
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&w).Error
	return w, translate(err)
}

func (s *Store) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	var workers []models.Worker
	err := s.db.WithContext(ctx).Order("id").Find(&workers).Error
	return workers, translate(err)
}

// --- Geofences ---

// SaveGeofence inserts or updates g by ID.
func (s *Store) SaveGeofence(ctx context.Context, g *models.Geofence) error {
	return translate(s.db.WithContext(ctx).Save(g).Error)
}

func (s *Store) DeleteGeofence(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Geofence{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListGeofences(ctx context.Context) ([]models.Geofence, error) {
	var fences []models.Geofence
	err := s.db.WithContext(ctx).Order("id").Find(&fences).Error
	return fences, translate(err)
}

// --- Attendance ---

func (s *Store) SaveRecord(ctx context.Context, r *models.AttendanceRecord) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

// Records returns a worker's records with Date in [from, to], newest first.
func (s *Store) Records(ctx context.Context, workerID uint, from, to time.Time) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND date BETWEEN ? AND ?", workerID, from, to).
		Order("check_in_at desc").
		Find(&records).Error
	return records, translate(err)
}

// RecordsSince returns every worker's records with Date on or after since.
func (s *Store) RecordsSince(ctx context.Context, since time.Time) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := s.db.WithContext(ctx).
		Where("date >= ?", since).
		Order("check_in_at desc").
		Find(&records).Error
	return records, translate(err)
}

// --- Geofence events ---

func (s *Store) SaveEvent(ctx context.Context, e *models.GeofenceEvent) error {
	return translate(s.db.WithContext(ctx).Create(e).Error)
}

func (s *Store) Events(ctx context.Context, workerID uint, limit int) ([]models.GeofenceEvent, error) {
	var evs []models.GeofenceEvent
	err := s.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("at desc").
		Limit(limit).
		Find(&evs).Error
	return evs, translate(err)
}

// --- Location history ---

func (s *Store) SaveLocation(ctx context.Context, l *models.LocationHistory) error {
	return translate(s.db.WithContext(ctx).Create(l).Error)
}

func (s *Store) LastLocation(ctx context.Context, workerID uint) (models.LocationHistory, error) {
	var last models.LocationHistory
	err := s.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("timestamp desc").
		First(&last).Error
	return last, translate(err)
}

func (s *Store) LocationTrail(ctx context.Context, workerID uint, since time.Time) ([]models.LocationHistory, error) {
	var trail []models.LocationHistory
	err := s.db.WithContext(ctx).
		Where("worker_id = ? AND timestamp >= ?", workerID, since).
		Order("timestamp asc").
		Find(&trail).Error
	return trail, translate(err)
}
