package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo_attend/internal/attendance"
	"geo_attend/internal/controllers"
	"geo_attend/internal/events"
	"geo_attend/internal/geo"
	"geo_attend/internal/geofence"
	"geo_attend/internal/middleware"
	"geo_attend/internal/models"
	"geo_attend/internal/routes"
	"geo_attend/internal/store"
	"geo_attend/internal/tracking"
)

type memWorkers struct {
	mu      sync.Mutex
	byEmail map[string]models.Worker
	nextID  uint
}

func (m *memWorkers) CreateWorker(_ context.Context, w *models.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[w.Email]; ok {
		return store.ErrDuplicate
	}
	m.nextID++
	w.ID = m.nextID
	m.byEmail[w.Email] = *w
	return nil
}

func (m *memWorkers) WorkerByEmail(_ context.Context, email string) (models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byEmail[email]
	if !ok {
		return models.Worker{}, store.ErrNotFound
	}
	return w, nil
}

func (m *memWorkers) ListWorkers(context.Context) ([]models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Worker
	for _, w := range m.byEmail {
		out = append(out, w)
	}
	return out, nil
}

type testServer struct {
	api    *controllers.API
	router *gin.Engine
	worker string
	admin  string
}

const workerID = 7

var officeCenter = geo.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := geofence.NewRegistry(0)
	ledger := attendance.NewLedger(attendance.WithLedgerLocation(time.UTC))
	notifications := events.NewNotificationCenter()
	sink := events.SinkFunc(func(ev events.Event) {
		ledger.Publish(ev)
		notifications.Publish(ev)
	})
	cfg := tracking.DefaultConfig()
	cfg.FixTimeout = 20 * time.Millisecond
	cfg.Subscribe.Interval = 0
	cfg.Policy.Location = time.UTC
	manager := tracking.NewManager(registry, sink, cfg, tracking.WithMaxFixAge(time.Minute))
	t.Cleanup(manager.Close)

	hub := events.NewHub(16)
	t.Cleanup(hub.Close)

	api := &controllers.API{
		Workers:       &memWorkers{byEmail: map[string]models.Worker{}},
		Auth:          middleware.NewAuth("test-secret"),
		Registry:      registry,
		Tracking:      manager,
		Ledger:        ledger,
		Notifications: notifications,
		Hub:           hub,
		Location:      time.UTC,
	}
	workerToken, err := api.Auth.GenerateToken(workerID, middleware.RoleWorker)
	require.NoError(t, err)
	adminToken, err := api.Auth.GenerateToken(1, middleware.RoleAdmin)
	require.NoError(t, err)

	return &testServer{api: api, router: routes.SetupRouter(api), worker: workerToken, admin: adminToken}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func (s *testServer) createOffice(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/geofences", s.admin, gin.H{
		"id":            "office",
		"name":          "HQ",
		"latitude":      officeCenter.Latitude,
		"longitude":     officeCenter.Longitude,
		"radius_meters": 100,
		"zone_type":     "office",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) pushFix(t *testing.T, c geo.Coordinate) {
	t.Helper()
	feed, _ := s.api.Tracking.Feeds(workerID)
	require.NoError(t, feed.Push(models.PositionSample{
		Coordinate:     c,
		AccuracyMeters: models.Float(8),
		CapturedAt:     time.Now(),
	}))
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_SignupAndLogin(t *testing.T) {
	s := newServer(t)
	body := gin.H{"name": "Asha", "email": "Asha@example.com", "password": "secret1"}

	w := s.do(t, http.MethodPost, "/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret1")

	w = s.do(t, http.MethodPost, "/auth/signup", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "asha@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := s.api.Auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, middleware.RoleWorker, claims.Role)

	w = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "asha@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/signup", "", gin.H{"name": "X", "email": "x@example.com", "password": "secret1", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeofences(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/geofences", s.worker, gin.H{"name": "HQ", "latitude": 1, "longitude": 1, "radius_meters": 50})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/geofences", s.admin, gin.H{"name": "Huge", "latitude": 1, "longitude": 1, "radius_meters": 50000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.createOffice(t)
	w = s.do(t, http.MethodPost, "/geofences", s.admin, gin.H{
		"id": "branch", "name": "Branch", "center": `{"type":"Point","coordinates":[77.6245,12.9352]}`, "radius_meters": 80,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var branch models.Geofence
	decode(t, w, &branch)
	assert.InDelta(t, 12.9352, branch.Center.Latitude, 1e-9)
	assert.Equal(t, models.ZoneOffice, branch.ZoneType)

	w = s.do(t, http.MethodPost, "/geofences", s.admin, gin.H{"id": "office", "name": "Dup", "latitude": 1, "longitude": 1, "radius_meters": 50})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/geofences", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Geofence
	decode(t, w, &list)
	assert.Len(t, list, 2)

	w = s.do(t, http.MethodGet, "/geofences/nearest?lat=12.9717&lng=77.5946", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_inside":true`)
	assert.Contains(t, w.Body.String(), `"id":"office"`)

	w = s.do(t, http.MethodGet, "/geofences/geojson", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"FeatureCollection"`)
	assert.Contains(t, w.Body.String(), `"radius_meters":100`)

	w = s.do(t, http.MethodPut, "/geofences/office", s.admin, gin.H{"name": "HQ 2", "latitude": 12.9716, "longitude": 77.5946, "radius_meters": 150})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Geofence
	decode(t, w, &updated)
	assert.Equal(t, 150.0, updated.RadiusMeters)

	w = s.do(t, http.MethodDelete, "/geofences/branch", s.admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/geofences/branch", s.worker, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceFlow(t *testing.T) {
	s := newServer(t)
	s.createOffice(t)

	w := s.do(t, http.MethodPost, "/attendance/check-in", s.worker, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), attendance.ErrNoActiveGeofence.Error())

	w = s.do(t, http.MethodPut, "/tracking/geofence", s.worker, gin.H{"geofence_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPut, "/tracking/geofence", s.worker, gin.H{"geofence_id": "office"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/attendance/check-in", s.worker, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), attendance.ErrNoLocation.Error())

	s.pushFix(t, officeCenter)
	w = s.do(t, http.MethodPost, "/tracking/start", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status tracking.Status
	decode(t, w, &status)
	assert.Equal(t, events.ModeGPS, status.Mode)
	assert.Equal(t, "inside", status.Containment)

	w = s.do(t, http.MethodPost, "/tracking/start", s.worker, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/attendance/check-in", s.worker, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/attendance/check-in", s.worker, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/attendance/session", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var session models.AttendanceSession
	decode(t, w, &session)
	assert.Equal(t, "office", session.GeofenceID)

	w = s.do(t, http.MethodPost, "/attendance/check-out", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var record models.AttendanceRecord
	decode(t, w, &record)
	assert.Equal(t, uint(workerID), record.WorkerID)

	w = s.do(t, http.MethodPost, "/attendance/check-out", s.worker, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/attendance/records", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []models.AttendanceRecord
	decode(t, w, &records)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)

	today := record.Date.Format("2006-01-02")
	w = s.do(t, http.MethodGet, "/attendance/records?date="+today, s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &records)
	assert.Len(t, records, 1)

	w = s.do(t, http.MethodGet, "/attendance/records?from=2020-01-02&to=2020-01-01", s.worker, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/attendance/metrics", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metrics attendance.Metrics
	decode(t, w, &metrics)
	assert.Equal(t, 1, metrics.TotalPresent+metrics.TotalLate)

	w = s.do(t, http.MethodGet, "/admin/workers/7/records", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &records)
	assert.Len(t, records, 1)

	w = s.do(t, http.MethodPost, "/tracking/stop", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &status)
	assert.False(t, status.Tracking)
	assert.Equal(t, events.ModeIdle, status.Mode)
}

func TestAttendance_GeofenceSchedule(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/geofences", s.admin, gin.H{
		"id":            "office",
		"name":          "HQ",
		"latitude":      officeCenter.Latitude,
		"longitude":     officeCenter.Longitude,
		"radius_meters": 100,
		"disabled":      true,
		"opens_at":      "08:00",
		"closes_at":     "18:00",
		"allowed_days":  []int{1, 2, 3, 4, 5},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var fence models.Geofence
	decode(t, w, &fence)
	assert.True(t, fence.Disabled)
	assert.Equal(t, "08:00", fence.OpensAt)
	assert.Len(t, fence.AllowedDays, 5)

	w = s.do(t, http.MethodPost, "/geofences", s.admin, gin.H{
		"id": "bad", "name": "Bad", "latitude": 1, "longitude": 1, "radius_meters": 50, "opens_at": "08:00",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/geofences/nearest?lat=12.9717&lng=77.5946", s.worker, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/tracking/geofence", s.worker, gin.H{"geofence_id": "office"})
	require.Equal(t, http.StatusOK, w.Code)
	s.pushFix(t, officeCenter)
	w = s.do(t, http.MethodPost, "/tracking/start", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/attendance/check-in", s.worker, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), attendance.ErrGeofenceDisabled.Error())
}

func TestTracking_StartWithoutSource(t *testing.T) {
	s := newServer(t)
	feed, _ := s.api.Tracking.Feeds(workerID)
	feed.SetPermission(false)

	w := s.do(t, http.MethodPost, "/tracking/start", s.worker, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var status tracking.Status
	decode(t, w, &status)
	assert.Equal(t, events.ModeUnavailable, status.Mode)
}

func TestNotifications(t *testing.T) {
	s := newServer(t)
	n := s.api.Notifications.Add(workerID, events.Notification{Type: events.NotifyInfo, Title: "Hello", Message: "World"})
	s.api.Notifications.Add(workerID, events.Notification{Type: events.NotifyAlert, Title: "Second"})

	w := s.do(t, http.MethodGet, "/notifications", s.worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread":2`)

	w = s.do(t, http.MethodPost, "/notifications/"+n.ID+"/read", s.worker, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, s.api.Notifications.Unread(workerID))

	w = s.do(t, http.MethodPost, "/notifications/nope/read", s.worker, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/notifications/"+n.ID, s.worker, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, s.api.Notifications.List(workerID), 1)

	w = s.do(t, http.MethodPost, "/notifications/read", s.worker, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.api.Notifications.Unread(workerID))

	w = s.do(t, http.MethodDelete, "/notifications", s.worker, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, s.api.Notifications.List(workerID))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/admin/workers", s.worker, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/admin/workers", s.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/admin/workers/abc/metrics", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "Invalid worker ID"))
}
