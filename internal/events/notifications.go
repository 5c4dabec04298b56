package events

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"geo_attend/internal/models"
)

const (
	maxNotifications = 50
	transientTTL     = 5 * time.Second
)

// ErrNotificationNotFound is returned for unknown notification ids.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationType mirrors the categories shown in the app.
type NotificationType string

const (
	NotifyCheckIn  NotificationType = "check-in"
	NotifyCheckOut NotificationType = "check-out"
	NotifyAlert    NotificationType = "alert"
	NotifyInfo     NotificationType = "info"
	NotifyWarning  NotificationType = "warning"
)

// Notification is a user-facing message derived from an event.
type Notification struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Read      bool                   `json:"read"`
	Data      map[string]interface{} `json:"data,omitempty"`
	expiresAt time.Time
}

// NotificationCenter keeps the newest notifications per worker. Check-in
// and check-out notifications expire after five seconds.
type NotificationCenter struct {
	mu    sync.Mutex
	items map[uint][]Notification
	now   func() time.Time
}

// NewNotificationCenter returns an empty center.
func NewNotificationCenter() *NotificationCenter {
	return &NotificationCenter{items: make(map[uint][]Notification), now: time.Now}
}

// Add stores n for workerID, newest first, trimming to the cap.
func (c *NotificationCenter) Add(workerID uint, n Notification) Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	n.ID = "notif-" + uuid.NewString()
	n.Timestamp = c.now()
	n.Read = false
	if n.Type == NotifyCheckIn || n.Type == NotifyCheckOut {
		n.expiresAt = n.Timestamp.Add(transientTTL)
	}
	list := append([]Notification{n}, c.live(workerID)...)
	if len(list) > maxNotifications {
		list = list[:maxNotifications]
	}
	c.items[workerID] = list
	return n
}

// live drops expired entries. Called with c.mu held.
func (c *NotificationCenter) live(workerID uint) []Notification {
	now := c.now()
	list := c.items[workerID]
	kept := list[:0]
	for _, n := range list {
		if !n.expiresAt.IsZero() && !now.Before(n.expiresAt) {
			continue
		}
		kept = append(kept, n)
	}
	c.items[workerID] = kept
	return kept
}

// List returns a copy of workerID's notifications, newest first.
func (c *NotificationCenter) List(workerID uint) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.live(workerID)...)
}

// Unread counts unread notifications.
func (c *NotificationCenter) Unread(workerID uint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.live(workerID) {
		if !item.Read {
			n++
		}
	}
	return n
}

func (c *NotificationCenter) MarkRead(workerID uint, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.live(workerID)
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
}

func (c *NotificationCenter) MarkAllRead(workerID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.live(workerID)
	for i := range list {
		list[i].Read = true
	}
}

func (c *NotificationCenter) Remove(workerID uint, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.live(workerID)
	for i := range list {
		if list[i].ID == id {
			c.items[workerID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
}

func (c *NotificationCenter) Clear(workerID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, workerID)
}

// Publish turns engine events into notifications. Position updates are ignored.
func (c *NotificationCenter) Publish(ev Event) {
	switch {
	case ev.Transition != nil:
		t := ev.Transition
		n := Notification{Type: NotifyAlert, Data: map[string]interface{}{"geofence_id": t.GeofenceID}}
		if t.Kind == models.EventEntry {
			n.Type = NotifyInfo
			n.Title = "Entered Geofence"
			n.Message = fmt.Sprintf("You have entered the geofenced area. Distance: %dm", int(math.Round(t.DistanceMeters)))
		} else {
			n.Title = "Exited Geofence"
			n.Message = fmt.Sprintf("You have left the geofenced area. Distance: %dm", int(math.Round(t.DistanceMeters)))
		}
		c.Add(ev.WorkerID, n)
	case ev.Type == TypeSessionOpened && ev.Session != nil:
		c.Add(ev.WorkerID, Notification{
			Type:    NotifyCheckIn,
			Title:   "Checked In",
			Message: "Checked in at " + ev.Session.CheckInAt.Format("15:04"),
			Data:    map[string]interface{}{"geofence_id": ev.Session.GeofenceID},
		})
	case ev.Type == TypeRecordCompleted && ev.Record != nil:
		c.Add(ev.WorkerID, Notification{
			Type:    NotifyCheckOut,
			Title:   "Checked Out",
			Message: "Worked " + formatWorked(ev.Record.DurationMinutes),
			Data:    map[string]interface{}{"record_id": ev.Record.ID, "status": string(ev.Record.Status)},
		})
	case ev.Availability != nil && ev.Availability.Mode != ModeGPS && ev.Availability.Mode != ModeIdle:
		msg := "GPS not available, using inertial fallback."
		if ev.Availability.Mode == ModeUnavailable {
			msg = "Location unavailable: " + ev.Availability.Reason
		}
		c.Add(ev.WorkerID, Notification{Type: NotifyWarning, Title: "Location", Message: msg})
	}
}

// formatWorked renders a duration in minutes as "Xh Ym", rounded to the minute.
func formatWorked(minutes float64) string {
	total := int(math.Round(minutes))
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
