package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"geo_attend/internal/events"
	"geo_attend/internal/geo"
	"geo_attend/internal/location"
	"geo_attend/internal/middleware"
	"geo_attend/internal/models"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Device message types.
const (
	msgFix           = "fix"
	msgPermission    = "permission"
	msgFailure       = "failure"
	msgAccelerometer = "accelerometer"
	msgGyroscope     = "gyroscope"
	msgMagnetometer  = "magnetometer"
)

// deviceMessage is one frame sent by the worker's phone.
type deviceMessage struct {
	Type      string    `json:"type"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy"`
	Altitude  *float64  `json:"altitude"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
	Granted   *bool     `json:"granted"`
	Reason    string    `json:"reason"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts timestamps with or without a zone suffix, treating
// zone-less ones as UTC.
func (m *deviceMessage) UnmarshalJSON(data []byte) error {
	type alias deviceMessage
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts := aux.Timestamp
	if ts == "" {
		m.Timestamp = time.Time{}
		return nil
	}
	if !hasZone(ts) {
		ts += "Z"
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", aux.Timestamp, err)
	}
	m.Timestamp = t
	return nil
}

func hasZone(ts string) bool {
	if strings.HasSuffix(ts, "Z") {
		return true
	}
	if len(ts) < 6 {
		return false
	}
	return strings.ContainsAny(ts[len(ts)-6:], "+-")
}

// applyDeviceMessage feeds one device frame into the worker's sources.
func applyDeviceMessage(feed *location.Feed, sensors *location.SensorFeed, msg deviceMessage, now time.Time) error {
	at := msg.Timestamp
	if at.IsZero() {
		at = now
	}
	reading := models.SensorReading{X: msg.X, Y: msg.Y, Z: msg.Z, Timestamp: at}

	switch msg.Type {
	case msgFix:
		return feed.Push(models.PositionSample{
			Coordinate:           geo.Coordinate{Latitude: msg.Latitude, Longitude: msg.Longitude},
			AccuracyMeters:       msg.Accuracy,
			AltitudeMeters:       msg.Altitude,
			SpeedMetersPerSecond: msg.Speed,
			HeadingDegrees:       msg.Heading,
			CapturedAt:           at,
		})
	case msgPermission:
		if msg.Granted == nil {
			return errors.New("permission message needs granted")
		}
		feed.SetPermission(*msg.Granted)
	case msgFailure:
		if msg.Reason == "timeout" {
			feed.Fail(location.ErrFixTimeout)
		} else {
			feed.Fail(fmt.Errorf("device location failure: %s", msg.Reason))
		}
	case msgAccelerometer:
		sensors.PushAccelerometer(reading)
	case msgGyroscope:
		sensors.PushGyroscope(reading)
	case msgMagnetometer:
		sensors.PushMagnetometer(reading)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

// DeviceSocket receives fixes, permission changes and motion-sensor readings
// from the authenticated worker's phone.
func (a *API) DeviceSocket(c *gin.Context) {
	workerID := middleware.WorkerID(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	feed, sensors := a.Tracking.Feeds(workerID)
	logrus.WithFields(logrus.Fields{
		"worker_id": workerID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}).Info("Device WebSocket connection established.")

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("worker_id", workerID).Info("Device WebSocket closed.")
			} else {
				logrus.WithError(err).WithField("worker_id", workerID).Error("Error reading device WebSocket message.")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg deviceMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"worker_id": workerID,
				"payload":   string(p),
			}).Warn("Invalid device message.")
			conn.WriteJSON(gin.H{"error": "Invalid message format: " + err.Error()})
			continue
		}
		if err := applyDeviceMessage(feed, sensors, msg, time.Now()); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"worker_id": workerID,
				"type":      msg.Type,
			}).Warn("Device message rejected.")
			conn.WriteJSON(gin.H{"error": err.Error(), "type": msg.Type})
		}
	}
}

// EventsSocket streams engine events. Workers receive their own; admins
// receive one worker's (?worker_id=) or everyone's.
func (a *API) EventsSocket(c *gin.Context) {
	key := middleware.WorkerID(c)
	if middleware.Role(c) == middleware.RoleAdmin {
		key = events.AllWorkers
		if raw := c.Query("worker_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid worker_id"})
				return
			}
			key = uint(id)
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}

	defer conn.Close()
	client := a.Hub.Register(key, conn)
	defer a.Hub.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("worker_id", key).Debug("Events WebSocket read ended.")
			}
			return
		}
		logrus.WithField("worker_id", key).Warn("Events client sent unexpected message. Ignoring.")
	}
}
