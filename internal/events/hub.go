package events

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// AllWorkers is the hub key for monitors that receive every worker's events.
const AllWorkers uint = 0

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one registered monitoring connection.
type Client struct {
	workerID uint
	conn     Conn
	send     chan Event
	closed   bool
}

// Hub fans events out to websocket monitors subscribed per worker.
type Hub struct {
	clients   map[uint]map[*Client]struct{}
	broadcast chan Event
	clientBuf int
	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a hub and starts its broadcast goroutine.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 100
	}
	h := &Hub{
		clients:   make(map[uint]map[*Client]struct{}),
		broadcast: make(chan Event, buffer),
		clientBuf: 16,
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for ev := range h.broadcast {
		h.mu.Lock()
		h.deliver(h.clients[ev.WorkerID], ev)
		if ev.WorkerID != AllWorkers {
			h.deliver(h.clients[AllWorkers], ev)
		}
		h.mu.Unlock()
	}
}

// deliver is called with h.mu held.
func (h *Hub) deliver(clients map[*Client]struct{}, ev Event) {
	for c := range clients {
		select {
		case c.send <- ev:
		default:
			logrus.WithFields(logrus.Fields{
				"worker_id": c.workerID,
				"conn_ptr":  fmt.Sprintf("%p", c.conn),
			}).Warn("Monitor too slow, dropping event.")
		}
	}
}

// Register adds a monitor for workerID (or AllWorkers) and starts its writer.
func (h *Hub) Register(workerID uint, conn Conn) *Client {
	c := &Client{workerID: workerID, conn: conn, send: make(chan Event, h.clientBuf)}
	h.mu.Lock()
	if _, ok := h.clients[workerID]; !ok {
		h.clients[workerID] = make(map[*Client]struct{})
	}
	h.clients[workerID][c] = struct{}{}
	h.mu.Unlock()

	go h.write(c)

	logrus.WithFields(logrus.Fields{
		"worker_id": workerID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}).Info("Monitor registered with event hub.")
	return c
}

func (h *Hub) write(c *Client) {
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			logrus.WithError(err).WithField("worker_id", c.workerID).Warn("Failed to send event to monitor, unregistering.")
			h.Unregister(c)
			return
		}
	}
}

// Unregister removes a monitor. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if clients, ok := h.clients[c.workerID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.clients, c.workerID)
		}
	}
	close(c.send)
	logrus.WithFields(logrus.Fields{
		"worker_id": c.workerID,
		"conn_ptr":  fmt.Sprintf("%p", c.conn),
	}).Info("Monitor unregistered from event hub.")
}

// Clients counts monitors registered under workerID.
func (h *Hub) Clients(workerID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[workerID])
}

// Publish queues ev for broadcast without blocking.
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		logrus.Warn("Event broadcast channel full, dropping message.")
	}
}

// Close stops the broadcast goroutine. Publish must not be called afterwards.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.broadcast) })
	<-h.done
}
