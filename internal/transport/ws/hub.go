package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
	"github.com/SameeraMS/BusTracking-Backend/internal/core/port"
	"github.com/SameeraMS/BusTracking-Backend/internal/infra/config"
	"github.com/SameeraMS/BusTracking-Backend/internal/infra/telemetry"
	"github.com/SameeraMS/BusTracking-Backend/internal/usecase"
)

const (
	// Outbound buffer per connection. A viewer that cannot drain this many
	// messages is treated as dead and torn down.
	sendBufferSize = 64

	maxMessageSize = 512

	snapshotWindow = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// envelope is the wire format pushed to viewers.
type envelope struct {
	Type      string `json:"type"`
	ClientID  string `json:"clientId,omitempty"`
	Area      string `json:"area,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// clientMessage is what viewers send to the hub.
type clientMessage struct {
	Type   string              `json:"type"`
	Area   string              `json:"area"`
	Bounds *domain.BoundingBox `json:"bounds"`
}

type fixPayload struct {
	DriverID  string    `json:"driverId"`
	BusID     string    `json:"busId"`
	RouteID   string    `json:"routeId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"`
	Speed     float64   `json:"speed"`
	Accuracy  float64   `json:"accuracy"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HubStats is a point-in-time view of hub activity.
type HubStats struct {
	ActiveConnections int        `json:"active_connections"`
	TotalConnections  int64      `json:"total_connections"`
	Rooms             int        `json:"rooms"`
	MessagesSent      int64      `json:"messages_sent"`
	MessagesReceived  int64      `json:"messages_received"`
	LastBroadcast     *time.Time `json:"last_broadcast,omitempty"`
}

// Hub tracks viewer connections and area rooms and fans location and status
// events out to them. It implements port.Broadcaster.
type Hub struct {
	locations *usecase.LocationService
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	cfg       config.WSSettings
	now       func() time.Time

	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[string]*Conn

	totalConnections int64
	messagesSent     int64
	messagesReceived int64
	lastBroadcast    *time.Time
}

// NewHub constructs the broadcast hub. The location service supplies the
// snapshot pushed at subscribe time.
func NewHub(locations *usecase.LocationService, cfg config.WSSettings, metrics *telemetry.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}

	return &Hub{
		locations: locations,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		conns:     make(map[string]*Conn),
		rooms:     make(map[string]map[string]*Conn),
	}
}

// WithClock replaces the hub's time source for tests.
func (h *Hub) WithClock(clock func() time.Time) {
	if clock != nil {
		h.now = clock
	}
}

// ServeWS upgrades the request and registers the viewer connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(h, socket)
	h.accept(conn)

	go conn.writePump()
	go conn.readPump()
}

// accept registers the connection and sends the welcome message.
func (h *Hub) accept(conn *Conn) {
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.totalConnections++
	active := len(h.conns)
	h.mu.Unlock()

	h.metrics.ViewerConnected()
	h.logger.Info("Viewer connected",
		zap.String("connection_id", conn.id),
		zap.Int("active_connections", active),
	)

	conn.deliver(h.envelope(envelope{
		Type:     "connection",
		ClientID: conn.id,
		Message:  "Connected to real-time GPS tracking service",
	}))
}

// remove drops the connection from the registry and every room it joined.
func (h *Hub) remove(conn *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, conn.id)
	for area := range conn.subscriptions {
		h.dropFromRoomLocked(area, conn.id)
	}
	active := len(h.conns)
	h.mu.Unlock()

	h.metrics.ViewerDisconnected()
	h.logger.Info("Viewer disconnected",
		zap.String("connection_id", conn.id),
		zap.Int("active_connections", active),
	)
}

func (h *Hub) dropFromRoomLocked(area, connID string) {
	room, ok := h.rooms[area]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, area)
	}
}

// subscribe adds the connection to the area room and pushes a one-time
// snapshot of active locations inside bounds. Live broadcasts after this
// point are not bounds-filtered.
func (h *Hub) subscribe(conn *Conn, area string, bounds domain.BoundingBox) {
	h.mu.Lock()
	conn.subscriptions[area] = domain.Subscription{
		ConnectionID: conn.id,
		AreaKey:      area,
		Bounds:       bounds,
	}
	room, ok := h.rooms[area]
	if !ok {
		room = make(map[string]*Conn)
		h.rooms[area] = room
	}
	room[conn.id] = conn
	h.mu.Unlock()

	h.logger.Info("Viewer subscribed",
		zap.String("connection_id", conn.id),
		zap.String("area", area),
	)

	h.sendSnapshot(conn, bounds)

	conn.deliver(h.envelope(envelope{Type: "subscribed", Area: area}))
}

// unsubscribe removes the connection from the area room, pruning the room
// when it empties.
func (h *Hub) unsubscribe(conn *Conn, area string) {
	h.mu.Lock()
	if _, ok := conn.subscriptions[area]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conn.subscriptions, area)
	h.dropFromRoomLocked(area, conn.id)
	h.mu.Unlock()

	h.logger.Info("Viewer unsubscribed",
		zap.String("connection_id", conn.id),
		zap.String("area", area),
	)

	conn.deliver(h.envelope(envelope{Type: "unsubscribed", Area: area}))
}

// sendSnapshot pushes currently active locations within bounds to a single
// freshly subscribed connection.
func (h *Hub) sendSnapshot(conn *Conn, bounds domain.BoundingBox) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fixes, err := h.locations.Active(ctx, snapshotWindow)
	if err != nil {
		h.logger.Warn("Snapshot lookup failed",
			zap.String("connection_id", conn.id),
			zap.Error(err),
		)
		return
	}

	inArea := make([]fixPayload, 0, len(fixes))
	for _, fix := range fixes {
		if bounds.Contains(fix.Point()) {
			inArea = append(inArea, payloadFromFix(fix))
		}
	}
	if len(inArea) == 0 {
		return
	}

	conn.deliver(h.envelope(envelope{Type: "initial_locations", Data: inArea}))
}

// PublishLocationUpdate pushes a committed fix to every open connection.
func (h *Hub) PublishLocationUpdate(fix domain.LocationFix) {
	h.broadcast("location_update", payloadFromFix(fix))
}

// PublishStatusChange pushes a driver status transition to every open connection.
func (h *Hub) PublishStatusChange(driverID string, status domain.FixStatus, busID, routeID string) {
	h.broadcast("driver_status", map[string]any{
		"driverId":  driverID,
		"busId":     busID,
		"routeId":   routeID,
		"status":    string(status),
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// broadcast serializes once and delivers to every connection. A connection
// that cannot accept the message is torn down without affecting the rest.
func (h *Hub) broadcast(messageType string, data any) {
	payload := h.envelope(envelope{Type: messageType, Data: data})
	if payload == nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	sent := 0
	for _, conn := range targets {
		if conn.send(payload) {
			sent++
		}
	}

	now := h.now().UTC()
	h.mu.Lock()
	h.messagesSent += int64(sent)
	h.lastBroadcast = &now
	h.mu.Unlock()

	h.metrics.BroadcastSent(messageType)
}

// Stats reports a snapshot of hub activity.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		ActiveConnections: len(h.conns),
		TotalConnections:  h.totalConnections,
		Rooms:             len(h.rooms),
		MessagesSent:      h.messagesSent,
		MessagesReceived:  h.messagesReceived,
		LastBroadcast:     h.lastBroadcast,
	}
}

// Shutdown notifies viewers and closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.Unlock()

	notice := h.envelope(envelope{
		Type:    "shutdown",
		Message: "Server is shutting down",
	})

	for _, conn := range targets {
		conn.send(notice)
		conn.close()
	}

	h.logger.Info("Broadcast hub shut down", zap.Int("connections_closed", len(targets)))
}

func (h *Hub) envelope(e envelope) []byte {
	e.Timestamp = h.now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Envelope marshal failed", zap.String("type", e.Type), zap.Error(err))
		return nil
	}
	return payload
}

func (h *Hub) nextConnID() string {
	return fmt.Sprintf("client_%s", uuid.NewString())
}

func payloadFromFix(fix domain.LocationFix) fixPayload {
	return fixPayload{
		DriverID:  fix.DriverID,
		BusID:     fix.BusID,
		RouteID:   fix.RouteID,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Heading:   fix.Heading,
		Speed:     fix.Speed,
		Accuracy:  fix.Accuracy,
		Status:    string(fix.Status),
		Timestamp: fix.Timestamp,
	}
}

var _ port.Broadcaster = (*Hub)(nil)
