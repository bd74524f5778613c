package mapview

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/observability"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Render operations sent to browser clients.
const (
	OpMarker   = "marker"
	OpPolyline = "polyline"
	OpPolygon  = "polygon"
	OpRemove   = "remove"
)

// Command is a render instruction broadcast to every connected map client.
type Command struct {
	Op          string              `json:"op"`
	ID          domain.LayerID      `json:"id"`
	Coordinates []domain.Coordinate `json:"coordinates,omitempty"`
	Color       string              `json:"color,omitempty"`
}

// inbound is a message from a browser client.
type inbound struct {
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Hub implements domain.Surface for browser map clients connected over websockets.
// Layers are kept server side so late joiners receive the current map.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *observability.Metrics
	logger   *slog.Logger
	seq      atomic.Uint64

	mu      sync.Mutex
	clients map[*client]struct{}
	layers  map[domain.LayerID]Command
	order   []domain.LayerID
	onClick domain.ClickHandler
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates an empty map surface.
func NewHub(metrics *observability.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		metrics: metrics,
		logger:  logger,
		clients: make(map[*client]struct{}),
		layers:  make(map[domain.LayerID]Command),
	}
}

// OnClick implements domain.Surface.
func (h *Hub) OnClick(handler domain.ClickHandler) {
	h.mu.Lock()
	h.onClick = handler
	h.mu.Unlock()
}

// Distance implements domain.Surface using the haversine formula.
func (h *Hub) Distance(a, b domain.Coordinate) float64 {
	return haversine(a, b)
}

// BoundsCenter implements domain.Surface.
func (h *Hub) BoundsCenter(coords []domain.Coordinate) domain.Coordinate {
	return boundsCenter(coords)
}

func (h *Hub) DrawMarker(c domain.Coordinate) domain.LayerID {
	id := h.nextID(OpMarker)
	h.upsert(Command{Op: OpMarker, ID: id, Coordinates: []domain.Coordinate{c}})
	return id
}

func (h *Hub) DrawPolyline(coords []domain.Coordinate) domain.LayerID {
	id := h.nextID(OpPolyline)
	h.upsert(Command{Op: OpPolyline, ID: id, Coordinates: append([]domain.Coordinate(nil), coords...)})
	return id
}

// DrawPolygon draws or restyles the polygon layer keyed by id.
func (h *Hub) DrawPolygon(id string, coords []domain.Coordinate, color string) domain.LayerID {
	lid := domain.LayerID(id)
	h.upsert(Command{Op: OpPolygon, ID: lid, Coordinates: append([]domain.Coordinate(nil), coords...), Color: color})
	return lid
}

// RemoveLayer implements domain.Surface. Unknown ids are ignored.
func (h *Hub) RemoveLayer(id domain.LayerID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.layers[id]; !ok {
		return
	}
	delete(h.layers, id)
	for i, lid := range h.order {
		if lid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.broadcastLocked(Command{Op: OpRemove, ID: id})
}

// Layers returns the current layers in draw order.
func (h *Hub) Layers() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Command, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.layers[id])
	}
	return out
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := h.register(conn)
	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) nextID(kind string) domain.LayerID {
	return domain.LayerID(fmt.Sprintf("%s-%d", kind, h.seq.Add(1)))
}

func (h *Hub) upsert(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.layers[cmd.ID]; !ok {
		h.order = append(h.order, cmd.ID)
	}
	h.layers[cmd.ID] = cmd
	h.broadcastLocked(cmd)
}

// register adds a client and queues the current layers for it in the same
// critical section, so no broadcast can overtake the replay.
func (h *Hub) register(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &client{conn: conn, send: make(chan []byte, sendBuffer+len(h.order))}
	for _, id := range h.order {
		if msg, err := json.Marshal(h.layers[id]); err == nil {
			c.send <- msg
		}
	}
	h.clients[c] = struct{}{}
	h.metrics.MapClients.Set(float64(len(h.clients)))
	h.logger.Debug("map client connected", "remote", conn.RemoteAddr().String(), "replayed", len(h.order))
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	h.metrics.MapClients.Set(float64(len(h.clients)))
}

func (h *Hub) broadcastLocked(cmd Command) {
	msg, err := json.Marshal(cmd)
	if err != nil {
		h.logger.Error("encode render command", "op", cmd.Op, "error", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("map client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			h.dropLocked(c)
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("map client read error", "error", err)
			}
			return
		}
		h.dispatch(msg)
	}
}

func (h *Hub) dispatch(msg inbound) {
	if msg.Type != "click" {
		h.logger.Debug("ignoring map message", "type", msg.Type)
		return
	}
	if msg.Lat < -90 || msg.Lat > 90 || msg.Lng < -180 || msg.Lng > 180 {
		h.logger.Debug("ignoring click outside WGS-84 bounds", "lat", msg.Lat, "lng", msg.Lng)
		return
	}

	h.mu.Lock()
	handler := h.onClick
	h.mu.Unlock()

	if handler != nil {
		handler(domain.Coordinate{Lat: msg.Lat, Lng: msg.Lng})
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
