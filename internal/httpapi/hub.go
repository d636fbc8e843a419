package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 16
)

// wsMessage is pushed to every browser after a change. The first message on
// a new connection has type "state" and no change.
type wsMessage struct {
	Type   string          `json:"type"`
	Change *engine.Change  `json:"change,omitempty"`
	State  engine.Snapshot `json:"state"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine changes out to connected websocket clients. Clients that
// fall behind by more than the send buffer are disconnected.
type Hub struct {
	log      zerolog.Logger
	eng      *engine.Engine
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*wsClient
}

func NewHub(log zerolog.Logger, eng *engine.Engine, m *metrics.Metrics) *Hub {
	return &Hub{
		log:     log.With().Str("component", "ws").Logger(),
		eng:     eng,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*wsClient),
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	c := &wsClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, wsSendBuffer)}

	if data, err := json.Marshal(wsMessage{Type: "state", State: h.eng.Snapshot()}); err == nil {
		c.send <- data
	}
	h.add(c)

	go h.writePump(c)
	go h.readPump(c)
}

// OnChange implements engine.Listener.
func (h *Hub) OnChange(ch engine.Change) {
	if h.Len() == 0 {
		return
	}
	data, err := json.Marshal(wsMessage{Type: "change", Change: &ch, State: h.eng.Snapshot()})
	if err != nil {
		h.log.Error().Err(err).Msg("encode ws message")
		return
	}
	h.broadcast(data)
}

// Invalidate implements engine.Invalidator by asking browsers to recompute
// the map size.
func (h *Hub) Invalidate() {
	if h == nil {
		return
	}
	h.broadcast([]byte(`{"type":"relayout"}`))
}

type detailMessage struct {
	Type     string       `json:"type"`
	Category category.Key `json:"category"`
	Entity   fleet.Entity `json:"entity"`
}

// RenderDetail implements engine.PopupRenderer by pushing the entity to
// browsers, which own the popup markup.
func (h *Hub) RenderDetail(entity fleet.Entity) {
	if h == nil || entity == nil || h.Len() == 0 {
		return
	}
	data, err := json.Marshal(detailMessage{Type: "detail", Category: entity.Category(), Entity: entity})
	if err != nil {
		h.log.Error().Err(err).Msg("encode detail message")
		return
	}
	h.broadcast(data)
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.remove(id)
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWSClients(n)
	h.log.Debug().Str("client_id", c.id).Int("clients", n).Msg("ws client connected")
}

// remove is safe to call more than once per client.
func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.metrics.SetWSClients(n)
		h.log.Debug().Str("client_id", id).Int("clients", n).Msg("ws client disconnected")
	}
}

func (h *Hub) broadcast(data []byte) {
	var slow []string
	h.mu.Lock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.Unlock()
	for _, id := range slow {
		h.log.Warn().Str("client_id", id).Msg("ws client too slow; disconnecting")
		h.remove(id)
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(c.id)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c.id)
				return
			}
		}
	}
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c.id)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
