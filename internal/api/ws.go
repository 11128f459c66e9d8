package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/chatur/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsBuffer     = 64
)

// hub fans bus events out to WebSocket clients. Each client gets its own
// bus subscription, so a slow client only loses its own events.
type hub struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub(bus *events.Bus, logger *slog.Logger) *hub {
	return &hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API binds to a local address and the web UI may be
			// served from another port.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", "remote", c.RemoteAddr().String(), "clients", n)
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	n := len(h.conns)
	h.mu.Unlock()
	c.Close()
	h.logger.Info("websocket client disconnected", "remote", c.RemoteAddr().String(), "clients", n)
}

// closeAll sends a going-away frame to every client. Their serve loops
// notice the closed connection and clean up.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.Close()
	}
}

// serve upgrades the request and streams events until the client goes
// away. hello, when non-nil, is sent first so the client can render the
// current state without waiting for a transition.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, hello *events.Event) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	ch := h.bus.Subscribe(wsBuffer)
	defer h.bus.Unsubscribe(ch)
	h.add(conn)
	defer h.remove(conn)

	// Clients only send control frames; reading is how a close is seen.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if hello != nil {
		if err := h.write(conn, *hello); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := h.write(conn, e); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *hub) write(conn *websocket.Conn, e events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(e)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub.bus == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "event stream is not available")
		return
	}
	var hello *events.Event
	if s.state != nil {
		hello = &events.Event{
			Timestamp: time.Now(),
			Source:    events.SourceAssistant,
			Kind:      events.KindStateChange,
			Data:      map[string]any{"state": string(s.state.State())},
		}
	}
	s.hub.serve(w, r, hello)
}
