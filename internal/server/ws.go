package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/pinchvol/internal/display"
)

// DefaultPushInterval is how often display clients are checked for a new
// snapshot (~15 Hz).
const DefaultPushInterval = 66 * time.Millisecond

const writeTimeout = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DisplayHandler pushes volume snapshots to websocket clients. It only
// peeks the bridge, so the primary surface still drains every snapshot.
type DisplayHandler struct {
	bridge   *display.Bridge
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	done    chan struct{}
	closed  bool
}

// NewDisplayHandler creates a DisplayHandler reading from bridge.
func NewDisplayHandler(bridge *display.Bridge, interval time.Duration, logger *slog.Logger) *DisplayHandler {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DisplayHandler{
		bridge:   bridge,
		interval: interval,
		logger:   logger,
		clients:  make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DisplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// The client never sends anything; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last display.Snapshot
	sent := false
	for {
		select {
		case <-gone:
			return
		case <-h.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeTimeout))
			return
		case <-ticker.C:
			snap, ok := h.bridge.Latest()
			if !ok || (sent && snap == last) {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug("websocket write error", "error", err)
				return
			}
			last, sent = snap, true
		}
	}
}

// Clients returns the number of connected clients.
func (h *DisplayHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *DisplayHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
}
