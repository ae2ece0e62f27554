// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"freqmeter/internal/grid"
	applog "freqmeter/internal/log"
	"freqmeter/internal/svgpath"

	"github.com/gorilla/websocket"
)

// Message types sent to WebSocket clients.
const (
	MessageOverlay = "overlay"
	MessageFrame   = "frame"
)

const (
	broadcastQueue = 256
	writeTimeout   = time.Second
)

// Message is the JSON envelope for everything sent on /ws.
type Message struct {
	Type    string        `json:"type"`
	Seq     uint64        `json:"seq,omitempty"`
	Overlay *grid.Overlay `json:"overlay,omitempty"`
	Paths   []string      `json:"paths,omitempty"`
}

// WebSocketSink serves the meter over HTTP:
//   - /ws streams overlay and frame messages as JSON, replaying the current
//     overlay to clients as they connect
//   - /frame.svg returns the latest frame as a standalone SVG document
type WebSocketSink struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex // Also serialises all writes to client connections.
	broadcast chan Message
	server    *http.Server
	listener  net.Listener
	wg        sync.WaitGroup

	mu      sync.RWMutex // Protects overlay, latest and closed.
	overlay *grid.Overlay
	latest  svgpath.Result
	closed  bool

	seq     atomic.Uint64
	dropped atomic.Uint64
}

var _ Sink = (*WebSocketSink)(nil)

// NewWebSocketSink creates the sink without starting a server; use Handler
// to mount it elsewhere.
func NewWebSocketSink() *WebSocketSink {
	ws := &WebSocketSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // The meter is a local viewer.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, broadcastQueue),
	}

	ws.wg.Add(1)
	go ws.handleBroadcasts()
	return ws
}

// ListenWebSocketSink creates the sink and serves it on addr.
func ListenWebSocketSink(addr string) (*WebSocketSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	ws := NewWebSocketSink()
	ws.listener = ln
	ws.server = &http.Server{
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("WebSocketSink: Serving on http://%s (/ws, /frame.svg)", ln.Addr())
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketSink: Server error: %v", err)
		}
	}()
	return ws, nil
}

// Addr returns the listen address, or nil when not listening.
func (ws *WebSocketSink) Addr() net.Addr {
	if ws.listener == nil {
		return nil
	}
	return ws.listener.Addr()
}

// Handler returns the HTTP routes of the sink.
func (ws *WebSocketSink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.handleWebSocket)
	mux.HandleFunc("/frame.svg", ws.handleFrameSVG)
	return mux
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (ws *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketSink: Upgrade error: %v", err)
		return
	}

	// Register under the write lock so the replay cannot interleave with a broadcast.
	ws.clientsMu.Lock()
	ws.mu.RLock()
	overlay, closed := ws.overlay, ws.closed
	ws.mu.RUnlock()
	if closed {
		ws.clientsMu.Unlock()
		conn.Close()
		return
	}
	if overlay != nil {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(Message{Type: MessageOverlay, Overlay: overlay}); err != nil {
			ws.clientsMu.Unlock()
			conn.Close()
			applog.Warnf("WebSocketSink: Error replaying overlay: %v", err)
			return
		}
	}
	ws.clients[conn] = true
	total := len(ws.clients)
	ws.clientsMu.Unlock()
	applog.Infof("WebSocketSink: Client connected, total: %d", total)

	// Clients never send; reading detects the disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		ws.clientsMu.Lock()
		if ws.clients[conn] {
			delete(ws.clients, conn)
			conn.Close()
		}
		total := len(ws.clients)
		ws.clientsMu.Unlock()
		applog.Infof("WebSocketSink: Client disconnected, total: %d", total)
	}()
}

func (ws *WebSocketSink) handleFrameSVG(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	overlay, latest := ws.overlay, ws.latest
	ws.mu.RUnlock()

	if overlay == nil {
		http.Error(w, "meter is not configured", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := WriteSVG(&buf, *overlay, latest); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// handleBroadcasts sends messages to all connected clients
func (ws *WebSocketSink) handleBroadcasts() {
	defer ws.wg.Done()
	for msg := range ws.broadcast {
		ws.clientsMu.Lock()
		for client := range ws.clients {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteJSON(msg); err != nil {
				applog.Warnf("WebSocketSink: Error sending to client: %v", err)
				client.Close()
				delete(ws.clients, client)
			}
		}
		ws.clientsMu.Unlock()
	}
}

// enqueue queues msg without blocking, dropping it when the queue is full.
// Callers hold ws.mu.
func (ws *WebSocketSink) enqueue(msg Message) {
	select {
	case ws.broadcast <- msg:
	default:
		if n := ws.dropped.Add(1); n == 1 || n%100 == 0 {
			applog.Warnf("WebSocketSink: Broadcast queue full, %d messages dropped", n)
		}
	}
}

// Overlay stores o for replay and broadcasts it. The previous frame is
// discarded since it belongs to another configuration.
func (ws *WebSocketSink) Overlay(o grid.Overlay) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return ErrSinkClosed
	}
	ws.overlay = &o
	ws.latest = nil
	ws.enqueue(Message{Type: MessageOverlay, Overlay: &o})
	return nil
}

// Render stores paths as the latest frame and broadcasts it.
func (ws *WebSocketSink) Render(paths svgpath.Result) error {
	paths = slices.Clone(paths)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return ErrSinkClosed
	}
	ws.latest = paths
	ws.enqueue(Message{Type: MessageFrame, Seq: ws.seq.Add(1), Paths: paths})
	return nil
}

// Clients returns the number of connected clients.
func (ws *WebSocketSink) Clients() int {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	return len(ws.clients)
}

// Close shuts down the server, drains the broadcaster and disconnects all
// clients.
func (ws *WebSocketSink) Close() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	close(ws.broadcast)
	ws.mu.Unlock()

	applog.Infof("WebSocketSink: Closing")
	ws.wg.Wait()

	// Close all client connections
	ws.clientsMu.Lock()
	for client := range ws.clients {
		client.Close()
	}
	ws.clients = make(map[*websocket.Conn]bool)
	ws.clientsMu.Unlock()

	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
