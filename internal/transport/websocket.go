// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "wavviz/internal/log"
	"wavviz/internal/render"

	"github.com/gorilla/websocket"
)

// Message is the JSON envelope written to WebSocket clients. Exactly one of
// Bars and Wave is set, matching Type.
type Message struct {
	Type string            `json:"type"` // "bars" or "wave"
	Bars *render.BarsFrame `json:"bars,omitempty"`
	Wave *render.WaveFrame `json:"wave,omitempty"`
}

const writeTimeout = time.Second

// WebSocketTransport broadcasts every drawn frame as JSON to all clients
// connected on /ws.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	count     atomic.Int32 // len(clients), readable without clientsMu.
	broadcast chan []byte
	done      chan struct{}
	server    *http.Server
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ render.Renderer = (*WebSocketTransport)(nil)

// NewWebSocketTransport creates a transport serving on addr. Nothing listens
// until Start; tests mount Handler on their own server instead.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Frames are public; any page may watch.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving the /ws endpoint.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	return mux
}

// Start binds addr and serves in the background.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.server = &http.Server{
		Addr:              wst.addr,
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(1)
	go func() {
		defer wst.wg.Done()
		applog.Infof("WebSocketTransport: Serving frames on ws://%s/ws", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.count.Store(int32(total))
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Clients only listen; any read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.dropClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) dropClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.count.Store(int32(total))
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	return int(wst.count.Load())
}

// handleBroadcasts sends messages to all connected clients. Writes happen on
// a snapshot of the client set so a slow client never holds clientsMu.
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	var targets []*websocket.Conn
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			targets = targets[:0]
			wst.clientsMu.Lock()
			for client := range wst.clients {
				targets = append(targets, client)
			}
			wst.clientsMu.Unlock()

			for _, client := range targets {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
					applog.Debugf("WebSocketTransport: Error sending to client: %v", err)
					wst.dropClient(client)
				}
			}
		}
	}
}

// send queues a message, dropping it when the broadcast queue is full. It
// never blocks on a client.
func (wst *WebSocketTransport) send(msg Message) error {
	if wst.ClientCount() == 0 {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case wst.broadcast <- data:
	default:
		applog.Debugf("WebSocketTransport: Broadcast queue full, dropping %s frame", msg.Type)
	}
	return nil
}

func (wst *WebSocketTransport) DrawBars(f render.BarsFrame) error {
	return wst.send(Message{Type: "bars", Bars: &f})
}

func (wst *WebSocketTransport) DrawWave(f render.WaveFrame) error {
	return wst.send(Message{Type: "wave", Wave: &f})
}

// Close disconnects all clients and shuts down the server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.count.Store(0)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
		wst.wg.Wait()
	})
	return err
}
