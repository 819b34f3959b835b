package board

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub mirrors document snapshots to connected pages and feeds their page
// messages back into the board.
type Hub struct {
	board  *Board
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Snapshot
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func newHub(board *Board, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		board:   board,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues snap for every page. Pages that fall behind are dropped.
func (h *Hub) Broadcast(snap Snapshot) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- snap:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warnw("Dropping slow board client", "remote_addr", c.conn.RemoteAddr().String())
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// ServeWS upgrades the request and streams snapshots until the page leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Board websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan Snapshot, sendBuffer)}
	// Pages order snapshots by Version, so a broadcast racing the initial
	// snapshot is harmless.
	h.mu.Lock()
	c.send <- h.board.doc.Snapshot()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Infow("Board client connected", "remote_addr", conn.RemoteAddr().String())
	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.logger.Infow("Board client disconnected", "remote_addr", c.conn.RemoteAddr().String())
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var msg PageMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("Board client read failed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		if err := h.board.HandlePageMessage(msg); err != nil {
			h.logger.Warnw("Invalid page message", "type", msg.Type, "error", err)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				c.conn.Close()
				return
			}
			if err := c.conn.WriteJSON(snap); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
