// FilePath: internal/realtime/realtime.go
package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

const (
	writeTimeout = 10 * time.Second
	// Slow clients with a full send buffer are dropped rather than
	// allowed to stall the broadcast pump.
	clientBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans ledger-update payloads out to connected dashboard clients.
// Payloads arrive over the Redis channel the accounting notifier
// publishes to, so every hub instance behind a load balancer sees every
// update.
type Hub struct {
	redis      *redis.Client
	channel    string
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	// done is closed when the hub stops so connection goroutines never
	// block handing a client back to a loop that no longer drains.
	done chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(redisClient *redis.Client, channel string) *Hub {
	return &Hub{
		redis:      redisClient,
		channel:    channel,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run pumps the Redis subscription into connected websocket clients
// until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	sub := h.redis.Subscribe(ctx, h.channel)
	defer sub.Close()

	go func() {
		for msg := range sub.Channel() {
			select {
			case h.broadcast <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	h.run(ctx)
}

func (h *Hub) run(ctx context.Context) {
	clients := map[*client]struct{}{}
	for {
		select {
		case c := <-h.register:
			clients[c] = struct{}{}
			nuts.L.Debugf("[Realtime] Client connected (%d total)", len(clients))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
		case payload := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- payload:
				default:
					delete(clients, c)
					close(c.send)
					nuts.L.Warnf("[Realtime] Dropped slow client")
				}
			}
		case <-ctx.Done():
			for c := range clients {
				close(c.send)
			}
			close(h.done)
			return
		}
	}
}

// release hands a disconnecting client back to the hub, or drops it on
// the floor when the hub has already stopped.
func (h *Hub) release(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		nuts.L.Warnf("[Realtime] Upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames; its job is detecting disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.release(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
