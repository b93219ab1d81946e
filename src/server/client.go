package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"kline-relay/src/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one websocket session. Send never blocks: a full queue drops
// the update and a closed client reports relay.ErrSessionClosed.
type Client struct {
	id     string
	server *RelayServer
	conn   *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

var _ relay.Session = (*Client)(nil)

func (c *Client) ID() string { return c.id }

func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return relay.ErrSessionClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return relay.ErrSlowSession
	}
}

// close stops the write pump after it flushes what is queued.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// shutdown is used when the server stops.
func (c *Client) shutdown() {
	c.close()
	c.conn.Close()
}

// -----------------------------------------------------------------------------
// WebSocket Handler
// -----------------------------------------------------------------------------

func (s *RelayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	bufSize := s.Config.Relay.SendBuffer
	if bufSize <= 0 {
		bufSize = 256
	}
	client := &Client{
		id:     fmt.Sprintf("ws-%d", s.nextID.Add(1)),
		server: s,
		conn:   conn,
		send:   make(chan []byte, bufSize),
	}

	s.addClient(client)
	s.relay.OnConnect(client)

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// readPump - feeds client commands to the relay one at a time
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.close()
		c.server.relay.OnDisconnect(c)
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.server.relay.OnError(c, err)
			}
			return
		}
		c.server.relay.OnMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends queued updates to the client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.Logger.Info("Write error on %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
