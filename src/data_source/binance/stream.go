package binance

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kline-relay/src/logger"
	"kline-relay/src/models"
)

const (
	readLimit    = 1 << 20
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	writeWait    = 5 * time.Second
)

// Stream is one open combined kline stream.
type Stream struct {
	conn    *websocket.Conn
	symbols []string
	log     *logger.Logger

	events  chan models.MKlineEvent
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
}

// -----------------------------------------------------------------------------

func newStream(conn *websocket.Conn, symbols []string, buffer int, log *logger.Logger) *Stream {
	s := &Stream{
		conn:    conn,
		symbols: symbols,
		log:     log,
		events:  make(chan models.MKlineEvent, buffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	go s.readLoop()
	go s.pingLoop()
	return s
}

// -----------------------------------------------------------------------------

func (s *Stream) Events() <-chan models.MKlineEvent {
	return s.events
}

// -----------------------------------------------------------------------------

func (s *Stream) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
			default:
				s.log.Warning("Stream for %v ended: %v", s.symbols, err)
			}
			return
		}

		ev, err := DecodeKlineMessage(msg)
		if err != nil {
			s.log.Debug("Skipping frame: %v", err)
			continue
		}

		select {
		case s.events <- ev:
		case <-s.closing:
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Debug("Ping failed: %v", err)
				return
			}
		case <-s.done:
			return
		}
	}
}

// -----------------------------------------------------------------------------

// Terminate sends a close frame, drops the connection and waits for the
// read loop to close Events.
func (s *Stream) Terminate(ctx context.Context) error {
	s.once.Do(func() {
		close(s.closing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = s.conn.Close()
	})

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
