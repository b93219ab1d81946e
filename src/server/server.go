package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/models"
	"kline-relay/src/relay"

	"github.com/gin-gonic/gin"
)

// SessionHandler is the relay as seen by the transport.
type SessionHandler interface {
	OnConnect(s relay.Session)
	OnMessage(s relay.Session, raw []byte)
	OnDisconnect(s relay.Session)
	OnError(s relay.Session, err error)
	Status() models.MRelayStatus
}

// -----------------------------------------------------------------------------
// RelayServer
// -----------------------------------------------------------------------------

type RelayServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	relay  SessionHandler
	market interfaces.IMarketData
	pairs  interfaces.IPairCatalog

	httpSrv *http.Server
	nextID  atomic.Uint64

	clientsMu sync.Mutex
	clients   map[*Client]struct{}
}

var _ interfaces.IServer = (*RelayServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewRelayServer(cfg *models.MConfig, relay SessionHandler, market interfaces.IMarketData, pairs interfaces.IPairCatalog, log *logger.Logger) *RelayServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &RelayServer{
		Config:  cfg,
		Logger:  log,
		engine:  gin.New(),
		relay:   relay,
		market:  market,
		pairs:   pairs,
		clients: make(map[*Client]struct{}),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), s.cors())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

func (s *RelayServer) setupRoutes() {
	s.engine.GET("/api/klines", s.getKlines)
	s.engine.GET("/api/pairs", s.getPairs)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/status", s.getStatus)

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router for tests and embedding.
func (s *RelayServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *RelayServer) allowedOrigin(origin string) bool {
	if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
		return true
	}
	for _, o := range s.Config.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func (s *RelayServer) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && s.allowedOrigin(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *RelayServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *RelayServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP listener down and closes every websocket session.
func (s *RelayServer) Stop(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	s.clientsMu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
	return err
}

// -----------------------------------------------------------------------------

func (s *RelayServer) addClient(c *Client) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
}

func (s *RelayServer) removeClient(c *Client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
}

func (s *RelayServer) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}
