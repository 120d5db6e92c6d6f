package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/terrabridge/internal/metrics"
	"github.com/1ureka/terrabridge/internal/session"
	"github.com/1ureka/terrabridge/internal/util"
)

// StatusProvider reports role slot occupancy.
type StatusProvider interface {
	Snapshot() []session.SlotStatus
}

// Server is the admin HTTP server.
type Server struct {
	addr    string
	status  StatusProvider
	hub     *Hub
	engine  *gin.Engine
	started time.Time

	srv      *http.Server
	listener net.Listener

	// ctx ends on Shutdown; hijacked /ws streams watch it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds the admin router. Nothing listens until Start.
func NewServer(addr string, status StatusProvider, hub *Hub) *Server {
	gin.SetMode(gin.ReleaseMode)
	metrics.RegisterMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:    addr,
		status:  status,
		hub:     hub,
		engine:  gin.New(),
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/events", s.handleEvents)
	s.engine.GET("/ws", s.handleWS)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start binds the admin address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start admin server: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("Admin server stopped: %v", err)
		}
	}()

	util.LogInfo("Admin server listening on http://%s", listener.Addr())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
// Open event streams are closed as well.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statsView struct {
	TotalConns     int64 `json:"total_conns"`
	ClosedConns    int64 `json:"closed_conns"`
	BytesSent      int64 `json:"bytes_sent"`
	BytesRecv      int64 `json:"bytes_recv"`
	PacketsRelayed int64 `json:"packets_relayed"`
	Sessions       int64 `json:"sessions"`
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime": time.Since(s.started).Truncate(time.Second).String(),
		"slots":  s.status.Snapshot(),
		"stats": statsView{
			TotalConns:     util.Stats.TotalConns.Load(),
			ClosedConns:    util.Stats.ClosedConns.Load(),
			BytesSent:      util.Stats.BytesSent.Load(),
			BytesRecv:      util.Stats.BytesRecv.Load(),
			PacketsRelayed: util.Stats.PacketsRelayed.Load(),
			Sessions:       util.Stats.Sessions.Load(),
		},
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	events := s.hub.Recent(limit)
	if events == nil {
		events = []Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
