// Package dashboard exposes the HTTP API for the web dashboard: stats
// for the read path and remote control through the same command
// dispatcher the Discord handlers use.
package dashboard

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/tunebox-bot/tunebox/internal/app/command"
	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/app/stats"
)

// AdminTokenHeader is the header name for the admin authentication
// token.
const AdminTokenHeader = "X-Admin-Token"

// Config carries the dashboard server settings.
type Config struct {
	Addr       string
	AdminToken string
}

// Server serves the dashboard API.
type Server struct {
	cfg        Config
	registry   *session.Registry
	stats      *stats.Collector
	dispatcher *command.Dispatcher
	http       *http.Server
	startedAt  time.Time
}

// NewServer builds the server and its routes.
func NewServer(cfg Config, registry *session.Registry, collector *stats.Collector, dispatcher *command.Dispatcher) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		stats:      collector,
		dispatcher: dispatcher,
		startedAt:  time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)

	authed := r.Group("/api", s.requireAdminToken)
	authed.GET("/stats", s.handleStats)
	authed.POST("/control", s.handleControl)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	zlog.Info().Msgf("dashboard: listening: addr=%s", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requireAdminToken rejects requests without the configured token.
func (s *Server) requireAdminToken(c *gin.Context) {
	token := c.GetHeader(AdminTokenHeader)
	if token == "" || token != s.cfg.AdminToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"sessions":   s.registry.Count(),
	})
}

// sessionView is the dashboard's projection of one guild session.
type sessionView struct {
	GuildID      string  `json:"guild_id"`
	Status       string  `json:"status"`
	CurrentTitle string  `json:"current_title,omitempty"`
	QueueLength  int     `json:"queue_length"`
	Position     int     `json:"position"` // 1-based, 0 when idle
	Volume       float64 `json:"volume"`
	Repeat       bool    `json:"repeat"`
	Autoplay     bool    `json:"autoplay"`
}

func (s *Server) handleStats(c *gin.Context) {
	snaps := s.registry.Snapshots()
	sessions := make([]sessionView, 0, len(snaps))
	for _, snap := range snaps {
		v := sessionView{
			GuildID:     snap.GuildID,
			Status:      snap.Status.String(),
			QueueLength: len(snap.Tracks),
			Volume:      snap.Volume,
			Repeat:      snap.Repeat,
			Autoplay:    snap.Autoplay,
		}
		if cur, ok := snap.Current(); ok {
			v.CurrentTitle = cur.Title
			v.Position = snap.Cursor + 1
		}
		sessions = append(sessions, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":    s.stats.Snapshot(10),
		"sessions": sessions,
	})
}

// controlRequest is one remote command.
type controlRequest struct {
	GuildID string  `json:"guild_id" binding:"required"`
	Op      string  `json:"op" binding:"required"`
	Query   string  `json:"query"`
	Index   int     `json:"index"`
	From    int     `json:"from"`
	To      int     `json:"to"`
	Volume  float64 `json:"volume"`
	Enable  bool    `json:"enable"`
	Count   int     `json:"count"`
}

func (s *Server) handleControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), command.Request{
		GuildID:  req.GuildID,
		UserID:   "dashboard",
		UserName: "Dashboard",
		Op:       command.Op(req.Op),
		Query:    req.Query,
		Index:    req.Index,
		From:     req.From,
		To:       req.To,
		Volume:   req.Volume,
		Enable:   req.Enable,
		Count:    req.Count,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": res.Message, "candidates": res.Candidates})
	case session.IsValidation(err) || errors.Is(err, command.ErrUnknownOp):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		zlog.Error().Err(err).Msgf("dashboard: control failed: guild=%s op=%s", req.GuildID, req.Op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
