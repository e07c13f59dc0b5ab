// Package api exposes the tracker's REST surface: handle binding, handle
// listing, and manual sync triggers. Everything interesting happens behind
// the Service interface; this layer is validation, caching and transport.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cptracker/internal/config"
	"cptracker/internal/db"
	"cptracker/internal/platform"
	"cptracker/internal/redis"
	syncer "cptracker/internal/sync"
)

// Service is the orchestrator surface the handlers call.
type Service interface {
	BindHandle(ctx context.Context, userID int64, p platform.Platform, handle string) (*syncer.HandleView, error)
	UnbindHandle(ctx context.Context, userID int64, p platform.Platform) error
	ListHandles(ctx context.Context, userID int64) ([]syncer.HandleView, error)
	SyncAll(ctx context.Context) error
	SyncOne(ctx context.Context, userID int64) error
}

type Server struct {
	logger  *slog.Logger
	db      *db.DB
	redis   *redis.Client
	svc     Service
	cfg     config.Config
	router  *gin.Engine
	clients *clientLimiters
}

func NewServer(logger *slog.Logger, dbConn *db.DB, redisClient *redis.Client, svc Service, cfg config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		logger:  logger,
		db:      dbConn,
		redis:   redisClient,
		svc:     svc,
		cfg:     cfg,
		router:  gin.New(),
		clients: newClientLimiters(10, 20, 10*time.Minute),
	}

	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/users/:user_id/handles", s.listHandles)
		v1.POST("/users/:user_id/handles", s.bindHandle)
		v1.DELETE("/users/:user_id/handles/:platform", s.unbindHandle)
		v1.POST("/users/:user_id/sync", s.syncUser)
		v1.POST("/sync", s.syncAll)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ctx derives a bounded request context.
func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 15*time.Second)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	dbStatus := "connected"
	if s.db == nil {
		dbStatus = "not_configured"
	} else if err := s.db.Ping(ctx); err != nil {
		dbStatus = "error"
	}

	redisStatus := "connected"
	if s.redis == nil {
		redisStatus = "not_configured"
	} else if err := s.redis.Ping(ctx); err != nil {
		redisStatus = "error"
	}

	status := http.StatusOK
	if dbStatus == "error" || redisStatus == "error" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
