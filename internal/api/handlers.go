package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cptracker/internal/platform"
	syncer "cptracker/internal/sync"
)

const listCacheTTL = 60 * time.Second

type bindRequest struct {
	Platform string `json:"platform" binding:"required"`
	Handle   string `json:"handle" binding:"required"`
}

func (s *Server) bindHandle(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "platform and handle are required")
		return
	}

	p, err := platform.Parse(req.Platform)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "unsupported_platform", err.Error())
		return
	}

	// bind's synchronous phase includes one upstream verification fetch;
	// give it more room than the default request budget
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	view, err := s.svc.BindHandle(ctx, userID, p, req.Handle)
	switch {
	case errors.Is(err, syncer.ErrAlreadyBound):
		errorJSON(c, http.StatusConflict, "already_bound", "this platform is already bound for the user")
		return
	case errors.Is(err, syncer.ErrUnknownPlatform):
		errorJSON(c, http.StatusBadRequest, "unsupported_platform", "no fetcher registered for platform")
		return
	case errors.Is(err, syncer.ErrHandleNotFound):
		errorJSON(c, http.StatusUnprocessableEntity, "handle_not_found", "account does not exist or is unreachable")
		return
	case err != nil:
		s.logger.Error("bind_failed", "user_id", userID, "platform", p.String(), "error", err)
		errorJSON(c, http.StatusInternalServerError, "internal_error", "bind failed")
		return
	}

	s.invalidateListCache(ctx, userID)
	c.JSON(http.StatusCreated, view)
}

func (s *Server) unbindHandle(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	p, err := platform.Parse(c.Param("platform"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "unsupported_platform", err.Error())
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	err = s.svc.UnbindHandle(ctx, userID, p)
	switch {
	case errors.Is(err, syncer.ErrNotBound):
		errorJSON(c, http.StatusNotFound, "not_bound", "this platform is not bound for the user")
		return
	case err != nil:
		s.logger.Error("unbind_failed", "user_id", userID, "platform", p.String(), "error", err)
		errorJSON(c, http.StatusInternalServerError, "internal_error", "unbind failed")
		return
	}

	s.invalidateListCache(ctx, userID)
	c.JSON(http.StatusOK, gin.H{"status": "unbound"})
}

func (s *Server) listHandles(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cacheKey := listCacheKey(userID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	views, err := s.svc.ListHandles(ctx, userID)
	if err != nil {
		s.logger.Error("list_handles_failed", "user_id", userID, "error", err)
		errorJSON(c, http.StatusInternalServerError, "internal_error", "list failed")
		return
	}

	body := gin.H{"handles": views}
	if s.redis != nil {
		if raw, err := json.Marshal(body); err == nil {
			_ = s.redis.Set(ctx, cacheKey, string(raw), listCacheTTL)
		}
	}
	c.JSON(http.StatusOK, body)
}

// syncAll kicks off a full sync and returns immediately.
func (s *Server) syncAll(c *gin.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		if err := s.svc.SyncAll(ctx); err != nil {
			s.logger.Error("manual_sync_all_failed", "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "sync_started"})
}

// syncUser kicks off a one-user sync and returns immediately.
func (s *Server) syncUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.svc.SyncOne(ctx, userID); err != nil {
			s.logger.Error("manual_sync_user_failed", "user_id", userID, "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "sync_started", "user_id": userID})
}

func (s *Server) invalidateListCache(ctx context.Context, userID int64) {
	if s.redis != nil {
		_ = s.redis.Del(ctx, listCacheKey(userID))
	}
}

func listCacheKey(userID int64) string {
	return fmt.Sprintf("handles:%d", userID)
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		errorJSON(c, http.StatusBadRequest, "invalid_user_id", "user_id must be a positive integer")
		return 0, false
	}
	return id, true
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
