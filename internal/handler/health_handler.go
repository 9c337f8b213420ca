package handler

import (
	"context"
	"net/http"
	"time"

	"patapesa/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a dependency answers. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    model.StatusSuccess,
		"message":   "pong",
		"timestamp": time.Now().UTC(),
	})
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": model.StatusError, "db": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "healthy"})
}

// RegisterHealthRoutes registers liveness, readiness and metrics routes
func (h *HealthHandler) RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/ping", h.Ping)
	r.POST("/ping", h.Ping)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
