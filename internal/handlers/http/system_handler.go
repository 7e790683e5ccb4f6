package http

import (
	"context"
	"net/http"

	"sportshub/internal/infrastructure/distributed"
	"sportshub/internal/infrastructure/monitoring"
	"sportshub/internal/infrastructure/signal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RealtimeStats reports this node's realtime load.
type RealtimeStats interface {
	Stats() signal.Stats
}

// ClusterRegistry lists every node's realtime load.
type ClusterRegistry interface {
	List(ctx context.Context) ([]distributed.InstanceStats, error)
}

// SystemHandler serves health, readiness, metrics and realtime stats.
type SystemHandler struct {
	health  *monitoring.HealthChecker
	stats   RealtimeStats
	cluster ClusterRegistry
	metrics http.Handler
	logger  *zap.SugaredLogger
}

func NewSystemHandler(health *monitoring.HealthChecker, stats RealtimeStats, logger *zap.SugaredLogger) *SystemHandler {
	return &SystemHandler{health: health, stats: stats, logger: logger}
}

// WithCluster adds per-node stats from the instance registry.
func (h *SystemHandler) WithCluster(cluster ClusterRegistry) *SystemHandler {
	h.cluster = cluster
	return h
}

// WithMetrics mounts a Prometheus handler at the metrics path.
func (h *SystemHandler) WithMetrics(metrics http.Handler) *SystemHandler {
	h.metrics = metrics
	return h
}

func (h *SystemHandler) SetupRoutes(router gin.IRouter, metricsPath string) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	if h.metrics != nil {
		router.GET(metricsPath, gin.WrapH(h.metrics))
	}
	if h.stats != nil {
		router.GET("/api/realtime/stats", h.RealtimeStats)
	}
}

func (h *SystemHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status == monitoring.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *SystemHandler) Ready(c *gin.Context) {
	if !h.health.IsReady(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

type realtimeStatsView struct {
	signal.Stats
	Instances []distributed.InstanceStats `json:"instances,omitempty"`
}

func (h *SystemHandler) RealtimeStats(c *gin.Context) {
	view := realtimeStatsView{Stats: h.stats.Stats()}
	if h.cluster != nil {
		instances, err := h.cluster.List(c.Request.Context())
		if err != nil {
			h.logger.Warnw("Failed to list cluster instances", "error", err)
		} else {
			view.Instances = instances
		}
	}
	respond(c, http.StatusOK, view, nil)
}
