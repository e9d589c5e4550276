package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/twitch-vod-go/internal/app"
	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	downloadMgr *app.DownloadManager
	store       domain.SegmentStore
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(downloadMgr *app.DownloadManager, store domain.SegmentStore) *HealthHandler {
	return &HealthHandler{
		downloadMgr: downloadMgr,
		store:       store,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Storage struct {
		UsedBytes      int64 `json:"used_bytes"`
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"storage"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	if info, err := h.store.Quota(); err == nil {
		response.Storage.UsedBytes = info.Usage
		response.Storage.AvailableBytes = info.Available
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if _, err := h.store.Quota(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "segment store unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
