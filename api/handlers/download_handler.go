package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/twitch-vod-go/internal/app"
	"github.com/yourusername/twitch-vod-go/internal/domain"
	"go.uber.org/zap"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(downloadMgr *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// StartDownload handles POST /api/v1/downloads
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req domain.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.VodID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vod_id is required"})
		return
	}

	if req.FileFormat != "" && !domain.ValidateFormat(req.FileFormat) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_format must be ts or mp4"})
		return
	}

	job, err := h.downloadMgr.StartDownload(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to start download", zap.Error(err))
		switch {
		case errors.Is(err, domain.ErrStorageQuota):
			c.JSON(http.StatusInsufficientStorage, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrNoMetadata), errors.Is(err, domain.ErrNoValidQuality), errors.Is(err, domain.ErrNoSegmentsInRange):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, job.Snapshot())
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	id := c.Param("id")

	job, err := h.downloadMgr.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	jobs := h.downloadMgr.ListJobs()

	if state := c.Query("state"); state != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if string(job.State) == state {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.downloadMgr.Stats())
}

// GetHistory handles GET /api/v1/downloads/history
func (h *DownloadHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.downloadMgr.History(limit)
	if err != nil {
		h.logger.Error("Failed to read history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.CancelDownload(id); err != nil {
		h.logger.Error("Failed to cancel download", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download cancelled"})
}

// PauseDownload handles POST /api/v1/downloads/:id/pause
func (h *DownloadHandler) PauseDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.PauseDownload(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download paused"})
}

// ResumeDownload handles POST /api/v1/downloads/:id/resume
func (h *DownloadHandler) ResumeDownload(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.ResumeDownload(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "download resumed"})
}
