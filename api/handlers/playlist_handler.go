package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/twitch-vod-go/internal/domain"
	"github.com/yourusername/twitch-vod-go/internal/infrastructure"
	"go.uber.org/zap"
)

// PlaylistResolver produces the master playlist for a VOD. The live
// implementation goes through the usher origin with interception
// attached, so denied VODs come back synthesized.
type PlaylistResolver interface {
	Master(ctx context.Context, vodID string) (string, error)
}

// VodHandler serves VOD metadata and master playlists
type VodHandler struct {
	twitch    *infrastructure.TwitchClient
	playlists PlaylistResolver
	logger    *zap.Logger
}

// NewVodHandler creates a new VOD handler
func NewVodHandler(twitch *infrastructure.TwitchClient, playlists PlaylistResolver, logger *zap.Logger) *VodHandler {
	return &VodHandler{
		twitch:    twitch,
		playlists: playlists,
		logger:    logger,
	}
}

// GetMetadata handles GET /api/v1/vod/:id
func (h *VodHandler) GetMetadata(c *gin.Context) {
	id := c.Param("id")

	meta, err := h.twitch.VideoMetadata(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNoMetadata) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vod not found"})
			return
		}
		h.logger.Error("Failed to fetch vod metadata", zap.String("vod_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vod_id":         id,
		"title":          meta.Title,
		"owner_login":    meta.OwnerLogin,
		"broadcast_type": meta.BroadcastType,
		"created_at":     meta.CreatedAt,
		"length_seconds": meta.LengthSeconds,
		"thumbnail_url":  domain.ThumbnailURL(id, 320, 180),
	})
}

// GetPlaylist handles GET /api/v1/vod/:id/playlist.m3u8
func (h *VodHandler) GetPlaylist(c *gin.Context) {
	id := c.Param("id")

	playlist, err := h.playlists.Master(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoMetadata):
			c.JSON(http.StatusNotFound, gin.H{"error": "vod not found"})
		case errors.Is(err, domain.ErrNoValidQuality):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no playable quality found"})
		default:
			h.logger.Error("Master playlist resolution failed", zap.String("vod_id", id), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", []byte(playlist))
}
