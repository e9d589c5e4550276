package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/api/handlers"
	"github.com/yourusername/twitch-vod-go/api/middleware"
	"github.com/yourusername/twitch-vod-go/internal/app"
	"github.com/yourusername/twitch-vod-go/internal/domain"
	"github.com/yourusername/twitch-vod-go/internal/infrastructure"
	"github.com/yourusername/twitch-vod-go/pkg/logger"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	downloadMgr *app.DownloadManager,
	twitch *infrastructure.TwitchClient,
	playlists handlers.PlaylistResolver,
	store domain.SegmentStore,
	progressWS *handlers.ProgressWebSocketHandler,
	log *zap.Logger,
	multiLog *logger.MultiLogger,
) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log, multiLog))
	router.Use(middleware.Recovery(log, multiLog))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(downloadMgr, store)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Progress stream
	router.GET("/ws/progress", progressWS.HandleWebSocket)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Download endpoints
		downloadHandler := handlers.NewDownloadHandler(downloadMgr, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.StartDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/history", downloadHandler.GetHistory)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.POST("/:id/pause", downloadHandler.PauseDownload)
			downloads.POST("/:id/resume", downloadHandler.ResumeDownload)
		}

		// VOD endpoints
		vodHandler := handlers.NewVodHandler(twitch, playlists, log)
		vod := v1.Group("/vod")
		{
			vod.GET("/:id", vodHandler.GetMetadata)
			vod.GET("/:id/playlist.m3u8", vodHandler.GetPlaylist)
		}
	}

	return router
}
