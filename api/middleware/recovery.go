package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/pkg/logger"
)

// Recovery returns panic-recovery middleware. The panic is logged with
// its stack, mirrored into the error log category, and answered with a
// generic 500 body.
func Recovery(log *zap.Logger, multiLog *logger.MultiLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				fields := []zap.Field{
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				}
				log.Error("panic recovered", fields...)
				if multiLog != nil {
					multiLog.LogAppError("panic recovered", fields...)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
