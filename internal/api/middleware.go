package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staydrive/inventory-engine/internal/auth"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

// RequestLogger logs every request once it has been served.
// Server errors log at error level, client errors at warn.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			log.String("method", c.Request.Method),
			log.String("path", c.FullPath()),
			log.Int("status", status),
			log.String("latency", time.Since(start).String()),
			log.String("client_ip", c.ClientIP()),
		}
		if userID := auth.GetUserID(c); userID != "" {
			attrs = append(attrs, log.String("user", userID))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			log.Error(ctx, "request failed", attrs...)
		case status >= 400:
			log.Warn(ctx, "request rejected", attrs...)
		default:
			log.Info(ctx, "request served", attrs...)
		}
	}
}
