package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"voiceagents/internal/httpapi"
	"voiceagents/pkg/logger"
	"voiceagents/pkg/utils"
)

// newRouter wires middleware and routes.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(h httpapi.Handlers, authMW gin.HandlerFunc, allowedOrigins []string, log *slog.Logger, healthy func() error) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := fmt.Errorf("panic: %v", recovered)
		log.Error("handler panic", "err", err, "path", c.FullPath())
		utils.CaptureError(err, map[string]string{"component": "http", "route": c.FullPath()})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}))

	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(cfg))
	r.Use(logger.Middleware(log))

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := healthy(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	h.Register(api, authMW)
	return r
}
