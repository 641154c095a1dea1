package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codepadhq/codepad-server/internal/config"
	"github.com/codepadhq/codepad-server/internal/core"
	"github.com/codepadhq/codepad-server/internal/store"
)

// NewServer builds the HTTP server: websocket relay, health check, and the
// administrative read surface.
func NewServer(router *core.Router, rooms *core.RoomDirectory, history store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	engine.GET("/ws", gin.WrapH(NewWSHandler(router, logger)))

	admin := NewAdminHandlers(router, rooms, history, logger)
	api := engine.Group("/api")
	{
		api.GET("/rooms", admin.ListRooms)
		api.GET("/rooms/:room/members", admin.RoomMembers)
		api.GET("/rooms/:room/executions", admin.RoomExecutions)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// LoggerMiddleware logs HTTP requests after they complete.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
