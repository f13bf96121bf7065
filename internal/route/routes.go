package route

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"objectvision/internal/config"
	"objectvision/internal/handler"
	"objectvision/internal/logger"
	"objectvision/internal/middleware"
	"objectvision/internal/service"
)

// SetupRoutes registers static files, the prediction API, websocket feeds,
// admin log endpoints and the middleware chain.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger.Zap()))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Static files
	staticDir := cfg.Server.StaticDirectory
	index := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		r.StaticFile("/", index)
		r.Static("/static", staticDir)
	} else {
		logger.Warning("Web interface not found at %s", index)
		r.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"service": "objectvision", "health": "/api/health"})
		})
	}

	r.GET("/version", handler.VersionHandler)

	// API endpoints
	api := r.Group("/api")
	{
		api.GET("/health", handler.HealthHandler(manager))
		api.GET("/info", handler.InfoHandler(manager))
		api.POST("/predict", handler.PredictHandler(manager, cfg, logger))
		api.POST("/predict_with_boxes", handler.PredictWithBoxesHandler(manager, cfg, logger))
		api.POST("/predict/annotated", handler.AnnotatedHandler(manager, cfg, logger))
		api.GET("/stream", handler.StreamWebsocketHandler(manager, cfg, logger))
		api.GET("/events", handler.EventsWebsocketHandler(manager, cfg.CORS.AllowedOrigins, logger))
	}

	// Auth endpoints
	r.POST("/auth/login", handler.LoginHandler(cfg.Auth, logger))
	r.GET("/auth/logout", handler.LogoutHandler)

	// Log endpoints
	logs := r.Group("/logs", middleware.AuthMiddleware(cfg.Auth.AdminPassword))
	{
		logs.GET("/:level", handler.ShowLogsHandler(logger))
		logs.POST("/:level/clear", handler.ClearLogsHandler(logger))
	}

	return r
}
