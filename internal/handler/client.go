package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"objectvision/internal/logger"
	"objectvision/internal/middleware"
	"objectvision/internal/service"
	ws "objectvision/internal/service/websocket"
)

// newUpgrader accepts same-origin requests, requests without an Origin
// header and the configured CORS origins.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
				return true
			}
			return middleware.OriginAllowed(origin, allowedOrigins)
		},
	}
}

// EventsWebsocketHandler handles viewer connections on GET /api/events and
// registers them in the hub to receive prediction events.
func EventsWebsocketHandler(manager *service.Manager, allowedOrigins []string, logger *logger.Logger) gin.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(c *gin.Context) {
		hub := manager.GetHubService()
		if hub == nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Events are disabled"})
			return
		}

		connection, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(ws.PongWait))
		connection.SetPongHandler(func(string) error {
			connection.SetReadDeadline(time.Now().Add(ws.PongWait))
			return nil
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected: %v", err)
				}
				return
			}
		}
	}
}
