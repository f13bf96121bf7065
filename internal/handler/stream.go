package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"objectvision/internal/config"
	"objectvision/internal/dto"
	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/service"
	"objectvision/internal/service/aggregate"
)

type streamSettings struct {
	Threshold *float64 `json:"threshold"`
}

type streamAck struct {
	Success   bool    `json:"success"`
	Threshold float64 `json:"threshold"`
}

// StreamWebsocketHandler handles GET /api/stream. Every binary message is an
// image frame answered like /api/predict; a text message {"threshold": 0.4}
// changes the threshold for this connection only.
func StreamWebsocketHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	upgrader := newUpgrader(cfg.CORS.AllowedOrigins)

	return func(c *gin.Context) {
		connection, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(cfg.Upload.MaxSize)

		ctx := c.Request.Context()
		threshold := manager.DefaultThreshold()
		streamID := uuid.NewString()
		frames := 0
		logger.Info("Stream %s connected from %s", streamID, c.ClientIP())

		for {
			messageType, msg, err := connection.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Stream %s closed: %v", streamID, err)
				}
				logger.Info("Stream %s disconnected after %d frame(s)", streamID, frames)
				return
			}

			var reply any
			switch messageType {
			case websocket.TextMessage:
				var settings streamSettings
				if err := json.Unmarshal(msg, &settings); err != nil || settings.Threshold == nil {
					reply = dto.ErrorResponse{Error: `expected {"threshold": <0.0-1.0>}`}
					break
				}
				if err := aggregate.ValidateThreshold(*settings.Threshold); err != nil {
					reply = dto.ErrorResponse{Error: err.Error()}
					break
				}
				threshold = *settings.Threshold
				reply = streamAck{Success: true, Threshold: threshold}

			case websocket.BinaryMessage:
				frames++
				prediction, err := manager.Predict(ctx, service.Request{
					ID:        fmt.Sprintf("%s-%d", streamID, frames),
					Source:    "stream",
					Image:     model.NewImage("frame", msg),
					Threshold: threshold,
				})
				if err != nil {
					if statusFor(err) >= http.StatusInternalServerError {
						logger.Error("Stream %s frame %d failed: %v", streamID, frames, err)
					}
					reply = dto.ErrorResponse{Error: errorMessage(err)}
					break
				}
				reply = dto.NewPredictResponse(prediction.Result, modelName(manager))

			default:
				continue
			}

			connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := connection.WriteJSON(reply); err != nil {
				logger.Warning("Stream %s write failed: %v", streamID, err)
				return
			}
		}
	}
}
