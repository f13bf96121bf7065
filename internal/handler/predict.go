package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"objectvision/internal/config"
	"objectvision/internal/dto"
	"objectvision/internal/logger"
	"objectvision/internal/middleware"
	"objectvision/internal/model"
	"objectvision/internal/service"
	"objectvision/internal/service/aggregate"
)

// readRequest validates the upload and threshold into a manager request.
func readRequest(c *gin.Context, manager *service.Manager, cfg *config.Config, source string) (service.Request, error) {
	img, err := readUpload(c, cfg.Upload)
	if err != nil {
		return service.Request{}, err
	}
	threshold, err := parseThreshold(c, manager.DefaultThreshold())
	if err != nil {
		return service.Request{}, err
	}
	return service.Request{
		ID:        middleware.GetRequestID(c),
		Source:    source,
		Image:     img,
		Threshold: threshold,
	}, nil
}

func modelName(manager *service.Manager) string {
	info, err := manager.Info()
	if err != nil {
		return ""
	}
	return info.ModelName
}

// PredictHandler handles POST /api/predict with the aggregated summary.
func PredictHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := readRequest(c, manager, cfg, "predict")
		if err != nil {
			respondError(c, logger, err)
			return
		}

		prediction, err := manager.Predict(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, dto.NewPredictResponse(prediction.Result, modelName(manager)))
	}
}

// PredictWithBoxesHandler handles POST /api/predict_with_boxes.
func PredictWithBoxesHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := readRequest(c, manager, cfg, "predict_with_boxes")
		if err != nil {
			respondError(c, logger, err)
			return
		}

		prediction, err := manager.Predict(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, dto.BoxesResponse{
			Success:         true,
			Detections:      dto.NewDetectionResults(prediction.Detections),
			DetectedObjects: aggregate.Unique(prediction.Detections),
			NumDetected:     len(prediction.Detections),
			Threshold:       req.Threshold,
			ModelInfo:       modelName(manager),
			Width:           prediction.Width,
			Height:          prediction.Height,
			InferenceTime:   prediction.InferenceTime.Seconds(),
		})
	}
}

// AnnotatedHandler handles POST /api/predict/annotated and returns the image
// as JPEG with the boxes drawn.
func AnnotatedHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !manager.CanAnnotate() {
			respondError(c, logger, fmt.Errorf("%w: no annotator available", model.ErrUninitialized))
			return
		}

		req, err := readRequest(c, manager, cfg, "annotated")
		if err != nil {
			respondError(c, logger, err)
			return
		}

		prediction, image, err := manager.Annotate(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.Header("X-Detected-Objects", strings.Join(prediction.Result.DetectedObjects, ","))
		c.Data(http.StatusOK, "image/jpeg", image)
	}
}
