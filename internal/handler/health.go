package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"objectvision/internal/dto"
	"objectvision/internal/service"
	"objectvision/internal/version"
)

func infoResponse(manager *service.Manager) (*dto.InfoResponse, bool) {
	info, err := manager.Info()
	if err != nil {
		return nil, false
	}
	catalog, err := manager.Catalog()
	if err != nil {
		return nil, false
	}
	return &dto.InfoResponse{
		ModelType:    info.ModelType,
		ModelName:    info.ModelName,
		Backend:      info.Backend,
		ModelTrained: true,
		NumClasses:   catalog.Len(),
		ClassNames:   catalog.Names(),
		Threshold:    manager.DefaultThreshold(),
		InputSize:    info.InputSize,
		PretrainedOn: info.PretrainedOn,
	}, true
}

// HealthHandler handles GET /api/health. It answers 200 while the process
// is up; model_loaded tells whether predictions can be served.
func HealthHandler(manager *service.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := dto.HealthResponse{Status: "healthy", ModelType: "YOLOv8"}
		if info, ok := infoResponse(manager); ok {
			resp.ModelType = info.ModelType
			resp.ModelInfo = info
			resp.ModelLoaded = manager.Health(c.Request.Context()) == nil
		}
		c.JSON(http.StatusOK, resp)
	}
}

// InfoHandler handles GET /api/info.
func InfoHandler(manager *service.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, ok := infoResponse(manager)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Classifier not initialized"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// VersionHandler handles GET /version.
func VersionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.VersionResponse{
		Version:   version.Version,
		BuildTime: version.BuildTime,
		GitCommit: version.GitCommit,
		GoVersion: version.GoVersion(),
	})
}
