package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"objectvision/internal/dto"
	"objectvision/internal/logger"
	"objectvision/internal/model"
)

// statusFor maps an error to the response status.
func statusFor(err error) int {
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.Status
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUninitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrDataIntegrity):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the client-facing text for err.
func errorMessage(err error) string {
	if errors.Is(err, model.ErrUninitialized) {
		return "Classifier not initialized: " + err.Error()
	}
	return err.Error()
}

// respondError writes {success:false, error} and logs server-side failures.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	message := errorMessage(err)
	if status >= http.StatusInternalServerError {
		log.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, dto.ErrorResponse{Success: false, Error: message})
}
