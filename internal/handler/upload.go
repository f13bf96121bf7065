package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"objectvision/internal/config"
	"objectvision/internal/model"
	"objectvision/internal/service/aggregate"
)

// uploadFields are the multipart fields accepted for the image, in order.
var uploadFields = []string{"file", "image"}

// httpError carries a response status chosen by the HTTP layer itself.
type httpError struct {
	Status  int
	Message string
}

func (e *httpError) Error() string { return e.Message }

// readUpload enforces the upload rules and returns the image bytes.
func readUpload(c *gin.Context, cfg config.UploadConfig) (*model.Image, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxSize)

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &httpError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("File too large. Maximum size is %d MB", cfg.MaxSize/(1024*1024)),
			}
		}
		return nil, &httpError{Status: http.StatusBadRequest, Message: "No file provided"}
	}

	form := c.Request.MultipartForm
	var header *multipart.FileHeader
	for _, field := range uploadFields {
		if files := form.File[field]; len(files) > 0 {
			header = files[0]
			break
		}
	}
	if header == nil {
		// a part without a filename is parsed as a plain value
		for _, field := range uploadFields {
			if _, ok := form.Value[field]; ok {
				return nil, &httpError{Status: http.StatusBadRequest, Message: "No file selected"}
			}
		}
		return nil, &httpError{Status: http.StatusBadRequest, Message: "No file provided"}
	}
	if header.Filename == "" {
		return nil, &httpError{Status: http.StatusBadRequest, Message: "No file selected"}
	}

	img := model.NewImage(header.Filename, nil)
	if !slices.Contains(cfg.AllowedExtensions, img.Extension()) {
		return nil, &httpError{
			Status:  http.StatusBadRequest,
			Message: "Invalid file type. Allowed types: " + strings.Join(cfg.AllowedExtensions, ", "),
		}
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, &httpError{Status: http.StatusBadRequest, Message: "Uploaded file is empty"}
	}

	return model.NewImage(header.Filename, data), nil
}

// parseThreshold reads the optional threshold form field.
func parseThreshold(c *gin.Context, fallback float64) (float64, error) {
	raw := strings.TrimSpace(c.Request.FormValue("threshold"))
	if raw == "" {
		return fallback, nil
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: threshold %q is not a number", model.ErrInvalidArgument, raw)
	}
	if err := aggregate.ValidateThreshold(threshold); err != nil {
		return 0, err
	}
	return threshold, nil
}
