// Package ai defines the detector contract shared by the inference backends
// and the pool that hands detector instances to requests.
package ai

import (
	"context"

	"objectvision/internal/model"
)

// Detector runs a pre-trained object-detection model on encoded image bytes.
//
// Detect returns every detection at or above minConfidence; applying the
// request threshold is left to the caller. Implementations need not be safe
// for concurrent use, see Pool.
type Detector interface {
	Detect(ctx context.Context, image []byte, minConfidence float64) (*model.DetectionSet, error)
	Catalog() *model.ClassCatalog
	Info() Info
	Close() error
}

// Annotator draws detections onto an image and returns it JPEG encoded.
type Annotator interface {
	Annotate(image []byte, detections []model.RawDetection) ([]byte, error)
}

// Info describes the loaded model.
type Info struct {
	Backend      string `json:"backend"`
	ModelType    string `json:"model_type"`
	ModelName    string `json:"model_name"`
	InputSize    int    `json:"input_size"`
	PretrainedOn string `json:"pretrained_on"`
}

// HealthChecker is implemented by detectors that depend on another service.
type HealthChecker interface {
	Health(ctx context.Context) error
}
