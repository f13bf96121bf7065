package dto

import "objectvision/internal/model"

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Predictions is the aggregated result plus model description.
type Predictions struct {
	DetectedObjects   []string        `json:"detected_objects"`
	AllPredictions    model.ScoreMap  `json:"all_predictions"`
	BinaryPredictions model.BinaryMap `json:"binary_predictions"`
	Threshold         float64         `json:"threshold"`
	NumDetected       int             `json:"num_detected"`
	ModelTrained      bool            `json:"model_trained"`
	ModelInfo         string          `json:"model_info"`
}

type PredictResponse struct {
	Success     bool        `json:"success"`
	Predictions Predictions `json:"predictions"`
}

// NewPredictResponse wraps an aggregated result.
func NewPredictResponse(result *model.AggregatedResult, modelName string) PredictResponse {
	return PredictResponse{
		Success: true,
		Predictions: Predictions{
			DetectedObjects:   result.DetectedObjects,
			AllPredictions:    result.AllPredictions,
			BinaryPredictions: result.BinaryPredictions,
			Threshold:         result.Threshold,
			NumDetected:       result.NumDetected,
			ModelTrained:      true,
			ModelInfo:         modelName,
		},
	}
}

// BoxesResponse lists every detection at or above the threshold.
// NumDetected counts detections, not classes.
type BoxesResponse struct {
	Success         bool              `json:"success"`
	Detections      []DetectionResult `json:"detections"`
	DetectedObjects []string          `json:"detected_objects"`
	NumDetected     int               `json:"num_detected"`
	Threshold       float64           `json:"threshold"`
	ModelInfo       string            `json:"model_info"`
	Width           int               `json:"width"`
	Height          int               `json:"height"`
	InferenceTime   float64           `json:"inference_time"`
}

type HealthResponse struct {
	Status      string        `json:"status"`
	ModelLoaded bool          `json:"model_loaded"`
	ModelType   string        `json:"model_type"`
	ModelInfo   *InfoResponse `json:"model_info"`
}

type InfoResponse struct {
	ModelType    string   `json:"model_type"`
	ModelName    string   `json:"model_name"`
	Backend      string   `json:"backend"`
	ModelTrained bool     `json:"model_trained"`
	NumClasses   int      `json:"num_classes"`
	ClassNames   []string `json:"class_names"`
	Threshold    float64  `json:"threshold"`
	InputSize    int      `json:"input_size,omitempty"`
	PretrainedOn string   `json:"pretrained_on"`
}

type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}
