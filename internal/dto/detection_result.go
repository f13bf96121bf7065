package dto

import "objectvision/internal/model"

// DetectionResult is one box in the predict_with_boxes response.
type DetectionResult struct {
	Class      string    `json:"class"`
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"` // [x1, y1, x2, y2]
}

// NewDetectionResults converts detections; the slice is never nil.
func NewDetectionResults(detections []model.RawDetection) []DetectionResult {
	out := make([]DetectionResult, 0, len(detections))
	for _, d := range detections {
		r := DetectionResult{Class: d.ClassName, ClassID: d.ClassID, Confidence: d.Confidence}
		if d.Box != nil {
			corners := d.Box.Corners()
			r.Box = corners[:]
		}
		out = append(out, r)
	}
	return out
}
