// Package postprocess turns raw model output tensors into detections.
package postprocess

import (
	"fmt"
	"math"
	"sort"

	"objectvision/internal/model"
)

// SSDRowSize is the number of values per detection row of an SSD output:
// image id, class id, confidence, x1, y1, x2, y2 (normalized).
const SSDRowSize = 7

// DecodeYOLO decodes a YOLOv8 style output of shape [4+numClasses, N]
// (attribute-major). Box centres and sizes are in input-size pixels and are
// scaled to the source image. ClassID is the class index.
func DecodeYOLO(output []float32, numClasses, inputSize, srcWidth, srcHeight int, minConfidence float64) ([]model.RawDetection, error) {
	if numClasses <= 0 || inputSize <= 0 {
		return nil, fmt.Errorf("%w: invalid yolo geometry (classes=%d, input=%d)", model.ErrInvalidArgument, numClasses, inputSize)
	}
	attrs := 4 + numClasses
	if len(output) == 0 || len(output)%attrs != 0 {
		return nil, fmt.Errorf("%w: yolo output of %d values is not a multiple of %d", model.ErrDataIntegrity, len(output), attrs)
	}

	n := len(output) / attrs
	sx := float64(srcWidth) / float64(inputSize)
	sy := float64(srcHeight) / float64(inputSize)

	var detections []model.RawDetection
	for i := 0; i < n; i++ {
		classID, prob := 0, float32(0)
		for j := 0; j < numClasses; j++ {
			if curr := output[n*(j+4)+i]; curr > prob {
				prob = curr
				classID = j
			}
		}
		if float64(prob) < minConfidence {
			continue
		}

		xc := float64(output[i])
		yc := float64(output[n+i])
		w := float64(output[2*n+i])
		h := float64(output[3*n+i])

		detections = append(detections, model.RawDetection{
			ClassID:    classID,
			Confidence: float64(prob),
			Box: &model.Box{
				X1: (xc - w/2) * sx,
				Y1: (yc - h/2) * sy,
				X2: (xc + w/2) * sx,
				Y2: (yc + h/2) * sy,
			},
		})
	}
	return detections, nil
}

// DecodeSSD decodes the flat [N, 7] output of an SSD/TF detection graph.
func DecodeSSD(output []float32, srcWidth, srcHeight int, minConfidence float64) ([]model.RawDetection, error) {
	if len(output)%SSDRowSize != 0 {
		return nil, fmt.Errorf("%w: ssd output of %d values is not a multiple of %d", model.ErrDataIntegrity, len(output), SSDRowSize)
	}

	w, h := float64(srcWidth), float64(srcHeight)
	var detections []model.RawDetection
	for i := 0; i+SSDRowSize <= len(output); i += SSDRowSize {
		row := output[i : i+SSDRowSize]
		confidence := float64(row[2])
		if confidence < minConfidence {
			continue
		}
		detections = append(detections, model.RawDetection{
			ClassID:    int(row[1]),
			Confidence: confidence,
			Box: &model.Box{
				X1: float64(row[3]) * w,
				Y1: float64(row[4]) * h,
				X2: float64(row[5]) * w,
				Y2: float64(row[6]) * h,
			},
		})
	}
	return detections, nil
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b model.Box) float64 {
	ix := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1)
	iy := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS applies class-aware greedy non-maximum suppression. The result is in
// descending confidence order. Detections without a box are never suppressed.
func NMS(detections []model.RawDetection, iouThreshold float64) []model.RawDetection {
	sorted := make([]model.RawDetection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]model.RawDetection, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		if sorted[i].Box == nil {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].Box == nil || sorted[j].ClassID != sorted[i].ClassID {
				continue
			}
			if IoU(*sorted[i].Box, *sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// Clamp limits every box to the image bounds.
func Clamp(detections []model.RawDetection, width, height int) {
	w, h := float64(width), float64(height)
	for i := range detections {
		b := detections[i].Box
		if b == nil {
			continue
		}
		b.X1 = clamp(b.X1, 0, w)
		b.Y1 = clamp(b.Y1, 0, h)
		b.X2 = clamp(b.X2, 0, w)
		b.Y2 = clamp(b.Y2, 0, h)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Label fills ClassName from the catalog. An id unknown to the catalog keeps
// an empty name so the aggregator can report it.
func Label(detections []model.RawDetection, catalog *model.ClassCatalog) {
	for i := range detections {
		if name, ok := catalog.Name(detections[i].ClassID); ok {
			detections[i].ClassName = name
		}
	}
}
