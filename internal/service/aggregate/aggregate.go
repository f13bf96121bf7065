// Package aggregate reduces raw detector output into the per-class summary
// returned by the prediction endpoints.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"objectvision/internal/model"
)

// ValidateThreshold reports whether t is a usable confidence threshold.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: threshold must be between 0.0 and 1.0, got %v", model.ErrInvalidArgument, t)
	}
	return nil
}

// Aggregate builds the summary for detections against catalog.
//
// Every catalog class gets an entry in both maps. The maximum confidence per
// class is kept regardless of threshold; a class counts as detected once one
// of its detections reaches threshold. Detections may arrive unfiltered.
func Aggregate(detections []model.RawDetection, catalog *model.ClassCatalog, threshold float64) (*model.AggregatedResult, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: no class catalog", model.ErrUninitialized)
	}

	entries := catalog.Entries()
	scores := make(model.ScoreMap, len(entries))
	flags := make(model.BinaryMap, len(entries))
	for i, e := range entries {
		scores[i] = model.ClassScore{Name: e.Name}
		flags[i] = model.ClassFlag{Name: e.Name}
	}

	detected := make([]string, 0)
	for i, d := range detections {
		pos, err := resolve(d, catalog)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}

		if d.Confidence > scores[pos].Confidence {
			scores[pos].Confidence = d.Confidence
		}
		if d.Confidence >= threshold && flags[pos].Detected == 0 {
			flags[pos].Detected = 1
			detected = append(detected, entries[pos].Name)
		}
	}

	// scores starts in catalog order, so a stable sort breaks ties by catalog position.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})

	return &model.AggregatedResult{
		DetectedObjects:   detected,
		AllPredictions:    scores,
		BinaryPredictions: flags,
		Threshold:         threshold,
		NumDetected:       len(detected),
	}, nil
}

// resolve checks a detection against the catalog and returns its position.
func resolve(d model.RawDetection, catalog *model.ClassCatalog) (int, error) {
	pos, ok := catalog.Position(d.ClassID)
	if !ok {
		return 0, fmt.Errorf("%w: class id %d (%q) is not in the catalog", model.ErrDataIntegrity, d.ClassID, d.ClassName)
	}
	if d.ClassName != "" {
		if name, _ := catalog.Name(d.ClassID); name != d.ClassName {
			return 0, fmt.Errorf("%w: class id %d is %q in the catalog, detector reported %q",
				model.ErrDataIntegrity, d.ClassID, name, d.ClassName)
		}
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return 0, fmt.Errorf("%w: confidence %v outside [0,1]", model.ErrDataIntegrity, d.Confidence)
	}
	return pos, nil
}

// Filter returns the detections at or above threshold, in detector order.
func Filter(detections []model.RawDetection, threshold float64) []model.RawDetection {
	out := make([]model.RawDetection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// Unique returns class names in first-seen order.
func Unique(detections []model.RawDetection) []string {
	seen := make(map[string]struct{}, len(detections))
	out := make([]string, 0)
	for _, d := range detections {
		if _, ok := seen[d.ClassName]; ok {
			continue
		}
		seen[d.ClassName] = struct{}{}
		out = append(out, d.ClassName)
	}
	return out
}
