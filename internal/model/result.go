package model

import (
	"bytes"
	"encoding/json"
)

// ClassScore is the highest confidence seen for one class.
type ClassScore struct {
	Name       string
	Confidence float64
}

// ScoreMap is an ordered class -> confidence mapping. It serializes as a JSON
// object whose keys keep slice order.
type ScoreMap []ClassScore

// Get returns the confidence recorded for name.
func (m ScoreMap) Get(name string) (float64, bool) {
	for _, s := range m {
		if s.Name == name {
			return s.Confidence, true
		}
	}
	return 0, false
}

// MarshalJSON writes the map as an object in slice order.
func (m ScoreMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeEntry(&buf, s.Name, s.Confidence); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ClassFlag records whether a class was detected (1) or not (0).
type ClassFlag struct {
	Name     string
	Detected int
}

// BinaryMap is an ordered class -> 0|1 mapping serialized as a JSON object.
type BinaryMap []ClassFlag

// Get returns the flag recorded for name.
func (m BinaryMap) Get(name string) (int, bool) {
	for _, f := range m {
		if f.Name == name {
			return f.Detected, true
		}
	}
	return 0, false
}

// MarshalJSON writes the map as an object in slice order.
func (m BinaryMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeEntry(&buf, f.Name, f.Detected); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeEntry(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// AggregatedResult is the per-request summary of a detection run.
type AggregatedResult struct {
	DetectedObjects   []string  `json:"detected_objects"`
	AllPredictions    ScoreMap  `json:"all_predictions"`
	BinaryPredictions BinaryMap `json:"binary_predictions"`
	Threshold         float64   `json:"threshold"`
	NumDetected       int       `json:"num_detected"`
}
