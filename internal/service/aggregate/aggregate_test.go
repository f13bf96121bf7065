package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectvision/internal/model"
)

func catDogCatalog(t *testing.T) *model.ClassCatalog {
	t.Helper()
	c, err := model.NewClassCatalog([]model.ClassEntry{{ID: 0, Name: "cat"}, {ID: 1, Name: "dog"}})
	require.NoError(t, err)
	return c
}

func det(id int, name string, conf float64) model.RawDetection {
	return model.RawDetection{ClassID: id, ClassName: name, Confidence: conf}
}

func TestAggregate_CatDogExample(t *testing.T) {
	catalog := catDogCatalog(t)
	detections := []model.RawDetection{
		det(0, "cat", 0.8),
		det(1, "dog", 0.3),
		det(0, "cat", 0.6),
	}

	res, err := Aggregate(detections, catalog, 0.5)
	require.NoError(t, err)

	assert.Equal(t, []string{"cat"}, res.DetectedObjects)
	assert.Equal(t, model.ScoreMap{{Name: "cat", Confidence: 0.8}, {Name: "dog", Confidence: 0.3}}, res.AllPredictions)
	assert.Equal(t, model.BinaryMap{{Name: "cat", Detected: 1}, {Name: "dog", Detected: 0}}, res.BinaryPredictions)
	assert.Equal(t, 0.5, res.Threshold)
	assert.Equal(t, 1, res.NumDetected)
}

func TestAggregate_EmptyDetections(t *testing.T) {
	catalog := catDogCatalog(t)

	res, err := Aggregate(nil, catalog, 0.5)
	require.NoError(t, err)

	assert.Empty(t, res.DetectedObjects)
	assert.NotNil(t, res.DetectedObjects)
	assert.Len(t, res.AllPredictions, 2)
	assert.Len(t, res.BinaryPredictions, 2)
	assert.Equal(t, 0, res.NumDetected)
	for _, s := range res.AllPredictions {
		assert.Zero(t, s.Confidence)
	}
}

func TestAggregate_MaxConfidenceNotSumOrAverage(t *testing.T) {
	catalog := catDogCatalog(t)

	res, err := Aggregate([]model.RawDetection{det(1, "dog", 0.3), det(1, "dog", 0.9)}, catalog, 0.5)
	require.NoError(t, err)

	conf, ok := res.AllPredictions.Get("dog")
	require.True(t, ok)
	assert.Equal(t, 0.9, conf)
}

func TestAggregate_ThresholdBounds(t *testing.T) {
	catalog := catDogCatalog(t)

	tests := []struct {
		threshold float64
		wantErr   bool
	}{
		{0.0, false},
		{1.0, false},
		{0.5, false},
		{-0.1, true},
		{1.5, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		res, err := Aggregate([]model.RawDetection{det(0, "cat", 0.7)}, catalog, tt.threshold)
		if tt.wantErr {
			assert.ErrorIs(t, err, model.ErrInvalidArgument, "threshold %v", tt.threshold)
			assert.Nil(t, res)
			continue
		}
		assert.NoError(t, err, "threshold %v", tt.threshold)
	}
}

func TestAggregate_ThresholdIsInclusive(t *testing.T) {
	catalog := catDogCatalog(t)

	res, err := Aggregate([]model.RawDetection{det(0, "cat", 0.5)}, catalog, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, res.DetectedObjects)

	res, err = Aggregate([]model.RawDetection{det(0, "cat", 1.0)}, catalog, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NumDetected)
}

func TestAggregate_UnknownClassIsDataIntegrity(t *testing.T) {
	catalog := catDogCatalog(t)

	res, err := Aggregate([]model.RawDetection{det(0, "cat", 0.9), det(7, "zebra", 0.9)}, catalog, 0.5)
	assert.ErrorIs(t, err, model.ErrDataIntegrity)
	assert.Nil(t, res)
}

func TestAggregate_NameMismatchIsDataIntegrity(t *testing.T) {
	catalog := catDogCatalog(t)

	_, err := Aggregate([]model.RawDetection{det(0, "dog", 0.9)}, catalog, 0.5)
	assert.ErrorIs(t, err, model.ErrDataIntegrity)
}

func TestAggregate_ConfidenceOutOfRangeIsDataIntegrity(t *testing.T) {
	catalog := catDogCatalog(t)

	for _, conf := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := Aggregate([]model.RawDetection{det(0, "cat", conf)}, catalog, 0.5)
		assert.ErrorIs(t, err, model.ErrDataIntegrity, "confidence %v", conf)
	}
}

func TestAggregate_EmptyNameUsesCatalog(t *testing.T) {
	catalog := catDogCatalog(t)

	res, err := Aggregate([]model.RawDetection{det(1, "", 0.7)}, catalog, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog"}, res.DetectedObjects)
}

func TestAggregate_NilCatalog(t *testing.T) {
	_, err := Aggregate(nil, nil, 0.5)
	assert.ErrorIs(t, err, model.ErrUninitialized)
}

func TestAggregate_Invariants(t *testing.T) {
	catalog, err := model.NewClassCatalogFromNames([]string{"person", "bicycle", "car", "dog", "cat", "bird"})
	require.NoError(t, err)

	detections := []model.RawDetection{
		det(2, "car", 0.91),
		det(0, "person", 0.45),
		det(2, "car", 0.66),
		det(4, "cat", 0.52),
		det(0, "person", 0.77),
		det(5, "bird", 0.12),
	}

	res, err := Aggregate(detections, catalog, 0.5)
	require.NoError(t, err)

	assert.Len(t, res.AllPredictions, catalog.Len())
	assert.Len(t, res.BinaryPredictions, catalog.Len())
	assert.Equal(t, len(res.DetectedObjects), res.NumDetected)
	assert.Equal(t, []string{"car", "cat", "person"}, res.DetectedObjects)

	seen := map[string]bool{}
	for _, name := range res.DetectedObjects {
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}

	for _, f := range res.BinaryPredictions {
		assert.Equal(t, seen[f.Name], f.Detected == 1, f.Name)
		if f.Detected == 1 {
			conf, _ := res.AllPredictions.Get(f.Name)
			assert.GreaterOrEqual(t, conf, 0.5)
		}
	}

	for i := 1; i < len(res.AllPredictions); i++ {
		assert.GreaterOrEqual(t, res.AllPredictions[i-1].Confidence, res.AllPredictions[i].Confidence)
	}
}

func TestAggregate_TiesKeepCatalogOrder(t *testing.T) {
	catalog, err := model.NewClassCatalogFromNames([]string{"a", "b", "c", "d"})
	require.NoError(t, err)

	res, err := Aggregate([]model.RawDetection{det(3, "d", 0.4), det(1, "b", 0.4)}, catalog, 0.5)
	require.NoError(t, err)

	names := make([]string, len(res.AllPredictions))
	for i, s := range res.AllPredictions {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, names)
	assert.Equal(t, model.BinaryMap{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}, res.BinaryPredictions)
}

func TestAggregate_Idempotent(t *testing.T) {
	catalog := catDogCatalog(t)
	detections := []model.RawDetection{det(1, "dog", 0.6), det(0, "cat", 0.9)}

	first, err := Aggregate(detections, catalog, 0.5)
	require.NoError(t, err)
	second, err := Aggregate(detections, catalog, 0.5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"dog", "cat"}, first.DetectedObjects)
}

func TestAggregate_JSONShape(t *testing.T) {
	catalog := catDogCatalog(t)

	res, err := Aggregate([]model.RawDetection{det(1, "dog", 0.75)}, catalog, 0.5)
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"detected_objects": ["dog"],
		"all_predictions": {"dog": 0.75, "cat": 0},
		"binary_predictions": {"cat": 0, "dog": 1},
		"threshold": 0.5,
		"num_detected": 1
	}`, string(data))
	// key order is part of the contract for all_predictions
	assert.Contains(t, string(data), `"all_predictions":{"dog":0.75,"cat":0}`)
}

func TestFilterAndUnique(t *testing.T) {
	detections := []model.RawDetection{
		det(1, "dog", 0.3),
		det(0, "cat", 0.8),
		det(1, "dog", 0.7),
		det(0, "cat", 0.5),
	}

	kept := Filter(detections, 0.5)
	require.Len(t, kept, 3)
	assert.Equal(t, []string{"cat", "dog"}, Unique(kept))
	assert.Empty(t, Filter(detections, 0.9))
}
