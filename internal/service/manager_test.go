package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/service/ai"
	"objectvision/internal/service/cache"
)

type fakeDetector struct {
	catalog *model.ClassCatalog
	set     *model.DetectionSet
	err     error
	calls   atomic.Int32
	floor   atomic.Value
	block   chan struct{}
	// filter drops detections below the requested confidence like a real model
	filter bool
}

func (f *fakeDetector) Detect(ctx context.Context, image []byte, minConfidence float64) (*model.DetectionSet, error) {
	f.calls.Add(1)
	f.floor.Store(minConfidence)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	if !f.filter {
		return f.set, nil
	}
	kept := make([]model.RawDetection, 0, len(f.set.Detections))
	for _, d := range f.set.Detections {
		if d.Confidence >= minConfidence {
			kept = append(kept, d)
		}
	}
	return &model.DetectionSet{Detections: kept, Width: f.set.Width, Height: f.set.Height}, nil
}
func (f *fakeDetector) Catalog() *model.ClassCatalog { return f.catalog }
func (f *fakeDetector) Info() ai.Info                { return ai.Info{Backend: "fake", ModelName: "fake-1"} }
func (f *fakeDetector) Close() error                 { return nil }

type fakeAnnotator struct {
	got []model.RawDetection
}

func (a *fakeAnnotator) Annotate(image []byte, detections []model.RawDetection) ([]byte, error) {
	a.got = detections
	return []byte("annotated"), nil
}

func catDogDetector(t *testing.T) *fakeDetector {
	t.Helper()
	catalog, err := model.NewClassCatalogFromNames([]string{"cat", "dog", "bird"})
	require.NoError(t, err)
	return &fakeDetector{
		catalog: catalog,
		set: &model.DetectionSet{
			Detections: []model.RawDetection{
				{ClassID: 0, ClassName: "cat", Confidence: 0.9, Box: &model.Box{X1: 1, Y1: 1, X2: 5, Y2: 5}},
				{ClassID: 1, ClassName: "dog", Confidence: 0.3, Box: &model.Box{X1: 2, Y1: 2, X2: 6, Y2: 6}},
			},
			Width:  64,
			Height: 48,
		},
	}
}

func newManager(t *testing.T, d *fakeDetector, c cache.DetectionCache, a ai.Annotator) *Manager {
	t.Helper()
	pool, err := ai.NewPool([]ai.Detector{d})
	require.NoError(t, err)
	return NewManager(pool, c, a, nil, ManagerOptions{MinConfidence: 0.25, DefaultThreshold: 0.5, AcquireTimeout: 50 * time.Millisecond}, logger.NewNop())
}

func request(threshold float64) Request {
	return Request{ID: "req", Source: "test", Image: model.NewImage("photo.jpg", []byte("image-bytes")), Threshold: threshold}
}

func TestManager_Predict(t *testing.T) {
	d := catDogDetector(t)
	m := newManager(t, d, nil, nil)

	p, err := m.Predict(context.Background(), request(0.5))
	require.NoError(t, err)

	assert.Equal(t, []string{"cat"}, p.Result.DetectedObjects)
	dog, ok := p.Result.AllPredictions.Get("dog")
	assert.True(t, ok)
	assert.Equal(t, 0.3, dog)
	assert.Len(t, p.Detections, 1)
	assert.Equal(t, 64, p.Width)
	assert.False(t, p.Cached)
	assert.Equal(t, 0.25, d.floor.Load())

	p, err = m.Predict(context.Background(), request(0.2))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, p.Result.DetectedObjects)
	assert.Len(t, p.Detections, 2)
}

func TestManager_PredictErrors(t *testing.T) {
	d := catDogDetector(t)
	m := newManager(t, d, nil, nil)

	_, err := m.Predict(context.Background(), request(1.5))
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Zero(t, d.calls.Load())

	req := request(0.5)
	req.Image = model.NewImage("empty.png", nil)
	_, err = m.Predict(context.Background(), req)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	d.set = &model.DetectionSet{Detections: []model.RawDetection{{ClassID: 9, Confidence: 0.9}}}
	_, err = m.Predict(context.Background(), request(0.5))
	assert.ErrorIs(t, err, model.ErrDataIntegrity)

	d.err = errors.New("inference failed")
	_, err = m.Predict(context.Background(), request(0.5))
	assert.ErrorContains(t, err, "inference failed")
}

func TestManager_Uninitialized(t *testing.T) {
	m := NewManager(nil, nil, nil, nil, ManagerOptions{DefaultThreshold: 0.5}, logger.NewNop())

	assert.False(t, m.Ready())
	_, err := m.Predict(context.Background(), request(0.5))
	assert.ErrorIs(t, err, model.ErrUninitialized)
	_, err = m.Info()
	assert.ErrorIs(t, err, model.ErrUninitialized)
	assert.ErrorIs(t, m.Health(context.Background()), model.ErrUninitialized)
	assert.NoError(t, m.Close())
}

func TestManager_DetectorBusy(t *testing.T) {
	d := catDogDetector(t)
	d.block = make(chan struct{})
	m := newManager(t, d, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Predict(context.Background(), request(0.5))
	}()
	require.Eventually(t, func() bool { return d.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := m.Predict(context.Background(), request(0.5))
	assert.ErrorIs(t, err, model.ErrUninitialized)
	assert.ErrorContains(t, err, "detector busy (1 of 1 in use)")

	close(d.block)
	<-done
}

func TestManager_CachesRawDetections(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedis(context.Background(), cache.Options{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)

	d := catDogDetector(t)
	m := newManager(t, d, c, nil)
	defer m.Close()

	p, err := m.Predict(context.Background(), request(0.5))
	require.NoError(t, err)
	assert.False(t, p.Cached)

	p, err = m.Predict(context.Background(), request(0.3))
	require.NoError(t, err)
	assert.True(t, p.Cached)
	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t, []string{"cat", "dog"}, p.Result.DetectedObjects)

	digest := model.NewImage("x", []byte("image-bytes")).Digest()
	assert.True(t, mr.Exists(cache.Key("fake", "fake-1", 0.25, digest)))

	// a threshold below the configured floor needs its own detector run
	p, err = m.Predict(context.Background(), request(0.1))
	require.NoError(t, err)
	assert.False(t, p.Cached)
	assert.Equal(t, int32(2), d.calls.Load())
	assert.True(t, mr.Exists(cache.Key("fake", "fake-1", 0.1, digest)))
}

func TestManager_ThresholdBelowFloor(t *testing.T) {
	d := catDogDetector(t)
	d.filter = true
	d.set.Detections = []model.RawDetection{
		{ClassID: 0, ClassName: "cat", Confidence: 0.2, Box: &model.Box{X1: 1, Y1: 1, X2: 5, Y2: 5}},
		{ClassID: 1, ClassName: "dog", Confidence: 0.05, Box: &model.Box{X1: 2, Y1: 2, X2: 6, Y2: 6}},
	}
	m := newManager(t, d, nil, nil)

	p, err := m.Predict(context.Background(), request(0.1))
	require.NoError(t, err)
	assert.Equal(t, 0.1, d.floor.Load())
	assert.Equal(t, []string{"cat"}, p.Result.DetectedObjects)
	cat, ok := p.Result.AllPredictions.Get("cat")
	assert.True(t, ok)
	assert.Equal(t, 0.2, cat)
	flag, _ := p.Result.BinaryPredictions.Get("cat")
	assert.Equal(t, 1, flag)

	p, err = m.Predict(context.Background(), request(0.0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.floor.Load())
	assert.Equal(t, []string{"cat", "dog"}, p.Result.DetectedObjects)

	// above the floor the configured minimum applies
	p, err = m.Predict(context.Background(), request(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.25, d.floor.Load())
	assert.Empty(t, p.Result.DetectedObjects)
}

func TestManager_Annotate(t *testing.T) {
	d := catDogDetector(t)
	a := &fakeAnnotator{}
	m := newManager(t, d, nil, a)

	p, img, err := m.Annotate(context.Background(), request(0.5))
	require.NoError(t, err)
	assert.Equal(t, []byte("annotated"), img)
	assert.Equal(t, p.Detections, a.got)
	require.Len(t, a.got, 1)
	assert.Equal(t, "cat", a.got[0].ClassName)

	m = newManager(t, catDogDetector(t), nil, nil)
	_, _, err = m.Annotate(context.Background(), request(0.5))
	assert.ErrorIs(t, err, model.ErrUninitialized)
}
