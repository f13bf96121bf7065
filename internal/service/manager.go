package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/service/aggregate"
	"objectvision/internal/service/ai"
	"objectvision/internal/service/cache"
	"objectvision/internal/service/websocket"
)

// ManagerOptions holds the detector settings the manager applies per request.
type ManagerOptions struct {
	MinConfidence    float64
	DefaultThreshold float64
	AcquireTimeout   time.Duration
}

// Manager runs one prediction end to end: cache lookup or pooled inference,
// aggregation at the request threshold and the viewer event.
type Manager struct {
	pool       *ai.Pool
	cache      cache.DetectionCache
	annotator  ai.Annotator
	hubService *websocket.HubService
	opts       ManagerOptions
	logger     *logger.Logger
}

// Request is one image to predict on.
type Request struct {
	ID        string
	Source    string
	Image     *model.Image
	Threshold float64
}

// Prediction is the outcome of a request. Detections holds the detections at
// or above the threshold in detector order.
type Prediction struct {
	RequestID     string
	Result        *model.AggregatedResult
	Detections    []model.RawDetection
	Width         int
	Height        int
	InferenceTime time.Duration
	Cached        bool
}

// NewManager wires the prediction pipeline. pool may be nil when the model
// failed to load; every prediction then fails with ErrUninitialized.
// detectionCache, annotator and hub are optional.
func NewManager(pool *ai.Pool, detectionCache cache.DetectionCache, annotator ai.Annotator, hub *websocket.HubService, opts ManagerOptions, logger *logger.Logger) *Manager {
	if detectionCache == nil {
		detectionCache = cache.Nop{}
	}
	return &Manager{
		pool:       pool,
		cache:      detectionCache,
		annotator:  annotator,
		hubService: hub,
		opts:       opts,
		logger:     logger,
	}
}

// Ready reports whether a model is loaded.
func (m *Manager) Ready() bool {
	return m.pool != nil
}

// Health checks the loaded model and its dependencies.
func (m *Manager) Health(ctx context.Context) error {
	if m.pool == nil {
		return model.ErrUninitialized
	}
	return m.pool.Health(ctx)
}

// Info describes the loaded model.
func (m *Manager) Info() (ai.Info, error) {
	if m.pool == nil {
		return ai.Info{}, model.ErrUninitialized
	}
	return m.pool.Info(), nil
}

// Catalog returns the class catalog of the loaded model.
func (m *Manager) Catalog() (*model.ClassCatalog, error) {
	if m.pool == nil {
		return nil, model.ErrUninitialized
	}
	return m.pool.Catalog(), nil
}

// DefaultThreshold is used when a request carries none.
func (m *Manager) DefaultThreshold() float64 {
	return m.opts.DefaultThreshold
}

// CanAnnotate reports whether annotated images can be produced.
func (m *Manager) CanAnnotate() bool {
	return m.annotator != nil
}

// GetHubService returns the viewer hub, or nil when events are disabled.
func (m *Manager) GetHubService() *websocket.HubService {
	return m.hubService
}

// Predict runs req through the detector and aggregates at req.Threshold.
func (m *Manager) Predict(ctx context.Context, req Request) (*Prediction, error) {
	if err := aggregate.ValidateThreshold(req.Threshold); err != nil {
		return nil, err
	}
	if req.Image == nil || len(req.Image.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", model.ErrInvalidArgument)
	}
	if m.pool == nil {
		return nil, model.ErrUninitialized
	}

	start := time.Now()
	set, cached, err := m.detect(ctx, req.Image, m.floor(req.Threshold))
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	result, err := aggregate.Aggregate(set.Detections, m.pool.Catalog(), req.Threshold)
	if err != nil {
		if errors.Is(err, model.ErrDataIntegrity) {
			m.logger.Error("Request %s: detector output rejected: %v", req.ID, err)
		}
		return nil, err
	}

	prediction := &Prediction{
		RequestID:     req.ID,
		Result:        result,
		Detections:    aggregate.Filter(set.Detections, req.Threshold),
		Width:         set.Width,
		Height:        set.Height,
		InferenceTime: elapsed,
		Cached:        cached,
	}

	m.logger.Info("Request %s (%s): %d object(s) at threshold %.2f in %s, cached=%t",
		req.ID, req.Source, result.NumDetected, req.Threshold, elapsed, cached)

	if m.hubService != nil {
		m.hubService.Broadcast(websocket.Event{
			RequestID:       req.ID,
			Source:          req.Source,
			DetectedObjects: result.DetectedObjects,
			NumDetected:     result.NumDetected,
			Threshold:       result.Threshold,
			InferenceTime:   elapsed.Seconds(),
			Timestamp:       time.Now().UTC(),
		})
	}

	return prediction, nil
}

// Annotate predicts and draws the detections above the threshold onto the image.
func (m *Manager) Annotate(ctx context.Context, req Request) (*Prediction, []byte, error) {
	if m.annotator == nil {
		return nil, nil, fmt.Errorf("%w: no annotator available", model.ErrUninitialized)
	}

	prediction, err := m.Predict(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	annotated, err := m.annotator.Annotate(req.Image.Data, prediction.Detections)
	if err != nil {
		return nil, nil, err
	}
	return prediction, annotated, nil
}

// floor is the confidence the detector filters at: the configured minimum,
// lowered to the request threshold when that is below it.
func (m *Manager) floor(threshold float64) float64 {
	return math.Min(m.opts.MinConfidence, threshold)
}

// detect serves raw detections at or above floor from the cache or runs a
// pooled detector.
func (m *Manager) detect(ctx context.Context, img *model.Image, floor float64) (*model.DetectionSet, bool, error) {
	info := m.pool.Info()
	key := cache.Key(info.Backend, info.ModelName, floor, img.Digest())

	set, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.Warning("Cache lookup failed for %s: %v", key, err)
	} else if ok {
		return set, true, nil
	}

	acquireCtx := ctx
	if m.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.opts.AcquireTimeout)
		defer cancel()
	}
	detector, err := m.pool.Acquire(acquireCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		inUse := m.pool.Size() - m.pool.Available()
		return nil, false, fmt.Errorf("%w: detector busy (%d of %d in use): %v", model.ErrUninitialized, inUse, m.pool.Size(), err)
	}
	set, err = detector.Detect(ctx, img.Data, floor)
	m.pool.Release(detector)
	if err != nil {
		return nil, false, err
	}

	if err := m.cache.Set(ctx, key, set); err != nil {
		m.logger.Warning("Cache store failed for %s: %v", key, err)
	}
	return set, false, nil
}

// Close releases the detectors and the cache.
func (m *Manager) Close() error {
	var errs []error
	if m.pool != nil {
		errs = append(errs, m.pool.Close())
	}
	errs = append(errs, m.cache.Close())
	return errors.Join(errs...)
}
