package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectvision/internal/model"
)

type stubDetector struct {
	closed atomic.Bool
	err    error
}

func (s *stubDetector) Detect(ctx context.Context, image []byte, minConfidence float64) (*model.DetectionSet, error) {
	return &model.DetectionSet{}, nil
}
func (s *stubDetector) Catalog() *model.ClassCatalog { return COCO80() }
func (s *stubDetector) Info() Info                   { return Info{Backend: "stub", ModelName: "stub-1"} }
func (s *stubDetector) Close() error {
	s.closed.Store(true)
	return s.err
}

func TestCOCOCatalogs(t *testing.T) {
	yolo := COCO80()
	assert.Equal(t, 80, yolo.Len())
	name, _ := yolo.Name(0)
	assert.Equal(t, "person", name)
	name, _ = yolo.Name(79)
	assert.Equal(t, "toothbrush", name)

	ssd := COCO91()
	assert.Equal(t, 80, ssd.Len())
	for id, want := range map[int]string{1: "person", 3: "car", 8: "truck", 16: "bird", 17: "cat", 18: "dog", 90: "toothbrush"} {
		got, ok := ssd.Name(id)
		assert.True(t, ok, id)
		assert.Equal(t, want, got, id)
	}
	_, ok := ssd.Name(12)
	assert.False(t, ok)
	assert.Equal(t, yolo.Names(), ssd.Names())
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("# pascal voc subset\naeroplane\n\nbicycle\nbird\n"), 0644))

	c, err := LoadLabels(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"aeroplane", "bicycle", "bird"}, c.Names())
	id, _ := c.ID("bird")
	assert.Equal(t, 2, id)

	c, err = DefaultCatalog("ssd", path)
	require.NoError(t, err)
	id, _ = c.ID("aeroplane")
	assert.Equal(t, 1, id)

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.txt"), 0)
	assert.Error(t, err)
}

func TestDefaultCatalog_BuiltIn(t *testing.T) {
	c, err := DefaultCatalog("yolo", "")
	require.NoError(t, err)
	id, _ := c.ID("dog")
	assert.Equal(t, 16, id)

	c, err = DefaultCatalog("ssd", "")
	require.NoError(t, err)
	id, _ = c.ID("dog")
	assert.Equal(t, 18, id)
}

func TestPool_AcquireRelease(t *testing.T) {
	a, b := &stubDetector{}, &stubDetector{}
	p, err := NewPool([]Detector{a, b})
	require.NoError(t, err)

	assert.Equal(t, 2, p.Size())
	assert.Equal(t, "stub-1", p.Info().ModelName)
	assert.Equal(t, 80, p.Catalog().Len())

	ctx := context.Background()
	d1, err := p.Acquire(ctx)
	require.NoError(t, err)
	d2, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, d1, d2)
	assert.Zero(t, p.Available())

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(d1)
	d3, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, d1, d3)
}

func TestPool_Close(t *testing.T) {
	a, b := &stubDetector{}, &stubDetector{err: errors.New("boom")}
	p, err := NewPool([]Detector{a, b})
	require.NoError(t, err)

	assert.ErrorContains(t, p.Close(), "boom")
	assert.True(t, a.closed.Load())
	assert.True(t, b.closed.Load())
	assert.NoError(t, p.Close())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestNewPool_Empty(t *testing.T) {
	_, err := NewPool(nil)
	assert.ErrorIs(t, err, model.ErrUninitialized)
}
