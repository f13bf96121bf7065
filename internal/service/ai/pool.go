package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"objectvision/internal/model"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("detector pool closed")

// Pool lends each detector to one caller at a time. All detectors in a pool
// must serve the same model; the first one's catalog and info are reported.
type Pool struct {
	detectors []Detector
	idle      chan Detector
	closed    chan struct{}
	closeOnce sync.Once
}

// NewPool takes ownership of detectors.
func NewPool(detectors []Detector) (*Pool, error) {
	if len(detectors) == 0 {
		return nil, fmt.Errorf("%w: no detectors available", model.ErrUninitialized)
	}

	p := &Pool{
		detectors: detectors,
		idle:      make(chan Detector, len(detectors)),
		closed:    make(chan struct{}),
	}
	for _, d := range detectors {
		p.idle <- d
	}
	return p, nil
}

// Acquire blocks until a detector is free, ctx is done or the pool closes.
func (p *Pool) Acquire(ctx context.Context) (Detector, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case d := <-p.idle:
		return d, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for a free detector: %w", ctx.Err())
	}
}

// Release returns a detector obtained from Acquire.
func (p *Pool) Release(d Detector) {
	select {
	case p.idle <- d:
	default:
		// not one of ours; a full channel means every pool detector is idle
	}
}

// Size returns the number of detectors in the pool.
func (p *Pool) Size() int {
	return len(p.detectors)
}

// Available returns the number of idle detectors.
func (p *Pool) Available() int {
	return len(p.idle)
}

// Catalog returns the class catalog of the pooled model.
func (p *Pool) Catalog() *model.ClassCatalog {
	return p.detectors[0].Catalog()
}

// Info returns the description of the pooled model.
func (p *Pool) Info() Info {
	return p.detectors[0].Info()
}

// Close releases every detector. Detectors still lent out are closed as well,
// so callers must not use them after Close.
func (p *Pool) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		close(p.closed)
		for _, d := range p.detectors {
			if err := d.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// Health checks the pooled model's dependencies when the detectors report them.
func (p *Pool) Health(ctx context.Context) error {
	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}
	if hc, ok := p.detectors[0].(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}
