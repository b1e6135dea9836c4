package detector

import (
	"context"
	"errors"
	"sync"
)

// ErrNotReady is returned by Gate.Detector before loading has finished.
var ErrNotReady = errors.New("detector is not ready")

// Loader produces a ready Detector. It is called at most once per Gate.
type Loader func(ctx context.Context) (Detector, error)

// Gate defers detector construction until first use and lets callers wait
// for readiness. A failed load is sticky: the gate never retries.
type Gate struct {
	load Loader

	once  sync.Once
	done  chan struct{}
	mu    sync.Mutex
	det   Detector
	err   error
	closed bool
}

// NewGate returns a Gate that will call load on the first WhenReady.
func NewGate(load Loader) *Gate {
	return &Gate{
		load: load,
		done: make(chan struct{}),
	}
}

// Ready returns an already-loaded detector gate.
func Ready(d Detector) *Gate {
	return NewGate(func(context.Context) (Detector, error) { return d, nil })
}

// Ready reports whether the detector finished loading successfully.
func (g *Gate) Ready() bool {
	select {
	case <-g.done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.err == nil && g.det != nil
	default:
		return false
	}
}

// WhenReady starts loading if needed and blocks until the detector is
// available, loading failed, or ctx is done.
func (g *Gate) WhenReady(ctx context.Context) (Detector, error) {
	g.once.Do(func() {
		go g.run()
	})

	select {
	case <-g.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.det, g.err
}

// Detector returns the loaded detector without blocking.
func (g *Gate) Detector() (Detector, error) {
	if !g.Ready() {
		return nil, ErrNotReady
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.det, nil
}

func (g *Gate) run() {
	defer close(g.done)

	var (
		d   Detector
		err error
	)
	if g.load == nil {
		err = errors.New("no detector loader configured")
	} else {
		d, err = g.load(context.Background())
		if err == nil && d == nil {
			err = errors.New("detector loader returned nil")
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed && d != nil {
		d.Close()
		d = nil
		err = ErrNotReady
	}
	g.det = d
	g.err = err
}

// Close releases the loaded detector, if any.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.det == nil {
		return nil
	}
	err := g.det.Close()
	g.det = nil
	g.err = ErrNotReady
	return err
}
