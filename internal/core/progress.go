package core

import (
	"math"
	"sync"
	"sync/atomic"
)

// Progress is a cancellable progress signal between one writer (the
// reconciler) and one reader (the caller). It retains only the latest
// reported fraction; Report never blocks, and values the reader has not
// consumed yet are replaced.
//
// Cancel may be called from any goroutine. The writer observes it between
// rows via IsCancelled. Reports after Close are dropped.
type Progress struct {
	updates    chan float64
	done       chan struct{}
	cancelled  atomic.Bool
	cancelOnce sync.Once
	last       atomic.Uint64 // bits of the latest value

	mu     sync.Mutex // guards sends on updates against Close
	closed bool
}

// NewProgress creates a Progress with an empty single-slot buffer.
func NewProgress() *Progress {
	return &Progress{
		updates: make(chan float64, 1),
		done:    make(chan struct{}),
	}
}

// Report publishes fraction, clamped to [0, 1], replacing any value the
// reader has not consumed. It is a no-op once Close has been called.
func (p *Progress) Report(fraction float64) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.last.Store(math.Float64bits(fraction))

	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- fraction:
	default:
	}
}

// Latest returns the most recently reported fraction.
func (p *Progress) Latest() float64 {
	return math.Float64frombits(p.last.Load())
}

// Updates returns the channel the reader consumes. It is closed by Close.
func (p *Progress) Updates() <-chan float64 {
	return p.updates
}

// Close signals that no further values will be reported. Called by the writer.
func (p *Progress) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.updates)
	}
}

// Cancel requests that the run stop at the next row boundary.
func (p *Progress) Cancel() {
	p.cancelOnce.Do(func() {
		p.cancelled.Store(true)
		close(p.done)
	})
}

// IsCancelled reports whether Cancel has been called.
func (p *Progress) IsCancelled() bool {
	return p.cancelled.Load()
}

// Done returns a channel closed by Cancel.
func (p *Progress) Done() <-chan struct{} {
	return p.done
}
