package scheduler

import (
	"context"
	"net/url"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Handle is the caller-side view of a submitted download. It is safe for
// concurrent use.
type Handle struct {
	id          uuid.UUID
	url         *url.URL
	destination string

	status *statusCell
	seen   atomic.Uint64
	cancel context.CancelFunc

	result   <-chan result
	once     sync.Once
	resolved chan struct{}
	outcome  result
}

func newHandle(req *Request, cancelOnRelease bool) *Handle {
	h := &Handle{
		id:          req.id,
		url:         req.url,
		destination: req.destination,
		status:      req.status,
		cancel:      req.cancel,
		result:      req.result,
		resolved:    make(chan struct{}),
	}
	if cancelOnRelease {
		runtime.AddCleanup(h, func(cancel context.CancelFunc) { cancel() }, req.cancel)
	}
	return h
}

func (h *Handle) ID() uuid.UUID       { return h.id }
func (h *Handle) URL() *url.URL       { return h.url }
func (h *Handle) Destination() string { return h.destination }

// Status returns the latest published status without blocking.
func (h *Handle) Status() Status {
	s, _, _ := h.status.snapshot()
	return s
}

// WaitForStatusUpdate blocks until a status newer than the last one returned
// is available. Intermediate values may be skipped. After the terminal status
// has been returned once, it returns ErrNoMoreUpdates.
func (h *Handle) WaitForStatusUpdate(ctx context.Context) (Status, error) {
	for {
		s, version, changed := h.status.snapshot()
		seen := h.seen.Load()
		if version > seen {
			if h.seen.CompareAndSwap(seen, version) {
				return s, nil
			}
			continue
		}
		if s.IsTerminal() {
			return s, ErrNoMoreUpdates
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

// Wait blocks until the request finishes. On success the returned file is
// open read-only at offset 0 and owned by the caller. Repeated calls return
// the same outcome.
func (h *Handle) Wait(ctx context.Context) (*os.File, error) {
	select {
	case <-h.resolved:
		return h.outcome.file, h.outcome.err
	default:
	}
	select {
	case r := <-h.result:
		h.once.Do(func() {
			h.outcome = r
			close(h.resolved)
		})
	case <-h.resolved:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return h.outcome.file, h.outcome.err
}

// Cancel requests cancellation. It has no effect once the request finished.
func (h *Handle) Cancel() {
	h.cancel()
}
