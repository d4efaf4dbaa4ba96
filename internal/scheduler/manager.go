package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tanq16/dlq/internal/transport"
)

// permitCeiling is the semaphore capacity. Permits above the current limit
// are held by the manager itself.
const permitCeiling = 1 << 20

// Manager admits download requests into a bounded queue and runs them with
// bounded, adjustable concurrency.
type Manager struct {
	config    Config
	transport transport.Transport

	// root is the parent of every request context; cancelling it is CancelAll.
	root       context.Context
	cancelRoot context.CancelFunc
	// closing stops the dispatcher from waiting on permits during Shutdown.
	closing      context.Context
	stopDispatch context.CancelFunc

	queueMu sync.RWMutex
	queue   chan *Request
	closed  bool

	sem     *semaphore.Weighted
	limitMu sync.Mutex
	limit   atomic.Int64
	retired int64
	// limitGen counts SetMaxParallelDownloads calls; a pending lower stops
	// once a later call bumps it.
	limitGen    uint64
	cancelLower context.CancelFunc

	tasks  errgroup.Group
	queued atomic.Int64
	active atomic.Int64

	shutdownOnce sync.Once
	done         chan struct{}
}

// NewManager starts the dispatcher. Requests reach t through Transport.Get
// with the request's own context.
func NewManager(cfg Config, t transport.Transport) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		config:    cfg,
		transport: t,
		queue:     make(chan *Request, cfg.QueueSize),
		sem:       semaphore.NewWeighted(permitCeiling),
		retired:   permitCeiling - int64(cfg.MaxConcurrent),
		done:      make(chan struct{}),
	}
	m.root, m.cancelRoot = context.WithCancel(context.Background())
	m.closing, m.stopDispatch = context.WithCancel(context.Background())
	m.limit.Store(int64(cfg.MaxConcurrent))
	m.sem.TryAcquire(m.retired)
	m.tasks.Go(func() error {
		m.dispatch()
		return nil
	})
	log.Debug().Str("op", "scheduler/manager").Int("workers", cfg.MaxConcurrent).Int("queue", cfg.QueueSize).Msg("manager started")
	return m
}

func (m *Manager) enqueue(req *Request) error {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()
	if m.closed {
		return ErrManagerShutdown
	}
	m.queued.Add(1)
	select {
	case m.queue <- req:
		return nil
	default:
		m.queued.Add(-1)
		return ErrQueueFull
	}
}

// dispatch moves queued requests onto workers in admission order, one permit
// each. Once shutdown begins, whatever is left in the queue is cancelled
// without being started.
func (m *Manager) dispatch() {
	for req := range m.queue {
		m.queued.Add(-1)
		if err := m.sem.Acquire(m.closing, 1); err != nil {
			req.finish(nil, ErrCancelled)
			m.drain()
			return
		}
		m.active.Add(1)
		m.tasks.Go(func() error {
			defer m.sem.Release(1)
			defer m.active.Add(-1)
			m.work(req)
			return nil
		})
	}
}

func (m *Manager) drain() {
	for req := range m.queue {
		m.queued.Add(-1)
		req.finish(nil, ErrCancelled)
	}
}

// SetMaxParallelDownloads changes the concurrency limit. Raising it takes
// effect at once. Lowering it waits until enough running transfers have
// released their permits, or until ctx is done; running transfers are never
// interrupted. A later call supersedes a pending lower, which then returns
// nil with the limit left to the later call.
func (m *Manager) SetMaxParallelDownloads(ctx context.Context, limit int) error {
	if limit < 1 {
		return fmt.Errorf("scheduler: concurrency limit must be at least 1, got %d", limit)
	}
	if m.IsShutdown() {
		return ErrManagerShutdown
	}
	logger := log.With().Str("op", "scheduler/manager").Int("limit", limit).Logger()

	m.limitMu.Lock()
	m.limitGen++
	gen := m.limitGen
	if m.cancelLower != nil {
		m.cancelLower()
		m.cancelLower = nil
	}
	delta := int64(limit) - m.limit.Load()
	if delta >= 0 {
		m.retired -= delta
		m.limit.Add(delta)
		m.sem.Release(delta)
		m.limitMu.Unlock()
		logger.Debug().Msg("concurrency limit changed")
		return nil
	}
	acquireCtx, cancel := context.WithCancel(ctx)
	m.cancelLower = cancel
	m.limitMu.Unlock()
	defer cancel()
	stop := context.AfterFunc(m.closing, cancel)
	defer stop()

	for {
		m.limitMu.Lock()
		if m.limitGen != gen {
			m.limitMu.Unlock()
			logger.Debug().Msg("lowering superseded")
			return nil
		}
		if m.limit.Load() <= int64(limit) {
			m.cancelLower = nil
			m.limitMu.Unlock()
			break
		}
		m.limitMu.Unlock()

		err := m.sem.Acquire(acquireCtx, 1)

		m.limitMu.Lock()
		superseded := m.limitGen != gen
		switch {
		case superseded && err == nil:
			// The later call already accounted for this permit.
			m.sem.Release(1)
		case !superseded && err == nil:
			m.retired++
			m.limit.Add(-1)
		case !superseded:
			m.cancelLower = nil
		}
		m.limitMu.Unlock()

		if superseded {
			logger.Debug().Msg("lowering superseded")
			return nil
		}
		if err != nil {
			if m.closing.Err() != nil {
				return ErrManagerShutdown
			}
			return err
		}
	}
	logger.Debug().Msg("concurrency limit changed")
	return nil
}

// MaxParallelDownloads reports the current concurrency limit.
func (m *Manager) MaxParallelDownloads() int {
	return int(m.limit.Load())
}

// QueuedCount is the number of admitted requests not yet dispatched.
func (m *Manager) QueuedCount() int { return int(m.queued.Load()) }

// ActiveCount is the number of requests currently holding a permit.
func (m *Manager) ActiveCount() int { return int(m.active.Load()) }

// CancelAll cancels every queued and running request. The manager stops
// admitting new ones.
func (m *Manager) CancelAll() {
	log.Debug().Str("op", "scheduler/manager").Msg("cancelling all downloads")
	m.cancelRoot()
}

// IsCancelled reports whether CancelAll or Shutdown has been called.
func (m *Manager) IsCancelled() bool {
	return m.root.Err() != nil
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	return m.closing.Err() != nil
}

// Shutdown cancels everything, closes the queue and waits for the dispatcher
// and all workers to return or for ctx to be done. It may be called more
// than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		log.Debug().Str("op", "scheduler/manager").Msg("shutting down")
		m.cancelRoot()
		m.stopDispatch()
		m.queueMu.Lock()
		m.closed = true
		close(m.queue)
		m.queueMu.Unlock()
		go func() {
			m.tasks.Wait()
			close(m.done)
		}()
	})
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
