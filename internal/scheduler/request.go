package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type result struct {
	file *os.File
	err  error
}

// Request is the worker-side half of a submitted download.
type Request struct {
	id          uuid.UUID
	url         *url.URL
	destination string
	config      RequestConfig

	ctx    context.Context
	cancel context.CancelFunc

	status   *statusCell
	result   chan result
	finished atomic.Bool
}

func (r *Request) setStatus(s Status) {
	r.status.publish(s)
}

// progressGate throttles InProgress snapshots within one attempt.
type progressGate struct {
	interval  time.Duration
	sometimes rate.Sometimes
}

func (r *Request) newProgressGate() *progressGate {
	return &progressGate{
		interval:  r.config.ProgressInterval,
		sometimes: rate.Sometimes{Interval: r.config.ProgressInterval},
	}
}

func (g *progressGate) do(f func()) {
	// A zero rate.Sometimes behaves like sync.Once.
	if g.interval <= 0 {
		f()
		return
	}
	g.sometimes.Do(f)
}

// finish publishes the terminal status and delivers the result. Only the
// first call has any effect.
func (r *Request) finish(file *os.File, err error) {
	if !r.finished.CompareAndSwap(false, true) {
		if file != nil {
			file.Close()
		}
		return
	}
	state := StateCompleted
	switch {
	case err == nil:
	case isCancellation(err):
		state = StateCancelled
		err = ErrCancelled
	default:
		state = StateFailed
	}
	r.status.publish(Status{State: state})
	r.result <- result{file: file, err: err}
	r.cancel()
}

// Builder configures a download before it is submitted with Start.
type Builder struct {
	manager     *Manager
	url         *url.URL
	destination string
	config      RequestConfig
}

// Download validates rawURL and returns a Builder seeded with the manager's
// default request configuration.
func (m *Manager) Download(rawURL, destination string) (*Builder, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &Builder{
		manager:     m,
		url:         u,
		destination: destination,
		config:      m.config.Request,
	}, nil
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return u, nil
}

func (b *Builder) WithRetries(n int) *Builder {
	b.config.MaxRetries = max(n, 0)
	return b
}

func (b *Builder) WithUserAgent(ua string) *Builder {
	b.config.UserAgent = ua
	return b
}

func (b *Builder) WithProgressInterval(d time.Duration) *Builder {
	b.config.ProgressInterval = d
	return b
}

// WithConfig replaces the whole request configuration.
func (b *Builder) WithConfig(cfg RequestConfig) *Builder {
	b.config = cfg
	b.config.MaxRetries = max(cfg.MaxRetries, 0)
	return b
}

func (b *Builder) URL() *url.URL         { return b.url }
func (b *Builder) Destination() string   { return b.destination }
func (b *Builder) Config() RequestConfig { return b.config }

// Start admits the request into the manager's queue. It never blocks: a full
// queue yields ErrQueueFull.
func (b *Builder) Start() (*Handle, error) {
	m := b.manager
	if m.IsCancelled() {
		return nil, ErrManagerShutdown
	}
	if _, err := os.Lstat(b.destination); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, b.destination)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scheduler: cannot check destination %s: %w", b.destination, err)
	}

	ctx, cancel := context.WithCancel(m.root)
	req := &Request{
		id:          uuid.New(),
		url:         b.url,
		destination: b.destination,
		config:      b.config,
		ctx:         ctx,
		cancel:      cancel,
		status:      newStatusCell(),
		result:      make(chan result, 1),
	}
	h := newHandle(req, m.config.CancelOnRelease)
	if err := m.enqueue(req); err != nil {
		cancel()
		return nil, err
	}
	log.Debug().Str("op", "scheduler/start").Str("id", req.id.String()).Str("url", b.url.Redacted()).Str("path", b.destination).Msg("request queued")
	return h, nil
}
