package scheduler

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tanq16/dlq/internal/transport"
)

// stubTransport hands every Get to handler together with a 1-based call count.
type stubTransport struct {
	calls   atomic.Int32
	handler func(ctx context.Context, call int, u *url.URL, opts transport.RequestOptions) (transport.Response, error)
}

func (s *stubTransport) Get(ctx context.Context, u *url.URL, opts transport.RequestOptions) (transport.Response, error) {
	return s.handler(ctx, int(s.calls.Add(1)), u, opts)
}

// scriptedResponse yields chunks, then err (or io.EOF). When hold is set,
// every Next after the first chunk waits on it or the context.
type scriptedResponse struct {
	chunks [][]byte
	length int64
	err    error
	hold   <-chan struct{}
	closed func()

	i int
}

func (r *scriptedResponse) ContentLength() int64 { return r.length }

func (r *scriptedResponse) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.hold != nil && r.i > 0 {
		select {
		case <-r.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.i < len(r.chunks) {
		c := r.chunks[r.i]
		r.i++
		return c, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return nil, io.EOF
}

func (r *scriptedResponse) Close() error {
	if r.closed != nil {
		r.closed()
	}
	return nil
}

func chunksOf(parts ...string) ([][]byte, int64) {
	var out [][]byte
	var n int64
	for _, p := range parts {
		out = append(out, []byte(p))
		n += int64(len(p))
	}
	return out, n
}

func serve(parts ...string) func(context.Context, int, *url.URL, transport.RequestOptions) (transport.Response, error) {
	return func(context.Context, int, *url.URL, transport.RequestOptions) (transport.Response, error) {
		chunks, n := chunksOf(parts...)
		return &scriptedResponse{chunks: chunks, length: n}, nil
	}
}

// blockingResponse sends one chunk then waits for release or cancellation.
func blockingResponse(release <-chan struct{}, closed func()) *scriptedResponse {
	chunks, n := chunksOf("first", "second")
	return &scriptedResponse{chunks: chunks, length: n, hold: release, closed: closed}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.Request.ProgressInterval = -1
	return cfg
}

func newTestManager(t *testing.T, cfg Config, st *stubTransport) *Manager {
	t.Helper()
	m := NewManager(cfg, st)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, m.Shutdown(ctx))
	})
	return m
}

func start(t *testing.T, m *Manager, rawURL, dest string) *Handle {
	t.Helper()
	b, err := m.Download(rawURL, dest)
	require.NoError(t, err)
	h, err := b.Start()
	require.NoError(t, err)
	return h
}

func wait(t *testing.T, h *Handle) ([]byte, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f, err := h.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "download did not finish")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, rerr := io.ReadAll(f)
	require.NoError(t, rerr)
	return data, nil
}

func dest(t *testing.T, name string) string {
	return filepath.Join(t.TempDir(), name)
}

// gauge tracks concurrently open responses.
type gauge struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (g *gauge) inc() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	g.peak = max(g.peak, g.current)
}

func (g *gauge) dec() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current--
}

func (g *gauge) highWater() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
