package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

// Kind classifies why a transport operation failed.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindConnect
	KindRequest
	KindStatus
	KindBody
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnect:
		return "connect"
	case KindRequest:
		return "request"
	case KindStatus:
		return "status"
	case KindBody:
		return "body"
	case KindUnsupported:
		return "unsupported"
	default:
		return "other"
	}
}

// Error is returned by every Transport for failures it can attribute to the
// remote side or to building the request. StatusCode is set only for KindStatus.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: server returned status %d", e.Op, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsTimeout() bool { return e.Kind == KindTimeout }
func (e *Error) IsConnect() bool { return e.Kind == KindConnect }
func (e *Error) IsRequest() bool { return e.Kind == KindRequest }

// IsServerError reports a 5xx response.
func (e *Error) IsServerError() bool {
	return e.Kind == KindStatus && e.StatusCode >= 500 && e.StatusCode < 600
}

// IsClientError reports a 4xx response.
func (e *Error) IsClientError() bool {
	return e.Kind == KindStatus && e.StatusCode >= 400 && e.StatusCode < 500
}

// StatusError builds the error for a non-2xx response.
func StatusError(op string, code int) *Error {
	return &Error{Op: op, Kind: KindStatus, StatusCode: code}
}

// Classify wraps a raw network error into an *Error. Context cancellation is
// returned untouched so callers can tell it apart from transport failures.
func Classify(op string, fallback Kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	kind := fallback
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &dnsErr):
		kind = KindConnect
	case errors.As(err, &opErr) && opErr.Op == "dial":
		kind = KindConnect
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindConnect
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNRESET):
		kind = KindBody
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// RequestOptions carries the per-request knobs a transport honours.
type RequestOptions struct {
	UserAgent string
}

// Response is a pull-based body stream. ContentLength is -1 when unknown.
// Next returns io.EOF once the body is exhausted; the returned slice is only
// valid until the following call.
type Response interface {
	ContentLength() int64
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Transport issues a GET for a URL. Non-2xx responses must be returned as a
// KindStatus *Error, never as a Response.
type Transport interface {
	Get(ctx context.Context, u *url.URL, opts RequestOptions) (Response, error)
}

// Router dispatches on the URL scheme.
type Router struct {
	schemes map[string]Transport
}

func NewRouter() *Router {
	return &Router{schemes: make(map[string]Transport)}
}

// Handle registers t for each scheme, replacing earlier registrations.
func (r *Router) Handle(t Transport, schemes ...string) *Router {
	for _, s := range schemes {
		r.schemes[s] = t
	}
	return r
}

func (r *Router) Supports(scheme string) bool {
	_, ok := r.schemes[scheme]
	return ok
}

func (r *Router) Get(ctx context.Context, u *url.URL, opts RequestOptions) (Response, error) {
	t, ok := r.schemes[u.Scheme]
	if !ok {
		return nil, &Error{Op: "route", Kind: KindUnsupported, Err: fmt.Errorf("no transport for scheme %q", u.Scheme)}
	}
	return t.Get(ctx, u, opts)
}

// ReaderResponse adapts an io.ReadCloser body into a Response. Read errors are
// classified with KindBody as the fallback.
type ReaderResponse struct {
	Op     string
	Body   io.ReadCloser
	Length int64
	buf    []byte
}

func NewReaderResponse(op string, body io.ReadCloser, length int64, bufSize int) *ReaderResponse {
	if bufSize <= 0 {
		bufSize = 32 * 1024
	}
	return &ReaderResponse{Op: op, Body: body, Length: length, buf: make([]byte, bufSize)}
}

func (r *ReaderResponse) ContentLength() int64 { return r.Length }

func (r *ReaderResponse) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		n, err := r.Body.Read(r.buf)
		if n > 0 {
			// Defer a trailing EOF to the next call.
			return r.buf[:n], nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, Classify(r.Op, KindBody, err)
		}
	}
}

func (r *ReaderResponse) Close() error { return r.Body.Close() }
