package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, KindConnect},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindConnect},
		{"refused", fmt.Errorf("read: %w", syscall.ECONNREFUSED), KindConnect},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), KindBody},
		{"short body", io.ErrUnexpectedEOF, KindBody},
		{"other", errors.New("weird"), KindRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var te *Error
			require.ErrorAs(t, Classify("op", KindRequest, tt.err), &te)
			assert.Equal(t, tt.want, te.Kind)
			assert.Equal(t, "op", te.Op)
		})
	}
}

func TestClassifyPassesThrough(t *testing.T) {
	assert.Nil(t, Classify("op", KindOther, nil))
	assert.Equal(t, context.Canceled, Classify("op", KindOther, context.Canceled))
	orig := StatusError("inner", 503)
	assert.Same(t, orig, Classify("outer", KindOther, orig))
}

func TestStatusError(t *testing.T) {
	e := StatusError("http/get", 502)
	assert.True(t, e.IsServerError())
	assert.False(t, e.IsClientError())
	assert.Equal(t, "http/get: server returned status 502", e.Error())
	assert.True(t, StatusError("x", 404).IsClientError())
}

type fixedTransport string

func (f fixedTransport) Get(context.Context, *url.URL, RequestOptions) (Response, error) {
	return NewReaderResponse(string(f), io.NopCloser(strings.NewReader(string(f))), int64(len(f)), 0), nil
}

func TestRouter(t *testing.T) {
	r := NewRouter().Handle(fixedTransport("web"), "http", "https").Handle(fixedTransport("bucket"), "s3")
	assert.True(t, r.Supports("https"))
	assert.False(t, r.Supports("ftp"))

	u, _ := url.Parse("s3://b/k")
	resp, err := r.Get(context.Background(), u, RequestOptions{})
	require.NoError(t, err)
	chunk, err := resp.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bucket", string(chunk))

	u, _ = url.Parse("ftp://host/file")
	_, err = r.Get(context.Background(), u, RequestOptions{})
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindUnsupported, te.Kind)
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) > 0 {
		n := copy(p, f.data)
		f.data = f.data[n:]
		return n, nil
	}
	return 0, f.err
}

func TestReaderResponse(t *testing.T) {
	r := NewReaderResponse("test", io.NopCloser(strings.NewReader("abcdefgh")), 8, 3)
	assert.EqualValues(t, 8, r.ContentLength())
	var got []string
	for {
		chunk, err := r.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(chunk))
	}
	assert.Equal(t, []string{"abc", "def", "gh"}, got)
	require.NoError(t, r.Close())

	r = NewReaderResponse("test", io.NopCloser(&failingReader{data: []byte("xy"), err: syscall.ECONNRESET}), -1, 0)
	chunk, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xy", string(chunk))
	_, err = r.Next(context.Background())
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindBody, te.Kind)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewReaderResponse("test", io.NopCloser(strings.NewReader("x")), 1, 0).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
