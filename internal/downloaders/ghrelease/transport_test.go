package ghrelease

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dlqhttp "github.com/tanq16/dlq/internal/downloaders/http"
	"github.com/tanq16/dlq/internal/transport"
	"github.com/tanq16/dlq/internal/utils"
)

func newReleaseServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/tanq16/dlq/releases/latest":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"tag_name":"v1.2.0","assets":[
				{"name":"checksums.txt","size":10,"browser_download_url":"%[1]s/dl/checksums.txt"},
				{"name":"dlq-linux-amd64","size":6,"browser_download_url":"%[1]s/dl/linux"},
				{"name":"dlq-darwin-arm64","size":6,"browser_download_url":"%[1]s/dl/darwin"}
			]}`, srv.URL)
		case "/dl/linux":
			io.WriteString(w, "linux!")
		case "/dl/darwin":
			io.WriteString(w, "darwin")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestTransport(srv *httptest.Server, platform string) *Transport {
	client := utils.NewHTTPClient(utils.HTTPClientConfig{})
	tr := NewTransport(client, dlqhttp.NewTransport(client))
	tr.apiBase = srv.URL
	tr.platform = platform
	return tr
}

func fetch(t *testing.T, tr *Transport, raw string) (string, error) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	resp, err := tr.Get(context.Background(), u, transport.RequestOptions{})
	if err != nil {
		return "", err
	}
	defer resp.Close()
	var body []byte
	for {
		chunk, err := resp.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body = append(body, chunk...)
	}
	return string(body), nil
}

func TestGetSelectsPlatformAsset(t *testing.T) {
	srv := newReleaseServer(t)
	body, err := fetch(t, newTestTransport(srv, "linuxamd64"), "ghr://tanq16/dlq")
	require.NoError(t, err)
	assert.Equal(t, "linux!", body)

	body, err = fetch(t, newTestTransport(srv, "darwinarm64"), "ghr://tanq16/dlq")
	require.NoError(t, err)
	assert.Equal(t, "darwin", body)
}

func TestGetNamedAsset(t *testing.T) {
	srv := newReleaseServer(t)
	body, err := fetch(t, newTestTransport(srv, "windowsamd64"), "ghr://tanq16/dlq/dlq-darwin-arm64")
	require.NoError(t, err)
	assert.Equal(t, "darwin", body)
}

func TestGetErrors(t *testing.T) {
	srv := newReleaseServer(t)
	tests := []struct {
		name     string
		url      string
		platform string
		kind     transport.Kind
	}{
		{"no platform asset", "ghr://tanq16/dlq", "windowsarm64", transport.KindUnsupported},
		{"unknown asset", "ghr://tanq16/dlq/nope", "linuxamd64", transport.KindUnsupported},
		{"missing repo", "ghr://tanq16", "linuxamd64", transport.KindUnsupported},
		{"unknown repo", "ghr://tanq16/other", "linuxamd64", transport.KindStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fetch(t, newTestTransport(srv, tt.platform), tt.url)
			var te *transport.Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.kind, te.Kind)
		})
	}
}

func TestSelectAssetFallback(t *testing.T) {
	assets := []asset{
		{Name: "tool.sha256"},
		{Name: "tool-macos-arm64.zip"},
		{Name: "tool-x86_64-unknown-linux-gnu.tar.gz"},
	}
	a, ok := selectAsset(assets, "", "linuxamd64")
	require.True(t, ok)
	assert.Equal(t, "tool-x86_64-unknown-linux-gnu.tar.gz", a.Name)

	a, ok = selectAsset(assets, "", "darwinarm64")
	require.True(t, ok)
	assert.Equal(t, "tool-macos-arm64.zip", a.Name)
}
