package ghrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tanq16/dlq/internal/transport"
)

var assetSelectMap = map[string][]string{
	"linuxamd64":   {"linux-amd64", "linux_amd64", "linux-x86_64", "linux-x86-64", "linux_x86_64", "linux_x86-64", "amd64-linux", "x86_64-linux", "x86-64-linux", "amd64_linux", "x86_64_linux", "x86-64_linux"},
	"linuxarm64":   {"linux-arm64", "linux_arm64", "linux-aarch64", "linux_aarch64", "arm64-linux", "aarch64-linux", "arm64_linux", "aarch64_linux"},
	"windowsamd64": {"windows-amd64", "windows_amd64", "windows-x86_64", "windows-x86-64", "windows_x86_64", "windows_x86-64", "amd64-windows", "x86_64-windows", "x86-64-windows", "amd64_windows", "x86_64_windows", "x86-64_windows"},
	"windowsarm64": {"windows-arm64", "windows_arm64", "windows-aarch64", "windows_aarch64", "arm64-windows", "aarch64-windows", "arm64_windows", "aarch64_windows"},
	"darwinamd64":  {"darwin-amd64", "darwin_amd64", "darwin-x86_64", "darwin-x86-64", "darwin_x86_64", "darwin_x86-64", "amd64-darwin", "x86_64-darwin", "x86-64-darwin", "amd64_darwin", "x86_64_darwin", "x86-64_darwin"},
	"darwinarm64":  {"darwin-arm64", "darwin_arm64", "darwin-aarch64", "darwin_aarch64", "arm64-darwin", "aarch64-darwin", "arm64_darwin", "aarch64_darwin"},
}

// Used when no asset carries an exact platform tag; an asset needs two hits.
var assetSelectMapFallback = map[string][]string{
	"linuxamd64":   {"linux", "gnu", "x86-64", "x86_64", "amd64"},
	"linuxarm64":   {"linux", "gnu", "arm64", "aarch64"},
	"windowsamd64": {"windows", "exe", "x86-64", "x86_64", "amd64"},
	"windowsarm64": {"windows", "exe", "arm64", "aarch64"},
	"darwinamd64":  {"darwin", "apple", "macos", "x86-64", "x86_64", "amd64"},
	"darwinarm64":  {"darwin", "apple", "macos", "arm64", "aarch64"},
}

var ignoredAssets = []string{
	"license", "readme", "changelog", "checksums", "sha256checksum", ".sha256", ".sig", ".sbom",
}

type release struct {
	TagName string  `json:"tag_name"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
}

func (t *Transport) latestRelease(ctx context.Context, owner, repo, userAgent string) (*release, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", t.apiBase, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, &transport.Error{Op: "ghrelease/api", Kind: transport.KindRequest, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := t.client.Do(req, userAgent)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transport.Classify("ghrelease/api", transport.KindOther, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, transport.StatusError("ghrelease/api", resp.StatusCode)
	}
	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, transport.Classify("ghrelease/api", transport.KindBody, err)
	}
	return &rel, nil
}

func isIgnored(name string) bool {
	for _, ignored := range ignoredAssets {
		if strings.Contains(name, ignored) {
			return true
		}
	}
	return false
}

// selectAsset returns the asset named want, or the best match for platform
// (GOOS followed by GOARCH) when want is empty.
func selectAsset(assets []asset, want, platform string) (asset, bool) {
	if want != "" {
		for _, a := range assets {
			if a.Name == want {
				return a, true
			}
		}
		return asset{}, false
	}
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if isIgnored(name) {
			continue
		}
		for _, key := range assetSelectMap[platform] {
			if strings.Contains(name, key) {
				return a, true
			}
		}
	}
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if isIgnored(name) {
			continue
		}
		hits := 0
		for _, key := range assetSelectMapFallback[platform] {
			if strings.Contains(name, key) {
				hits++
			}
		}
		if hits >= 2 {
			return a, true
		}
	}
	return asset{}, false
}
