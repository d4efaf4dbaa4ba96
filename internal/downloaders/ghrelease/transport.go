// Package ghrelease resolves ghr://OWNER/REPO[/ASSET] links to an asset of
// the repository's latest GitHub release and streams it through another
// transport.
package ghrelease

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/dlq/internal/transport"
	"github.com/tanq16/dlq/internal/utils"
)

const defaultAPIBase = "https://api.github.com"

type Transport struct {
	client   *utils.HTTPClient
	next     transport.Transport
	apiBase  string
	platform string
}

// NewTransport queries the GitHub API with client and fetches the chosen
// asset through next.
func NewTransport(client *utils.HTTPClient, next transport.Transport) *Transport {
	return &Transport{
		client:   client,
		next:     next,
		apiBase:  defaultAPIBase,
		platform: runtime.GOOS + runtime.GOARCH,
	}
}

func parseLocation(u *url.URL) (owner, repo, name string, err error) {
	owner = u.Host
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if owner == "" || len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		return "", "", "", fmt.Errorf("expected ghr://OWNER/REPO[/ASSET], got %s", u.Redacted())
	}
	repo = parts[0]
	if len(parts) == 2 {
		name = parts[1]
	}
	return owner, repo, name, nil
}

func (t *Transport) Get(ctx context.Context, u *url.URL, opts transport.RequestOptions) (transport.Response, error) {
	owner, repo, name, err := parseLocation(u)
	if err != nil {
		return nil, &transport.Error{Op: "ghrelease/get", Kind: transport.KindUnsupported, Err: err}
	}
	rel, err := t.latestRelease(ctx, owner, repo, opts.UserAgent)
	if err != nil {
		return nil, err
	}
	a, ok := selectAsset(rel.Assets, name, t.platform)
	if !ok {
		return nil, &transport.Error{
			Op:   "ghrelease/get",
			Kind: transport.KindUnsupported,
			Err:  fmt.Errorf("no matching asset in %s/%s release %s for %s", owner, repo, rel.TagName, t.platform),
		}
	}
	assetURL, err := url.Parse(a.DownloadURL)
	if err != nil {
		return nil, &transport.Error{Op: "ghrelease/get", Kind: transport.KindRequest, Err: err}
	}
	log.Debug().Str("op", "ghrelease/get").Str("release", rel.TagName).Str("asset", a.Name).Int64("size", a.Size).Msg("resolved release asset")
	return t.next.Get(ctx, assetURL, opts)
}
