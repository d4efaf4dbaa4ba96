package dlqhttp

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/dlq/internal/transport"
	"github.com/tanq16/dlq/internal/utils"
)

const bufferSize = 64 * 1024

// Transport streams HTTP(S) bodies through the shared tuned client.
type Transport struct {
	client *utils.HTTPClient
}

func NewTransport(client *utils.HTTPClient) *Transport {
	return &Transport{client: client}
}

func (t *Transport) Get(ctx context.Context, u *url.URL, opts transport.RequestOptions) (transport.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &transport.Error{Op: "http/get", Kind: transport.KindRequest, Err: err}
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := t.client.Do(req, opts.UserAgent)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, transport.Classify("http/get", transport.KindOther, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		log.Debug().Str("op", "http/transport").Str("url", u.Redacted()).Int("status", resp.StatusCode).Msg("non-success response")
		return nil, transport.StatusError("http/get", resp.StatusCode)
	}
	log.Debug().Str("op", "http/transport").Str("url", u.Redacted()).Int64("contentLength", resp.ContentLength).Msg("response received")
	return transport.NewReaderResponse("http/body", resp.Body, resp.ContentLength, bufferSize), nil
}
