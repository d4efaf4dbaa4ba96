package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/dlq/internal/transport"
)

const bufferSize = 256 * 1024

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Transport serves s3://bucket/key URLs. The AWS client is built on first
// use so that runs without any S3 URL never touch AWS configuration.
type Transport struct {
	profile string
	load    func() (objectGetter, error)
}

func NewTransport(profile string) *Transport {
	t := &Transport{profile: profile}
	t.load = sync.OnceValues(func() (objectGetter, error) {
		return newClient(t.profile)
	})
	return t
}

func newTransportWithClient(client objectGetter) *Transport {
	return &Transport{load: func() (objectGetter, error) { return client, nil }}
}

func newClient(profile string) (objectGetter, error) {
	opts := []func(*config.LoadOptions) error{
		// The scheduler owns retries.
		config.WithRetryMaxAttempts(1),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	log.Debug().Str("op", "s3/transport").Str("profile", profile).Str("region", cfg.Region).Msg("AWS client configured")
	return s3.NewFromConfig(cfg), nil
}

func splitLocation(u *url.URL) (string, string) {
	return u.Host, strings.TrimPrefix(u.Path, "/")
}

func (t *Transport) Get(ctx context.Context, u *url.URL, opts transport.RequestOptions) (transport.Response, error) {
	bucket, key := splitLocation(u)
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return nil, &transport.Error{Op: "s3/get", Kind: transport.KindUnsupported, Err: fmt.Errorf("%q does not name a single object", u.String())}
	}
	client, err := t.load()
	if err != nil {
		return nil, &transport.Error{Op: "s3/get", Kind: transport.KindRequest, Err: err}
	}
	var optFns []func(*s3.Options)
	if opts.UserAgent != "" {
		optFns = append(optFns, func(o *s3.Options) {
			o.APIOptions = append(o.APIOptions, awsmiddleware.AddUserAgentKey(opts.UserAgent))
		})
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, optFns...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classify(err)
	}
	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}
	log.Debug().Str("op", "s3/transport").Str("bucket", bucket).Str("key", key).Int64("contentLength", length).Msg("object opened")
	return transport.NewReaderResponse("s3/body", out.Body, length, bufferSize), nil
}

func classify(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() >= 300 {
		return &transport.Error{Op: "s3/get", Kind: transport.KindStatus, StatusCode: re.HTTPStatusCode(), Err: err}
	}
	return transport.Classify("s3/get", transport.KindOther, err)
}
