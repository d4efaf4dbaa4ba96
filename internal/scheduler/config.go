package scheduler

import "time"

const (
	DefaultMaxConcurrent    = 3
	DefaultQueueSize        = 100
	DefaultMaxRetries       = 3
	DefaultProgressInterval = 250 * time.Millisecond
	DefaultBackoffBase      = time.Second

	// maxBackoff caps the doubled delay. A larger BackoffBase is used as is.
	maxBackoff = 10 * time.Minute

	// speedWindow is the minimum span between two speed samples.
	speedWindow = time.Second
)

// Config configures a Manager. Zero fields take their defaults.
type Config struct {
	// MaxConcurrent bounds running transfers; adjustable later through
	// SetMaxParallelDownloads.
	MaxConcurrent int
	// QueueSize is the number of accepted but undispatched requests.
	QueueSize int
	// Request holds the defaults applied to every new Builder.
	Request RequestConfig
	// BackoffBase is the delay before the first retry; it doubles per retry.
	BackoffBase time.Duration
	// CancelOnRelease cancels a request once its Handle is garbage collected.
	CancelOnRelease bool
}

// RequestConfig is the per-request configuration.
type RequestConfig struct {
	MaxRetries int
	// UserAgent overrides the transport's user agent when set.
	UserAgent string
	// ProgressInterval is the minimum gap between two published progress
	// snapshots. Negative publishes every chunk.
	ProgressInterval time.Duration
}

func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		MaxRetries:       DefaultMaxRetries,
		ProgressInterval: DefaultProgressInterval,
	}
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultMaxConcurrent,
		QueueSize:     DefaultQueueSize,
		Request:       DefaultRequestConfig(),
		BackoffBase:   DefaultBackoffBase,
	}
}

func (c Config) withDefaults() Config {
	if c.Request == (RequestConfig{}) {
		c.Request = DefaultRequestConfig()
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.Request.MaxRetries < 0 {
		c.Request.MaxRetries = 0
	}
	if c.Request.ProgressInterval == 0 {
		c.Request.ProgressInterval = DefaultProgressInterval
	}
	return c
}

// backoff returns the delay before attempt n (n >= 1): BackoffBase doubled
// per earlier retry, capped at maxBackoff.
func (c Config) backoff(attempt int) time.Duration {
	ceiling := max(maxBackoff, c.BackoffBase)
	d := c.BackoffBase
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}
