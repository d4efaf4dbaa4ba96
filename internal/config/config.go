package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/tanq16/dlq/internal/scheduler"
	"github.com/tanq16/dlq/internal/utils"
)

// Duration reads Go duration strings such as "250ms" or "3m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// File mirrors the command line flags. Keys use the flag names.
type File struct {
	Workers          int               `yaml:"workers"`
	QueueSize        int               `yaml:"queue-size"`
	Retries          *int              `yaml:"retries"`
	UserAgent        string            `yaml:"user-agent"`
	ProgressInterval Duration          `yaml:"progress-interval"`
	Backoff          Duration          `yaml:"backoff"`
	CancelOnRelease  bool              `yaml:"cancel-on-release"`
	Timeout          Duration          `yaml:"timeout"`
	KeepAliveTimeout Duration          `yaml:"keep-alive-timeout"`
	Proxy            string            `yaml:"proxy"`
	ProxyUsername    string            `yaml:"proxy-username"`
	ProxyPassword    string            `yaml:"proxy-password"`
	Headers          map[string]string `yaml:"headers"`
	BearerToken      string            `yaml:"bearer-token"`
	S3Profile        string            `yaml:"s3-profile"`
	LogFile          string            `yaml:"log-file"`
	Debug            bool              `yaml:"debug"`
}

// Load reads a YAML config file. Unknown keys are rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if f.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", f.Workers)
	}
	if f.Retries != nil && *f.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative, got %d", *f.Retries)
	}
	return &f, nil
}

// SchedulerConfig applies the file on top of the scheduler defaults.
func (f *File) SchedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	if f.Workers > 0 {
		cfg.MaxConcurrent = f.Workers
	}
	if f.QueueSize > 0 {
		cfg.QueueSize = f.QueueSize
	}
	if f.Backoff > 0 {
		cfg.BackoffBase = time.Duration(f.Backoff)
	}
	cfg.CancelOnRelease = f.CancelOnRelease
	if f.Retries != nil {
		cfg.Request.MaxRetries = *f.Retries
	}
	cfg.Request.UserAgent = f.UserAgent
	if f.ProgressInterval != 0 {
		cfg.Request.ProgressInterval = time.Duration(f.ProgressInterval)
	}
	return cfg
}

// HTTPClientConfig returns the client settings named in the file.
func (f *File) HTTPClientConfig() utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:       time.Duration(f.Timeout),
		KATimeout:     time.Duration(f.KeepAliveTimeout),
		ProxyURL:      f.Proxy,
		ProxyUsername: f.ProxyUsername,
		ProxyPassword: f.ProxyPassword,
		UserAgent:     f.UserAgent,
		BearerToken:   f.BearerToken,
		Headers:       f.Headers,
	}
}
