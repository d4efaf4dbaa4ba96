package cmd

import (
	"maps"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanq16/dlq/internal/scheduler"
	"github.com/tanq16/dlq/internal/utils"
)

type settings struct {
	scheduler scheduler.Config
	http      utils.HTTPClientConfig
	s3Profile string
}

// resolveSettings layers explicitly set flags over the config file over the
// flag defaults.
func resolveSettings(cmd *cobra.Command) settings {
	changed := cmd.Flags().Changed
	f := fileConfig
	cfg := f.SchedulerConfig()
	hc := f.HTTPClientConfig()

	if changed("workers") || f.Workers == 0 {
		cfg.MaxConcurrent = workers
	}
	if changed("queue-size") || f.QueueSize == 0 {
		cfg.QueueSize = queueSize
	}
	if changed("retries") || f.Retries == nil {
		cfg.Request.MaxRetries = retries
	}
	if changed("progress-interval") || f.ProgressInterval == 0 {
		cfg.Request.ProgressInterval = progressInterval
	}
	hc.Timeout = pickDuration(changed("timeout"), hc.Timeout, timeout)
	hc.KATimeout = pickDuration(changed("keep-alive-timeout"), hc.KATimeout, kaTimeout)
	hc.ProxyURL = pickString(changed("proxy"), hc.ProxyURL, proxyURL)
	hc.ProxyUsername = pickString(changed("proxy-username"), hc.ProxyUsername, proxyUsername)
	hc.ProxyPassword = pickString(changed("proxy-password"), hc.ProxyPassword, proxyPassword)
	hc.ProxyURL, hc.ProxyUsername, hc.ProxyPassword = utils.SplitProxyAuth(hc.ProxyURL, hc.ProxyUsername, hc.ProxyPassword)
	hc.BearerToken = pickString(changed("bearer-token"), hc.BearerToken, bearerToken)

	merged := make(map[string]string)
	maps.Copy(merged, f.Headers)
	maps.Copy(merged, utils.ParseHeaderArgs(headers))
	hc.Headers = merged

	ua := pickString(changed("user-agent"), f.UserAgent, userAgent)
	if ua == "randomize" {
		ua = utils.GetRandomUserAgent()
	}
	hc.UserAgent = ua
	cfg.Request.UserAgent = ua
	hc.HighThreadMode = cfg.MaxConcurrent > 5

	return settings{
		scheduler: cfg,
		http:      hc,
		s3Profile: pickString(changed("s3-profile"), f.S3Profile, s3Profile),
	}
}

func pickString(flagSet bool, fromFile, fromFlag string) string {
	if flagSet || fromFile == "" {
		return fromFlag
	}
	return fromFile
}

func pickDuration(flagSet bool, fromFile, fromFlag time.Duration) time.Duration {
	if flagSet || fromFile == 0 {
		return fromFlag
	}
	return fromFile
}
