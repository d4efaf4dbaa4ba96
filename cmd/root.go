package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanq16/dlq/internal/config"
	"github.com/tanq16/dlq/internal/output"
	"github.com/tanq16/dlq/internal/scheduler"
	"github.com/tanq16/dlq/internal/utils"
)

var (
	workers          int
	queueSize        int
	retries          int
	userAgent        string
	progressInterval time.Duration
	timeout          time.Duration
	kaTimeout        time.Duration
	proxyURL         string
	proxyUsername    string
	proxyPassword    string
	headers          []string
	bearerToken      string
	s3Profile        string
	configFile       string
	logFile          string
	debug            bool
	noDisplay        bool

	fileConfig = &config.File{}
)

var DlqVersion = "dev"

var rootCmd = &cobra.Command{
	Use:               "dlq",
	Short:             "dlq is a queued download manager with retries",
	Version:           DlqVersion,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	utils.ToolUserAgent = "dlq/" + DlqVersion

	flags := rootCmd.PersistentFlags()
	flags.IntVarP(&workers, "workers", "w", scheduler.DefaultMaxConcurrent, "Number of downloads to run in parallel (above 5 enables high-thread-mode)")
	flags.IntVar(&queueSize, "queue-size", scheduler.DefaultQueueSize, "Number of accepted downloads waiting for a worker")
	flags.IntVarP(&retries, "retries", "r", scheduler.DefaultMaxRetries, "Retries per download after the first attempt")
	flags.StringVarP(&userAgent, "user-agent", "a", "", "User agent (\"randomize\" picks a browser agent; default "+utils.ToolUserAgent+")")
	flags.DurationVar(&progressInterval, "progress-interval", scheduler.DefaultProgressInterval, "Minimum gap between progress updates")
	flags.DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Response header timeout (eg. 5s, 10m)")
	flags.DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.StringVar(&bearerToken, "bearer-token", "", "Bearer token sent with every HTTP request")
	flags.StringVar(&s3Profile, "s3-profile", "", "AWS profile for s3:// links")
	flags.StringVar(&configFile, "config", "", "YAML file with default values for these flags")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of the console")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&noDisplay, "no-display", false, "Disable the live status board")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newBatchCmd())
}

func setup(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		f, err := config.Load(configFile)
		if err != nil {
			return err
		}
		fileConfig = f
	}
	changed := cmd.Flags().Changed
	if !changed("debug") && fileConfig.Debug {
		debug = true
	}
	if !changed("log-file") && fileConfig.LogFile != "" {
		logFile = fileConfig.LogFile
	}
	utils.InitLogger(debug)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		utils.SetLogOutput(f)
	}
	log.Debug().Str("op", "cmd/setup").Str("config", configFile).Msg("configuration loaded")
	return nil
}
