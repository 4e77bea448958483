package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanq16/segdl/internal/config"
	"github.com/tanq16/segdl/internal/utils"
)

var SegdlVersion = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "segdl [URL...]",
	Short:         "segdl is a segmented HTTP download manager",
	Version:       SegdlVersion,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		cfg, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		entries := make([]utils.DownloadEntry, 0, len(args))
		for _, arg := range args {
			entries = append(entries, utils.DownloadEntry{URL: arg})
		}
		return runDownloads(cmd.Context(), cfg, entries)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.StringP("output", "o", ".", "Output directory (file names are inferred)")
	flags.IntP("workers", "w", 0, "Number of links to download in parallel (0 for all at once)")
	flags.IntP("connections", "c", utils.DefaultConnections, "Number of connections per download (1-16, above 8 enables high-thread-mode)")
	flags.DurationP("timeout", "t", 3*time.Minute, "Time to wait for response headers (eg. 5s, 10m)")
	flags.DurationP("keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.Duration("probe-timeout", utils.DefaultProbeTimeout, "Timeout for the capability probe")
	flags.Duration("sample-interval", utils.DefaultSampleInterval, "Progress sampling interval")
	flags.Int("buffer-size", utils.DefaultBufferSize, "Read increment in bytes")
	flags.StringP("user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a browser agent per request)")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.String("proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.String("proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayP("header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.String("bearer-token", "", "Bearer token sent with every request")
	flags.String("aws-profile", "", "AWS profile for s3:// sources")
	flags.String("aws-region", "", "AWS region for s3:// sources")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	flags.Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
}
