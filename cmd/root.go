// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tuber/client"
	"tuber/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig    string
	flagJSON      bool
	flagDebug     bool
	flagAsync     bool
	flagQuiet     bool
	flagTimeout   string
	flagUserAgent string
	flagLanguage  string
	flagSaveSubs  bool
	flagOutputDir string
	flagInstance  string
	flagDisable   []string
	flagPeerTube  []string
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tuber [uri...]",
	Short: "Resolve video pages into playable streams",
	Long: `Tuber turns a video page URI (or a bare YouTube video id) into the list of
streams behind it: progressive files, HLS and DASH renditions, captions and
the request headers a player needs.`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: loadConfig,
	RunE:              fetchRun,
	SilenceUsage:      true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: $XDG_CONFIG_HOME/tuber/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Output media info as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "", "Per-resolution timeout, e.g. 30s (0 disables)")
	rootCmd.PersistentFlags().StringVar(&flagUserAgent, "user-agent", "", "User-Agent sent with every request")
	rootCmd.PersistentFlags().StringVar(&flagInstance, "invidious", "", "Invidious instance used for YouTube URIs")
	rootCmd.PersistentFlags().StringSliceVar(&flagDisable, "disable", nil, "Plugins to disable (repeatable)")
	rootCmd.PersistentFlags().StringSliceVar(&flagPeerTube, "peertube", nil, "Extra PeerTube instance hosts (repeatable)")
	rootCmd.PersistentFlags().StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory for generated manifests and subtitles")

	rootCmd.Flags().BoolVar(&flagAsync, "async", false, "Resolve in the background and show progress")
	rootCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Never draw progress, even on a terminal")
	rootCmd.Flags().StringVarP(&flagLanguage, "subs", "l", "", "Only list subtitles in this language")
	rootCmd.Flags().BoolVar(&flagSaveSubs, "save-subs", false, "Download the best matching subtitle")

	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagTimeout != "" {
		cfg.Timeout = flagTimeout
	}
	if flagUserAgent != "" {
		cfg.UserAgent = flagUserAgent
	}
	if flagInstance != "" {
		cfg.InvidiousInstance = flagInstance
	}
	if len(flagDisable) > 0 {
		cfg.Disabled = append(cfg.Disabled, flagDisable...)
	}
	if len(flagPeerTube) > 0 {
		cfg.PeerTubeHosts = append(cfg.PeerTubeHosts, flagPeerTube...)
	}
	if flagOutputDir != "" {
		cfg.ManifestDir = flagOutputDir
	}
	if flagLanguage != "" {
		cfg.SubsLanguage = flagLanguage
	}
	if flagJSON {
		cfg.Output = "json"
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := setupLogging(cfg); err != nil {
		return err
	}
	warnUnknownPlugins(cfg.Disabled)
	return nil
}

// setupLogging points logrus at stderr with the configured level and format.
func setupLogging(c *config.Config) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Debug {
		level = logrus.DebugLevel
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(level)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: !c.Debug})
	}
	return nil
}

// newClient builds a client from the merged configuration.
func newClient() (*client.Client, error) {
	return client.New(
		client.WithConfig(cfg),
		client.WithLogger(logrus.WithField("version", Version)),
	)
}
