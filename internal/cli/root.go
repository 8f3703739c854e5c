package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	flagkit "github.com/flagkit/go-sdk"
	"github.com/flagkit/go-sdk/internal/config"
)

type rootFlags struct {
	configFile string
	envFile    string
	debug      bool
	source     string
	filePath   string
	api        string
}

// app carries the state built by the root command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	// newSource is replaced in tests.
	newSource func(ctx context.Context, cfg *config.Config) (flagkit.ConfigSource, error)
}

// NewRootCmd builds the flagkit command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	a := &app{newSource: buildSource}

	rootCmd := &cobra.Command{
		Use:           "flagkit",
		Short:         "Fetch and evaluate feature flags",
		Long:          `Fetch feature flag configuration from AWS AppConfig, an AppConfig-compatible HTTP endpoint or a local file, and report flag decisions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default ./flagkit.yaml when present)")
	pf.StringVar(&flags.envFile, "env-file", "", "load environment variables from this file before reading config")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pf.StringVar(&flags.source, "source", "", "configuration source: appconfig, http or file")
	pf.StringVar(&flags.filePath, "file", "", "flag document path for the file source")
	pf.StringVar(&flags.api, "api", "", "base URL for the http source")

	rootCmd.AddCommand(getAppConfigCmd(a))
	rootCmd.AddCommand(getDecideCmd(a))
	rootCmd.AddCommand(getSorterCmd(a))
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, flags *rootFlags) error {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", flags.envFile, err)
		}
	}

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	if flags.debug {
		cfg.Debug = true
	}
	if flags.source != "" {
		cfg.Source = flags.source
	}
	if flags.filePath != "" {
		cfg.File.Path = flags.filePath
	}
	if flags.api != "" {
		cfg.HTTP.API = flags.api
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Debug)
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *app) options() *flagkit.Options {
	margin := a.cfg.Session.SafetyMargin
	if margin == 0 {
		margin = flagkit.NoSafetyMargin
	}
	return &flagkit.Options{
		SessionTTL:   a.cfg.Session.TTL,
		SafetyMargin: margin,
		InitTimeout:  a.cfg.InitTimeout,
		PollInterval: a.cfg.PollInterval,
		OutputLoggerOptions: flagkit.OutputLoggerOptions{
			Logger:      a.logger,
			EnableDebug: a.cfg.Debug,
		},
	}
}

func (a *app) params() flagkit.SessionParams {
	return flagkit.SessionParams{
		Application: a.cfg.AppConfig.Application,
		Environment: a.cfg.AppConfig.Environment,
		Profile:     a.cfg.AppConfig.Profile,
	}
}

// newClient builds a client for the configured source and performs the
// initial fetch.
func (a *app) newClient(ctx context.Context, options *flagkit.Options) (*flagkit.Client, error) {
	source, err := a.newSource(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	client := flagkit.NewClient(source, a.params(), options)
	if err := client.Initialize(ctx); err != nil {
		client.Shutdown()
		return nil, err
	}
	return client, nil
}
