// Package cmd implements the opsreport CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/kebunops/opsreport/internal/app"
	"github.com/kebunops/opsreport/internal/config"
	"github.com/kebunops/opsreport/internal/pipeline"
	"github.com/kebunops/opsreport/internal/render"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Token   string
	BaseURL string
	Format  string
	Out     string
	Timeout string
	Rate    float64
	Retries int
	Store   bool
	Offline bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// rootCmd is the base command. Running `opsreport` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "opsreport",
	Short: "opsreport — farm operations report CLI",
	Long: `opsreport fetches farm-operations reports (pest/disease HPT, production,
productivity) from the operations API and reshapes them into per-location
series, summary cards and detail tables.

Quick start:
  opsreport config init                      # create config.json and refdata.yaml
  opsreport locations                        # list locations and their IDs
  opsreport report production --start 2025-01-01 --end 2025-01-31
  opsreport report productivity --format jsonl | opsreport chart bar`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging installs a tint handler on stderr. --debug shows request
// logs; --quiet keeps only errors.
func setupLogging() {
	level := slog.LevelWarn
	switch {
	case globalFlags.Debug:
		level = slog.LevelDebug
	case globalFlags.Quiet:
		level = slog.LevelError
	case globalFlags.Verbose:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !pipeline.IsTerminal(os.Stderr),
	})))
}

// loadConfig resolves config and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.Token)
	if err != nil {
		return nil, err
	}

	cfg.Store = globalFlags.Store
	cfg.Offline = globalFlags.Offline
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.BaseURL != "" {
		cfg.BaseURL = globalFlags.BaseURL
	}
	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if !render.ValidFormat(cfg.Format) {
		return nil, fmt.Errorf("unknown format %q (use one of %v)", cfg.Format, render.Formats)
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("--timeout %q: %w", globalFlags.Timeout, err)
		}
		cfg.Timeout = d
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}
	if globalFlags.Retries > 0 {
		cfg.Retries = globalFlags.Retries
	}
	return cfg, nil
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each API-backed command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(cfg)
}

// buildLocalDeps is buildDeps for commands that only touch the local store
// and never call the API, so no token is required.
func buildLocalDeps() (*app.Deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Store, cfg.Offline = false, false
	return app.New(cfg)
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Token, "token", "",
		"API bearer token (overrides env "+config.EnvToken+" and config.json)")
	pf.StringVar(&globalFlags.BaseURL, "base-url", "",
		"API base URL (default: "+config.DefaultBaseURL+")")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md|xlsx (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max API requests per second (default: 5.0)")
	pf.IntVar(&globalFlags.Retries, "retries", 0,
		"attempts per request, retrying 429/5xx (default: 1)")
	pf.BoolVar(&globalFlags.Store, "store", false,
		"record every fetched payload in the local database")
	pf.BoolVar(&globalFlags.Offline, "offline", false,
		"serve requests from the local database only")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests and responses (token redacted)")
}
