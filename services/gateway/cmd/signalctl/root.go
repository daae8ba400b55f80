package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/bootstrap"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "signalctl",
		Short:         "SignalReach operator tool",
		Long:          "signalctl runs one-off scrapes, queues scrape jobs and migrates the database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml (default $SIGNALREACH_CONFIG or "+config.DefaultConfigPath+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newScrapeCmd(opts))
	root.AddCommand(newDispatchCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	return root
}

// loadConfig reads .env and the config file, then installs the logger.
func (o *rootOptions) loadConfig() (config.FileConfig, func(), error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	_, cleanup := util.InitLogger(level, "signalctl", cfg.LogsDir)
	return cfg, cleanup, nil
}

func (o *rootOptions) build() (*bootstrap.Deps, func(), error) {
	cfg, cleanup, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	deps, err := bootstrap.Build(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return deps, func() {
		deps.Close()
		cleanup()
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
