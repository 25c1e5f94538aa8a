package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/papertrader/config"
)

// rootOptions son los flags compartidos por todos los subcomandos.
type rootOptions struct {
	configPath string
	verbose    bool
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "papertrader",
		Short: "Paper trading engine: signals, sizing, exits and daily risk limits over live market data",
		Long: `papertrader runs a simulated trading account against live Binance prices.

Every tick it refreshes prices and indicators, closes positions that hit their
stop, target, time limit or volatility emergency, scores new entries and sizes
them against the account's risk budget. Nothing is ever sent to an exchange.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config/config.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "set log level to debug")
	root.PersistentFlags().StringVar(&opts.logFormat, "format", "", "log format: text|json (overrides config)")

	root.AddCommand(
		newRunCmd(opts),
		newReportCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig carga la config y deja el logger listo.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", opts.configPath, err)
	}

	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	setupLogger(os.Stdout, cfg.Log)
	return cfg, nil
}

func setupLogger(w io.Writer, cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}
