package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/papertrader/config"
	"github.com/alejandrodnm/papertrader/internal/adapters/binance"
	"github.com/alejandrodnm/papertrader/internal/adapters/metrics"
	"github.com/alejandrodnm/papertrader/internal/adapters/notify"
	"github.com/alejandrodnm/papertrader/internal/adapters/storage"
	"github.com/alejandrodnm/papertrader/internal/application/engine"
	"github.com/alejandrodnm/papertrader/internal/indicators"
	"github.com/alejandrodnm/papertrader/internal/ports"
)

type runOptions struct {
	once    bool
	dryRun  bool
	resume  bool
	profile string
	symbols string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the paper trading loop",
		Long: `Run ticks every engine.tick_interval until Ctrl+C or a STOP file appears.

Examples:
  papertrader run --once --dry-run
  papertrader run --profile intraday --symbols BTCUSDT,ETHUSDT
  papertrader run --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			return runPaper(cmd, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "do not persist trades or snapshots")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "restore balance, daily counters and open trades from storage")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "risk profile: standard|intraday|active (overrides config)")
	cmd.Flags().StringVar(&opts.symbols, "symbols", "", "comma separated symbols (overrides config)")
	return cmd
}

func runPaper(cmd *cobra.Command, cfg *config.Config, opts *runOptions) error {
	if opts.profile != "" {
		cfg.Risk.Profile = opts.profile
	}
	if opts.symbols != "" {
		cfg.Engine.Symbols = config.SplitSymbols(opts.symbols)
	}
	if opts.resume && opts.dryRun {
		return errors.New("--resume needs storage, drop --dry-run")
	}

	engCfg, err := buildEngineConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rest := binance.NewClient(cfg.Binance.RESTBase)
	var market ports.MarketData = rest
	if cfg.Binance.Stream {
		stream := binance.NewStream(cfg.Binance.WSBase, engCfg.Symbols, rest, cfg.Binance.StreamMaxAge)
		go func() {
			if err := stream.Run(ctx); err != nil {
				slog.Error("price stream stopped", "err", err)
			}
		}()
		market = stream
	}

	var store ports.TradeStore // nil en dry-run: el engine no persiste
	var sqlite *storage.SQLiteStorage
	if !opts.dryRun {
		sqlite, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
		}
		defer sqlite.Close()
		store = sqlite
	}

	console := notify.NewConsoleWriter(cmd.OutOrStdout())
	observers := []ports.CycleObserver{console}
	if cfg.Metrics.Addr != "" {
		rec := metrics.NewRecorder()
		observers = append(observers, rec)
		stopMetrics := serveMetrics(cfg.Metrics, rec.Handler())
		defer stopMetrics()
	}

	eng, err := engine.New(engCfg, market, indicators.NewCalculator(cfg.Indicators), store,
		engine.WithObservers(observers...))
	if err != nil {
		return err
	}

	if opts.resume {
		if err := eng.Resume(ctx); err != nil {
			return err
		}
	} else if sqlite != nil {
		warnOrphanedTrades(ctx, cmd.OutOrStdout(), sqlite)
	}

	slog.Info("papertrader starting",
		"symbols", engCfg.Symbols,
		"profile", cfg.Risk.Profile,
		"interval", engCfg.TickInterval,
		"balance", eng.Summary().Balance,
		"dry_run", opts.dryRun,
		"once", opts.once,
		"stream", cfg.Binance.Stream,
	)

	if opts.once {
		if _, err := eng.RunCycle(ctx); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "[PAPER] Starting loop (%s interval, balance $%.0f). Ctrl+C or create %s to exit\n",
			engCfg.TickInterval, eng.Summary().Balance, stopFileLabel(engCfg.StopFile))
		if err := eng.Run(ctx); err != nil {
			return err
		}
	}

	printExitSummary(context.WithoutCancel(ctx), eng, sqlite, console)
	slog.Info("papertrader stopped cleanly")
	return nil
}

// warnOrphanedTrades avisa de trades OPEN de una ejecución anterior que este
// run no va a gestionar (solo --resume los recupera).
func warnOrphanedTrades(ctx context.Context, w io.Writer, store ports.TradeStore) {
	open, err := store.LoadOpenTrades(ctx)
	if err != nil {
		slog.Warn("could not check open trades from previous runs", "err", err)
		return
	}
	if len(open) == 0 {
		return
	}
	ids := make([]string, len(open))
	for i, t := range open {
		ids[i] = t.ID
	}
	slog.Warn("open trades from a previous run are not managed without --resume",
		"count", len(open), "trade_ids", ids)
	fmt.Fprintf(w, "[PAPER] WARNING: %d open trade(s) from a previous run left untouched. Use --resume to manage them.\n", len(open))
}

// buildEngineConfig traduce la config de fichero a la del engine.
func buildEngineConfig(cfg *config.Config) (engine.Config, error) {
	risk, err := cfg.Risk.Resolve()
	if err != nil {
		return engine.Config{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return engine.Config{}, err
	}

	ec := engine.Config{
		Symbols:        cfg.Engine.Symbols,
		CandleInterval: cfg.Engine.CandleInterval,
		Lookback:       cfg.Engine.Lookback,
		TickInterval:   cfg.Engine.TickInterval,
		InitialBalance: cfg.Engine.InitialBalance,
		CallTimeout:    cfg.Engine.CallTimeout,
		Workers:        cfg.Engine.Workers,
		Strategy:       cfg.Engine.Strategy,
		Location:       loc,
		DrainOnStop:    cfg.Engine.DrainOnStop,
		StopFile:       cfg.Engine.StopFile,
		Risk:           risk,
		Scorer:         cfg.Scorer,
	}
	if err := ec.Validate(); err != nil {
		return engine.Config{}, err
	}
	return ec, nil
}

// serveMetrics arranca el endpoint de Prometheus y devuelve su shutdown.
func serveMetrics(cfg config.MetricsConfig, h http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, h)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics endpoint listening", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown", "err", err)
		}
	}
}

// printExitSummary imprime el estado final con el historial guardado, si lo hay.
func printExitSummary(ctx context.Context, eng *engine.Engine, store *storage.SQLiteStorage, console *notify.Console) {
	in := notify.ReportInput{
		Summary:    eng.Summary(),
		Open:       eng.OpenTrades(),
		LastPrices: make(map[string]float64),
	}
	for _, t := range in.Open {
		if p, ok := eng.LastPrice(t.Symbol); ok {
			in.LastPrices[t.Symbol] = p
		}
	}
	if store != nil {
		hist, err := store.LoadTradeHistory(ctx, reportHistoryLimit)
		if err != nil {
			slog.Warn("could not load trade history", "err", err)
		}
		in.History = hist
	}
	console.PrintReport(in)
}

func stopFileLabel(path string) string {
	if path == "" {
		return "(no STOP file)"
	}
	return path
}

var (
	_ ports.TradeStore          = (*storage.SQLiteStorage)(nil)
	_ ports.CycleObserver       = (*notify.Console)(nil)
	_ ports.CycleObserver       = (*metrics.Recorder)(nil)
	_ ports.MarketData          = (*binance.Client)(nil)
	_ ports.MarketData          = (*binance.Stream)(nil)
	_ ports.IndicatorCalculator = (*indicators.Calculator)(nil)
)
