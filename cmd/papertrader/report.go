package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/papertrader/internal/adapters/binance"
	"github.com/alejandrodnm/papertrader/internal/adapters/notify"
	"github.com/alejandrodnm/papertrader/internal/adapters/storage"
	"github.com/alejandrodnm/papertrader/internal/ports"
)

const reportHistoryLimit = 20

type reportOptions struct {
	limit      int
	livePrices bool
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the stored portfolio, open positions and trade history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
			}
			defer store.Close()

			var market ports.MarketData
			if opts.livePrices {
				market = binance.NewClient(cfg.Binance.RESTBase)
			}

			in, err := buildReport(cmd.Context(), store, market, opts.limit)
			if err != nil {
				return err
			}
			if in.Summary.InitialBalance == 0 {
				in.Summary.InitialBalance = cfg.Engine.InitialBalance
				in.Summary.Balance = cfg.Engine.InitialBalance
				in.Summary.AvailableBalance = cfg.Engine.InitialBalance
			}
			notify.NewConsoleWriter(cmd.OutOrStdout()).PrintReport(in)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.limit, "limit", reportHistoryLimit, "closed trades to show (0 = all)")
	cmd.Flags().BoolVar(&opts.livePrices, "prices", false, "fetch current prices to show unrealized P&L")
	return cmd
}

// buildReport junta snapshot, trades abiertos e historial. market es opcional.
func buildReport(ctx context.Context, store ports.TradeStore, market ports.MarketData, limit int) (notify.ReportInput, error) {
	var in notify.ReportInput

	snap, ok, err := store.LatestSnapshot(ctx)
	if err != nil {
		return in, err
	}
	if ok {
		in.Summary = snap
	}

	if in.Open, err = store.LoadOpenTrades(ctx); err != nil {
		return in, err
	}
	if in.History, err = store.LoadTradeHistory(ctx, limit); err != nil {
		return in, err
	}

	in.LastPrices = make(map[string]float64)
	if market == nil {
		return in, nil
	}
	for _, t := range in.Open {
		if _, done := in.LastPrices[t.Symbol]; done {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		p, err := market.GetPrice(callCtx, t.Symbol)
		cancel()
		if err != nil {
			slog.Warn("report: price unavailable", "symbol", t.Symbol, "err", err)
			continue
		}
		in.LastPrices[t.Symbol] = p
	}
	return in, nil
}
