package ports

import (
	"context"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

// TradeStore persists trades and portfolio snapshots.
type TradeStore interface {
	// SaveTrade is an idempotent upsert keyed by trade id.
	SaveTrade(ctx context.Context, t domain.Trade) error

	SavePortfolioSnapshot(ctx context.Context, s domain.PortfolioSummary) error

	// LoadTradeHistory returns up to limit trades, newest first. limit <= 0 returns all.
	LoadTradeHistory(ctx context.Context, limit int) ([]domain.Trade, error)

	// LoadOpenTrades returns trades still OPEN, oldest first.
	LoadOpenTrades(ctx context.Context) ([]domain.Trade, error)

	// LatestSnapshot returns the most recent snapshot; ok is false when none exists.
	LatestSnapshot(ctx context.Context) (s domain.PortfolioSummary, ok bool, err error)

	Close() error
}
