package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/papertrader/internal/adapters/storage"
	"github.com/alejandrodnm/papertrader/internal/domain"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:", storage.WithClock(func() time.Time { return base }))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTrade(id, symbol string, entry time.Time) domain.Trade {
	return domain.Trade{
		ID:         id,
		Symbol:     symbol,
		Side:       domain.SideLong,
		EntryPrice: 100,
		Quantity:   15,
		EntryTime:  entry,
		StopLoss:   98,
		TakeProfit: 104,
		Strategy:   "technical_confluence",
		Fees:       1.5,
		Status:     domain.TradeStatusOpen,
	}
}

func TestSQLiteStorage_SaveAndLoadOpenTrades(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveTrade(ctx, makeTrade("b", "ETHUSDT", base.Add(time.Minute))))
	require.NoError(t, db.SaveTrade(ctx, makeTrade("a", "BTCUSDT", base)))

	open, err := db.LoadOpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)

	// Más antiguo primero
	assert.Equal(t, "a", open[0].ID)
	assert.Equal(t, "b", open[1].ID)

	got := open[0]
	assert.Equal(t, domain.SideLong, got.Side)
	assert.Equal(t, domain.TradeStatusOpen, got.Status)
	assert.True(t, got.EntryTime.Equal(base))
	assert.Nil(t, got.ExitTime)
	assert.InDelta(t, 98.0, got.StopLoss, 1e-9)
	assert.InDelta(t, 1.5, got.Fees, 1e-9)
}

func TestSQLiteStorage_UpsertClosesTrade(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	tr := makeTrade("t1", "BTCUSDT", base)
	require.NoError(t, db.SaveTrade(ctx, tr))

	// trailing stop
	tr.StopLoss = 101
	require.NoError(t, db.SaveTrade(ctx, tr))

	exit := base.Add(2 * time.Hour)
	tr.ExitPrice = 104
	tr.ExitTime = &exit
	tr.PnL = 56.94
	tr.PnLPct = 0.03796
	tr.Fees = 3.06
	tr.CloseReason = domain.ReasonTakeProfit
	tr.Status = domain.TradeStatusClosed
	require.NoError(t, db.SaveTrade(ctx, tr))

	open, err := db.LoadOpenTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	hist, err := db.LoadTradeHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1, "upsert keeps one row per trade")

	got := hist[0]
	assert.Equal(t, domain.TradeStatusClosed, got.Status)
	assert.Equal(t, domain.ReasonTakeProfit, got.CloseReason)
	assert.InDelta(t, 101.0, got.StopLoss, 1e-9)
	assert.InDelta(t, 56.94, got.PnL, 1e-9)
	require.NotNil(t, got.ExitTime)
	assert.True(t, got.ExitTime.Equal(exit))
	assert.Equal(t, 2*time.Hour, got.HoldingTime(time.Time{}))
}

func TestSQLiteStorage_TradeHistory_NewestFirstWithLimit(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	for i, id := range []string{"t1", "t2", "t3"} {
		// sub-second offsets: el orden debe sobrevivir al formato de texto
		entry := base.Add(time.Duration(i) * 500 * time.Millisecond)
		require.NoError(t, db.SaveTrade(ctx, makeTrade(id, "BTCUSDT", entry)))
	}

	all, err := db.LoadTradeHistory(ctx, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"t3", "t2", "t1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := db.LoadTradeHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "t3", two[0].ID)
}

func TestSQLiteStorage_LatestSnapshot(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	_, ok, err := db.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "no snapshot yet")

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	first := domain.PortfolioSummary{
		Timestamp:      base,
		InitialBalance: 10000,
		Balance:        10000,
		PeakBalance:    10000,
		Day:            day,
	}
	second := domain.PortfolioSummary{
		Timestamp:        base.Add(time.Hour),
		InitialBalance:   10000,
		Balance:          10500,
		AvailableBalance: 9000,
		TotalPnL:         500,
		TotalTrades:      4,
		WinningTrades:    3,
		LosingTrades:     1,
		PeakBalance:      10600,
		MaxDrawdown:      0.02,
		CurrentDrawdown:  0.0094,
		DailyPnL:         120,
		DailyTrades:      2,
		Day:              day,
		OpenPositions:    1,
	}
	require.NoError(t, db.SavePortfolioSnapshot(ctx, first))
	require.NoError(t, db.SavePortfolioSnapshot(ctx, second))

	got, ok, err := db.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, got.Timestamp.Equal(second.Timestamp))
	assert.True(t, got.Day.Equal(day))
	assert.InDelta(t, 10500.0, got.Balance, 1e-9)
	assert.InDelta(t, 9000.0, got.AvailableBalance, 1e-9)
	assert.InDelta(t, 10600.0, got.PeakBalance, 1e-9)
	assert.InDelta(t, 0.02, got.MaxDrawdown, 1e-9)
	assert.InDelta(t, 120.0, got.DailyPnL, 1e-9)
	assert.Equal(t, 2, got.DailyTrades)
	assert.Equal(t, 4, got.TotalTrades)
	assert.Equal(t, 1, got.OpenPositions)
	assert.InDelta(t, 0.05, got.ReturnPct, 1e-9)
	assert.InDelta(t, 0.75, got.WinRate, 1e-9)
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.db")
	ctx := context.Background()

	db, err := storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveTrade(ctx, makeTrade("t1", "BTCUSDT", base)))
	require.NoError(t, db.SavePortfolioSnapshot(ctx, domain.PortfolioSummary{
		Timestamp: time.Now(), InitialBalance: 10000, Balance: 9990, PeakBalance: 10000,
	}))
	require.NoError(t, db.Close())

	db, err = storage.NewSQLiteStorage(path)
	require.NoError(t, err)
	defer db.Close()

	open, err := db.LoadOpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	snap, ok, err := db.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 9990.0, snap.Balance, 1e-9)
}

func TestSQLiteStorage_PruneKeepsNewestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.db")
	ctx := context.Background()
	now := base.AddDate(0, 0, 200)
	clock := storage.WithClock(func() time.Time { return now })

	db, err := storage.NewSQLiteStorage(path, clock)
	require.NoError(t, err)
	require.NoError(t, db.SavePortfolioSnapshot(ctx, domain.PortfolioSummary{
		Timestamp: base, InitialBalance: 10000, Balance: 10000,
	}))
	require.NoError(t, db.SavePortfolioSnapshot(ctx, domain.PortfolioSummary{
		Timestamp: base.Add(time.Hour), InitialBalance: 10000, Balance: 10056.94,
		TotalTrades: 1, WinningTrades: 1, PeakBalance: 10056.94,
	}))
	require.NoError(t, db.Close())

	// Reabrir 200 días después: ambos están fuera de retención.
	db, err = storage.NewSQLiteStorage(path, clock)
	require.NoError(t, err)
	defer db.Close()

	snap, ok, err := db.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok, "newest snapshot survives retention")
	assert.InDelta(t, 10056.94, snap.Balance, 1e-9)
	assert.Equal(t, 1, snap.TotalTrades)
	assert.Equal(t, 1, snap.WinningTrades)
}
