package engine

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

func TestResume_AfterLongIdleKeepsRealizedBalance(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "paper.db")
	clock := &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}

	store, err := storage.NewSQLiteStorage(path, storage.WithClock(clock.Now))
	require.NoError(t, err)

	cfg := testConfig("X", "Y")
	market := newFakeMarket()
	first, err := New(cfg, market, &fakeCalc{}, store, WithClock(clock.Now))
	require.NoError(t, err)

	x := first.Open(ctx, buySignal("X", 100), domain.SideLong)
	require.Equal(t, domain.EventOpened, x.Type)
	y := first.Open(ctx, buySignal("Y", 100), domain.SideLong)
	require.Equal(t, domain.EventOpened, y.Type)
	_, err = first.Close(ctx, x.Trade.ID, 104, domain.ReasonTakeProfit)
	require.NoError(t, err)

	// ciclo sin señales: solo persiste el snapshot
	market.set("X", 104)
	market.set("Y", 100)
	_, err = first.RunCycle(ctx)
	require.NoError(t, err)
	want := first.Summary()
	require.InDelta(t, 10056.94, want.Balance, 1e-9)
	require.NoError(t, store.Close())

	// Reinicio 120 días después, más allá de la retención de snapshots.
	clock.Advance(120 * 24 * time.Hour)
	store, err = storage.NewSQLiteStorage(path, storage.WithClock(clock.Now))
	require.NoError(t, err)
	defer store.Close()

	second, err := New(cfg, market, &fakeCalc{}, store, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, second.Resume(ctx))

	got := second.Summary()
	assert.InDelta(t, want.Balance, got.Balance, 1e-9)
	assert.InDelta(t, want.AvailableBalance, got.AvailableBalance, 1e-9)
	assert.Equal(t, 1, got.TotalTrades)
	assert.Equal(t, 1, got.WinningTrades)
	require.Len(t, second.OpenTrades(), 1)
	assert.Equal(t, y.Trade.ID, second.OpenTrades()[0].ID)
}
