package storage

// sqlite.go: persistencia del ledger de paper trading.
//
// Estrategia:
//   - `trades`: UNA fila por trade (UPSERT por id). Se reescribe al abrir,
//     al mover el trailing stop y al cerrar.
//   - `portfolio_history`: un snapshot por ciclo, append-only. El último
//     sirve para reanudar tras un reinicio.
//   - Prune automático al arrancar: snapshots > 90d, salvo el más reciente,
//     que es la única copia del balance. Los trades no se borran.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/papertrader/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id           TEXT PRIMARY KEY,
    symbol       TEXT    NOT NULL,
    side         TEXT    NOT NULL,
    entry_price  REAL    NOT NULL,
    quantity     REAL    NOT NULL,
    entry_time   DATETIME NOT NULL,
    stop_loss    REAL    NOT NULL DEFAULT 0,
    take_profit  REAL    NOT NULL DEFAULT 0,
    strategy     TEXT    NOT NULL DEFAULT '',
    exit_price   REAL    NOT NULL DEFAULT 0,
    exit_time    DATETIME,
    pnl          REAL    NOT NULL DEFAULT 0,
    pnl_pct      REAL    NOT NULL DEFAULT 0,
    close_reason TEXT    NOT NULL DEFAULT '',
    fees         REAL    NOT NULL DEFAULT 0,
    status       TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_history (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    taken_at          DATETIME NOT NULL,
    initial_balance   REAL    NOT NULL,
    balance           REAL    NOT NULL,
    available_balance REAL    NOT NULL,
    total_pnl         REAL    NOT NULL DEFAULT 0,
    total_trades      INTEGER NOT NULL DEFAULT 0,
    winning_trades    INTEGER NOT NULL DEFAULT 0,
    losing_trades     INTEGER NOT NULL DEFAULT 0,
    peak_balance      REAL    NOT NULL DEFAULT 0,
    max_drawdown      REAL    NOT NULL DEFAULT 0,
    current_drawdown  REAL    NOT NULL DEFAULT 0,
    daily_pnl         REAL    NOT NULL DEFAULT 0,
    daily_trades      INTEGER NOT NULL DEFAULT 0,
    trading_day       DATETIME,
    open_positions    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
CREATE INDEX IF NOT EXISTS idx_trades_entry  ON trades(entry_time DESC);
CREATE INDEX IF NOT EXISTS idx_history_at    ON portfolio_history(taken_at DESC);
`

const retentionHistory = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.TradeStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// Option configura un SQLiteStorage.
type Option func(*SQLiteStorage)

// WithClock sustituye time.Now para el prune de retención.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) { s.now = now }
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia snapshots antiguos.
func NewSQLiteStorage(path string, opts ...Option) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.pruneOld(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: %w", err)
	}
	return s, nil
}

// SaveTrade hace upsert del trade completo.
func (s *SQLiteStorage) SaveTrade(ctx context.Context, t domain.Trade) error {
	var exitTime *string
	if t.ExitTime != nil {
		v := formatTime(*t.ExitTime)
		exitTime = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
			(id, symbol, side, entry_price, quantity, entry_time, stop_loss, take_profit,
			 strategy, exit_price, exit_time, pnl, pnl_pct, close_reason, fees, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stop_loss    = excluded.stop_loss,
			take_profit  = excluded.take_profit,
			exit_price   = excluded.exit_price,
			exit_time    = excluded.exit_time,
			pnl          = excluded.pnl,
			pnl_pct      = excluded.pnl_pct,
			close_reason = excluded.close_reason,
			fees         = excluded.fees,
			status       = excluded.status`,
		t.ID, t.Symbol, string(t.Side), t.EntryPrice, t.Quantity, formatTime(t.EntryTime),
		t.StopLoss, t.TakeProfit, t.Strategy, t.ExitPrice, exitTime,
		t.PnL, t.PnLPct, string(t.CloseReason), t.Fees, string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTrade %s: %w", t.ID, err)
	}
	return nil
}

// SavePortfolioSnapshot añade un snapshot al histórico.
func (s *SQLiteStorage) SavePortfolioSnapshot(ctx context.Context, p domain.PortfolioSummary) error {
	takenAt := p.Timestamp
	if takenAt.IsZero() {
		takenAt = s.now()
	}
	var day *string
	if !p.Day.IsZero() {
		v := formatTime(p.Day)
		day = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_history
			(taken_at, initial_balance, balance, available_balance, total_pnl,
			 total_trades, winning_trades, losing_trades, peak_balance, max_drawdown,
			 current_drawdown, daily_pnl, daily_trades, trading_day, open_positions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(takenAt), p.InitialBalance, p.Balance, p.AvailableBalance, p.TotalPnL,
		p.TotalTrades, p.WinningTrades, p.LosingTrades, p.PeakBalance, p.MaxDrawdown,
		p.CurrentDrawdown, p.DailyPnL, p.DailyTrades, day, p.OpenPositions,
	)
	if err != nil {
		return fmt.Errorf("storage.SavePortfolioSnapshot: %w", err)
	}
	return nil
}

const tradeColumns = `id, symbol, side, entry_price, quantity, entry_time, stop_loss, take_profit,
	strategy, exit_price, exit_time, pnl, pnl_pct, close_reason, fees, status`

// LoadTradeHistory devuelve los trades más recientes primero. limit <= 0 devuelve todos.
func (s *SQLiteStorage) LoadTradeHistory(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = -1 // SQLite: sin límite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		ORDER BY entry_time DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadTradeHistory: query: %w", err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadTradeHistory: %w", err)
	}
	return trades, nil
}

// LoadOpenTrades devuelve los trades OPEN, el más antiguo primero.
func (s *SQLiteStorage) LoadOpenTrades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE status = ?
		ORDER BY entry_time ASC, id ASC`, string(domain.TradeStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("storage.LoadOpenTrades: query: %w", err)
	}
	defer rows.Close()

	trades, err := scanTrades(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadOpenTrades: %w", err)
	}
	return trades, nil
}

// LatestSnapshot devuelve el último snapshot guardado; ok es false si no hay ninguno.
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context) (domain.PortfolioSummary, bool, error) {
	var (
		p       domain.PortfolioSummary
		takenAt string
		day     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT taken_at, initial_balance, balance, available_balance, total_pnl,
		       total_trades, winning_trades, losing_trades, peak_balance, max_drawdown,
		       current_drawdown, daily_pnl, daily_trades, trading_day, open_positions
		FROM portfolio_history
		ORDER BY id DESC
		LIMIT 1`).Scan(
		&takenAt, &p.InitialBalance, &p.Balance, &p.AvailableBalance, &p.TotalPnL,
		&p.TotalTrades, &p.WinningTrades, &p.LosingTrades, &p.PeakBalance, &p.MaxDrawdown,
		&p.CurrentDrawdown, &p.DailyPnL, &p.DailyTrades, &day, &p.OpenPositions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PortfolioSummary{}, false, nil
	}
	if err != nil {
		return domain.PortfolioSummary{}, false, fmt.Errorf("storage.LatestSnapshot: %w", err)
	}

	p.Timestamp = parseTime(takenAt)
	if day.Valid {
		p.Day = parseTime(day.String)
	}
	p.ReturnPct = returnPct(p.InitialBalance, p.Balance)
	if p.TotalTrades > 0 {
		p.WinRate = float64(p.WinningTrades) / float64(p.TotalTrades)
	}
	return p, true, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func scanTrades(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var (
			t                               domain.Trade
			side, reason, status, entryTime string
			exitTime                        sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.Quantity, &entryTime,
			&t.StopLoss, &t.TakeProfit, &t.Strategy, &t.ExitPrice, &exitTime,
			&t.PnL, &t.PnLPct, &reason, &t.Fees, &status,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		t.Side = domain.Side(side)
		t.CloseReason = domain.CloseReason(reason)
		t.Status = domain.TradeStatus(status)
		t.EntryTime = parseTime(entryTime)
		if exitTime.Valid {
			et := parseTime(exitTime.String)
			t.ExitTime = &et
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// pruneOld elimina snapshots antiguos para mantener la DB ligera.
// El último snapshot se conserva siempre: Resume depende de él.
func (s *SQLiteStorage) pruneOld(ctx context.Context) error {
	cutoff := formatTime(s.now().Add(-retentionHistory))
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM portfolio_history
		WHERE taken_at < ?
		  AND id <> (SELECT MAX(id) FROM portfolio_history)`, cutoff)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// timeLayout es RFC3339 con nanosegundos de ancho fijo: el orden
// lexicográfico coincide con el cronológico.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}

func returnPct(initial, balance float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (balance - initial) / initial
}
