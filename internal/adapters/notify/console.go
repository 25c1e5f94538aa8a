package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/papertrader/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.CycleObserver y pinta los reportes de la CLI.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// ObserveCycle imprime el estado compacto del ciclo en 1-3 líneas.
func (c *Console) ObserveCycle(r domain.CycleReport) {
	s := r.Summary

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s][PAPER] +%d open | %d closed | %d declined | bal $%.2f (%s) | avail $%.2f | pos %d | dd %.1f%% | day $%.2f/%d",
		r.Started.Format("15:04:05"),
		r.Count(domain.EventOpened), r.Count(domain.EventClosed), r.Count(domain.EventDeclined),
		s.Balance, signedPct(s.ReturnPct), s.AvailableBalance, s.OpenPositions,
		s.CurrentDrawdown*100, s.DailyPnL, s.DailyTrades)

	if r.ProviderErrors > 0 {
		fmt.Fprintf(&sb, " | %d provider errors", r.ProviderErrors)
	}
	if r.EntriesPaused {
		sb.WriteString(" | ENTRIES PAUSED")
	}

	for _, ev := range r.Events {
		if ev.Trade == nil {
			continue
		}
		t := ev.Trade
		switch ev.Type {
		case domain.EventOpened:
			fmt.Fprintf(&sb, "\n  >> OPEN  %s %-5s %s @ %s  stop %s  target %s",
				t.Symbol, t.Side, formatQty(t.Quantity), formatPrice(t.EntryPrice),
				formatPrice(t.StopLoss), formatPrice(t.TakeProfit))
		case domain.EventClosed:
			fmt.Fprintf(&sb, "\n  << CLOSE %s %-5s @ %s  %s  pnl $%.2f (%s)",
				t.Symbol, t.Side, formatPrice(t.ExitPrice), t.CloseReason, t.PnL, signedPct(t.PnLPct))
		}
	}

	fmt.Fprintln(c.out, sb.String())
}

// ReportInput bundles everything PrintReport needs.
type ReportInput struct {
	Summary    domain.PortfolioSummary
	Open       []domain.Trade
	LastPrices map[string]float64 // símbolo → último precio; vacío si no hay mercado
	History    []domain.Trade     // más reciente primero
}

// PrintReport imprime el reporte completo del paper trading.
func (c *Console) PrintReport(in ReportInput) {
	s := in.Summary

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  PAPER TRADING REPORT\n")
	if !s.Timestamp.IsZero() {
		fmt.Fprintf(c.out, "  as of %s\n", s.Timestamp.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(c.out, "========================================================\n\n")

	c.printOpen(in.Open, in.LastPrices)
	c.printHistory(in.History)

	fmt.Fprintf(c.out, "\n  --- PORTFOLIO ---\n")
	fmt.Fprintf(c.out, "  Initial balance:   $%.2f\n", s.InitialBalance)
	fmt.Fprintf(c.out, "  Balance:           $%.2f (%s)\n", s.Balance, signedPct(s.ReturnPct))
	fmt.Fprintf(c.out, "  Available:         $%.2f\n", s.AvailableBalance)
	fmt.Fprintf(c.out, "  Realized P&L:      $%.2f\n", s.TotalPnL)
	fmt.Fprintf(c.out, "  Trades:            %d (W:%d L:%d, win rate %.1f%%)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate*100)
	fmt.Fprintf(c.out, "  Peak balance:      $%.2f\n", s.PeakBalance)
	fmt.Fprintf(c.out, "  Drawdown:          %.2f%% (max %.2f%%)\n", s.CurrentDrawdown*100, s.MaxDrawdown*100)

	fmt.Fprintf(c.out, "\n  --- TODAY ---\n")
	if !s.Day.IsZero() {
		fmt.Fprintf(c.out, "  Day:               %s\n", s.Day.Format("2006-01-02"))
	}
	fmt.Fprintf(c.out, "  Daily P&L:         $%.2f\n", s.DailyPnL)
	fmt.Fprintf(c.out, "  Daily trades:      %d\n", s.DailyTrades)
	fmt.Fprintln(c.out)
}

func (c *Console) printOpen(open []domain.Trade, prices map[string]float64) {
	if len(open) == 0 {
		fmt.Fprintln(c.out, "  No open positions.")
		return
	}

	fmt.Fprintf(c.out, "  --- OPEN POSITIONS (%d) ---\n", len(open))
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Symbol", "Side", "Qty", "Entry", "Stop", "Target", "Last", "Unreal P&L", "Opened")

	for _, t := range open {
		last, unreal := "-", "-"
		if p, ok := prices[t.Symbol]; ok && p > 0 {
			last = formatPrice(p)
			unreal = fmt.Sprintf("$%.2f (%s)", t.GrossPnL(p), signedPct(t.GainPct(p)))
		}
		tbl.Append(
			t.Symbol,
			string(t.Side),
			formatQty(t.Quantity),
			formatPrice(t.EntryPrice),
			formatPrice(t.StopLoss),
			formatPrice(t.TakeProfit),
			last,
			unreal,
			t.EntryTime.Format("01-02 15:04"),
		)
	}
	tbl.Render()
}

func (c *Console) printHistory(history []domain.Trade) {
	var closed []domain.Trade
	for _, t := range history {
		if t.Status == domain.TradeStatusClosed {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		fmt.Fprintln(c.out, "\n  No closed trades yet.")
		return
	}

	fmt.Fprintf(c.out, "\n  --- CLOSED TRADES (%d) ---\n", len(closed))
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Symbol", "Side", "Entry", "Exit", "P&L", "P&L %", "Fees", "Reason", "Held")

	for _, t := range closed {
		tbl.Append(
			t.Symbol,
			string(t.Side),
			formatPrice(t.EntryPrice),
			formatPrice(t.ExitPrice),
			fmt.Sprintf("$%.2f", t.PnL),
			signedPct(t.PnLPct),
			fmt.Sprintf("$%.2f", t.Fees),
			string(t.CloseReason),
			formatHeld(t.HoldingTime(time.Time{})),
		)
	}
	tbl.Render()
}

// --- helpers ---

func signedPct(frac float64) string {
	return fmt.Sprintf("%+.2f%%", frac*100)
}

// formatPrice ajusta los decimales al orden de magnitud del precio.
func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.6f", p)
	}
}

func formatQty(q float64) string {
	s := fmt.Sprintf("%.6f", q)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func formatHeld(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
