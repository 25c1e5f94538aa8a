package engine

import (
	"github.com/alejandrodnm/papertrader/internal/domain"
)

// Ledger is the single writer of the portfolio aggregate. Only the trade
// lifecycle calls reserve and settle.
type Ledger struct {
	p domain.Portfolio
}

// NewLedger seeds a ledger with the starting balance.
func NewLedger(initial float64) *Ledger {
	return &Ledger{p: domain.NewPortfolio(initial)}
}

// reserve locks notional plus entry fee out of the available balance.
// current_balance is untouched until the trade is settled.
func (l *Ledger) reserve(t domain.Trade) {
	l.p.AvailableBalance -= t.Notional() + t.Fees
	l.p.Positions[t.Symbol] += t.Quantity * t.Side.Sign()
}

// settle books a closed trade. entryFee is the amount reserved at open on top
// of the notional; t.PnL is already net of entry and exit fees.
func (l *Ledger) settle(t domain.Trade, entryFee float64) {
	l.p.CurrentBalance += t.PnL
	l.p.AvailableBalance += t.Notional() + entryFee + t.PnL

	l.p.Positions[t.Symbol] -= t.Quantity * t.Side.Sign()
	if !hasExposure(l.p.Positions[t.Symbol], t.Quantity) {
		delete(l.p.Positions, t.Symbol)
	}

	l.p.TotalPnL += t.PnL
	l.p.TotalTrades++
	if t.PnL > 0 {
		l.p.WinningTrades++
	} else {
		l.p.LosingTrades++
	}
	l.p.UpdateDrawdown()
}

// hasExposure treats float residue from the signed add/subtract as flat.
func hasExposure(pos, qty float64) bool {
	if pos < 0 {
		pos = -pos
	}
	return pos > qty*1e-9
}

// restore replaces the aggregate with a persisted snapshot; open trades are
// reserved again by the caller.
func (l *Ledger) restore(s domain.PortfolioSummary) {
	p := domain.NewPortfolio(s.InitialBalance)
	p.CurrentBalance = s.Balance
	p.AvailableBalance = s.Balance
	p.TotalPnL = s.TotalPnL
	p.TotalTrades = s.TotalTrades
	p.WinningTrades = s.WinningTrades
	p.LosingTrades = s.LosingTrades
	p.PeakBalance = s.PeakBalance
	p.MaxDrawdown = s.MaxDrawdown
	p.UpdateDrawdown()
	l.p = p
}

// Portfolio returns a copy of the aggregate.
func (l *Ledger) Portfolio() domain.Portfolio {
	p := l.p
	p.Positions = make(map[string]float64, len(l.p.Positions))
	for k, v := range l.p.Positions {
		p.Positions[k] = v
	}
	return p
}

func (l *Ledger) Balance() float64 { return l.p.CurrentBalance }
func (l *Ledger) Available() float64 { return l.p.AvailableBalance }
