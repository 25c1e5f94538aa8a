package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

const namespace = "papertrader"

// Recorder implementa ports.CycleObserver exportando el estado del engine
// como métricas de Prometheus. Usa su propio registry, no el global.
type Recorder struct {
	reg *prometheus.Registry

	cycles         prometheus.Counter
	cycleDuration  prometheus.Histogram
	providerErrors prometheus.Counter
	events         *prometheus.CounterVec
	closes         *prometheus.CounterVec
	declines       *prometheus.CounterVec
	realizedPnL    prometheus.Counter
	realizedLoss   prometheus.Counter

	balance       prometheus.Gauge
	available     prometheus.Gauge
	openPositions prometheus.Gauge
	drawdown      prometheus.Gauge
	maxDrawdown   prometheus.Gauge
	dailyPnL      prometheus.Gauge
	dailyTrades   prometheus.Gauge
	entriesPaused prometheus.Gauge
}

// NewRecorder registra todas las métricas en un registry nuevo.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total", Help: "Orchestrator ticks completed",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds", Help: "Wall time of one tick",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		providerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_errors_total", Help: "Per-symbol market data failures",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trade_events_total", Help: "Trade events by type and side",
		}, []string{"type", "side"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_closed_total", Help: "Closed trades by close reason",
		}, []string{"reason"}),
		declines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entries_declined_total", Help: "Declined entries by reason",
		}, []string{"reason"}),
		realizedPnL: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "realized_profit_usd_total", Help: "Sum of net P&L of winning trades",
		}),
		realizedLoss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "realized_loss_usd_total", Help: "Sum of net P&L of losing trades, as a positive number",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "balance_usd", Help: "Current balance",
		}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "available_balance_usd", Help: "Balance not locked in open positions",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_positions", Help: "Open trades",
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "drawdown_ratio", Help: "Current drawdown from peak balance",
		}),
		maxDrawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_drawdown_ratio", Help: "Worst drawdown seen",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "daily_pnl_usd", Help: "Realized P&L of the current trading day",
		}),
		dailyTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "daily_trades", Help: "Trades opened in the current trading day",
		}),
		entriesPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "entries_paused", Help: "1 while the daily governor blocks new entries",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cycles, r.cycleDuration, r.providerErrors,
		r.events, r.closes, r.declines, r.realizedPnL, r.realizedLoss,
		r.balance, r.available, r.openPositions, r.drawdown, r.maxDrawdown,
		r.dailyPnL, r.dailyTrades, r.entriesPaused,
	)
	return r
}

// ObserveCycle actualiza contadores y gauges con el reporte del tick.
func (r *Recorder) ObserveCycle(rep domain.CycleReport) {
	r.cycles.Inc()
	r.cycleDuration.Observe(rep.Duration.Seconds())
	r.providerErrors.Add(float64(rep.ProviderErrors))

	for _, ev := range rep.Events {
		r.events.WithLabelValues(string(ev.Type), string(ev.Side)).Inc()
		switch ev.Type {
		case domain.EventDeclined:
			r.declines.WithLabelValues(string(ev.Decline)).Inc()
		case domain.EventClosed:
			if ev.Trade == nil {
				continue
			}
			r.closes.WithLabelValues(string(ev.Trade.CloseReason)).Inc()
			if ev.Trade.PnL > 0 {
				r.realizedPnL.Add(ev.Trade.PnL)
			} else {
				r.realizedLoss.Add(-ev.Trade.PnL)
			}
		}
	}

	s := rep.Summary
	r.balance.Set(s.Balance)
	r.available.Set(s.AvailableBalance)
	r.openPositions.Set(float64(s.OpenPositions))
	r.drawdown.Set(s.CurrentDrawdown)
	r.maxDrawdown.Set(s.MaxDrawdown)
	r.dailyPnL.Set(s.DailyPnL)
	r.dailyTrades.Set(float64(s.DailyTrades))
	if rep.EntriesPaused {
		r.entriesPaused.Set(1)
	} else {
		r.entriesPaused.Set(0)
	}
}

// Registry expone el registry para tests y collectors extra.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler sirve /metrics en formato de exposición de Prometheus.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
