// Package metrics — счётчики Prometheus для экономики.
// Все методы безопасны для nil *Metrics: сервисы в тестах работают без метрик.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы действий
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeWin      = "win"
	OutcomeLoss     = "loss"
	OutcomeBlocked  = "blocked"
	OutcomeSaveFail = "save_failed"
)

// Metrics — набор счётчиков бота.
type Metrics struct {
	actions        *prometheus.CounterVec
	minted         *prometheus.CounterVec
	burned         *prometheus.CounterVec
	jackpotPayouts prometheus.Counter
	pendingExpired *prometheus.CounterVec
	flushFailures  prometheus.Counter
	registry       *prometheus.Registry
}

// New регистрирует счётчики в собственном реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_bot_actions_total",
			Help: "Economy actions by name and outcome",
		}, []string{"action", "outcome"}),
		minted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_bot_minted_total",
			Help: "Coins created by reason",
		}, []string{"reason"}),
		burned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_bot_burned_total",
			Help: "Coins destroyed by reason",
		}, []string{"reason"}),
		jackpotPayouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "currency_bot_jackpot_payouts_total",
			Help: "Jackpot triggers",
		}),
		pendingExpired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_bot_pending_expired_total",
			Help: "Trade proposals and removal confirmations that timed out",
		}, []string{"kind"}),
		flushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "currency_bot_flush_failures_total",
			Help: "Failed persistence flushes",
		}),
	}
}

// Action учитывает исход действия.
func (m *Metrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// Minted учитывает созданные монеты.
func (m *Metrics) Minted(reason string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.minted.WithLabelValues(reason).Add(float64(amount))
}

// Burned учитывает сожжённые монеты.
func (m *Metrics) Burned(reason string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.burned.WithLabelValues(reason).Add(float64(amount))
}

// JackpotPayout учитывает срабатывание джекпота.
func (m *Metrics) JackpotPayout() {
	if m == nil {
		return
	}
	m.jackpotPayouts.Inc()
}

// Expired учитывает истёкшие ожидания (trade, removal).
func (m *Metrics) Expired(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pendingExpired.WithLabelValues(kind).Add(float64(n))
}

// FlushFailed учитывает неудачное сохранение.
func (m *Metrics) FlushFailed() {
	if m == nil {
		return
	}
	m.flushFailures.Inc()
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
