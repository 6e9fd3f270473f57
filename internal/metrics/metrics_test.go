package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Action("gamble", OutcomeWin)
	m.Action("gamble", OutcomeWin)
	m.Minted("earn", 7)
	m.Minted("earn", 0)
	m.Burned("shop", 25)
	m.JackpotPayout()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues("gamble", OutcomeWin)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.minted.WithLabelValues("earn")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.burned.WithLabelValues("shop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jackpotPayouts))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "currency_bot_actions_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Action("rob", OutcomeOK)
		m.Minted("earn", 1)
		m.Burned("shop", 1)
		m.JackpotPayout()
		m.Expired("trade", 1)
		m.FlushFailed()
	})
}
