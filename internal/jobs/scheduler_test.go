package jobs

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/features/admin"
	"serotonyl.ru/currency-bot/internal/features/trade"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/metrics"
	"serotonyl.ru/currency-bot/internal/testutil"
)

const chat = int64(-1001)

type fakeFlusher struct {
	mu    sync.Mutex
	dirty bool
	err   error
	calls int
}

func (f *fakeFlusher) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.dirty = false
	return nil
}

func (f *fakeFlusher) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

func TestRetryFlush(t *testing.T) {
	m := metrics.New()
	f := &fakeFlusher{}
	s := NewScheduler(Specs{}, "", nil, nil, nil, nil, f, m)
	ctx := context.Background()

	s.RetryFlush(ctx)
	assert.Zero(t, f.calls)

	f.dirty = true
	f.err = errors.New("db down")
	s.RetryFlush(ctx)
	assert.Equal(t, 1, f.calls)
	assert.True(t, f.Dirty())

	f.err = nil
	s.RetryFlush(ctx)
	assert.Equal(t, 2, f.calls)
	assert.False(t, f.Dirty())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "currency_bot_flush_failures_total 1")
}

func TestExpirePendingNotifies(t *testing.T) {
	store := ledger.NewStore(0)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error {
		if err := tx.CreateCurrency(chat, "Gold", "🪙"); err != nil {
			return err
		}
		if err := tx.SetBalance(chat, "Gold", 1, 10); err != nil {
			return err
		}
		return tx.SetBalance(chat, "Gold", 2, 10)
	}))

	saver := &testutil.Saver{}
	sender := &testutil.Sender{}
	dir := &testutil.Directory{Users: map[int64]common.Target{}}

	trades := trade.NewManager(store, saver, nil, time.Nanosecond)
	tradeUI := trade.NewHandler(trades, sender, dir)
	p, err := trades.Propose(trade.ProposeRequest{
		CommunityID: chat, Initiator: 1, Counterparty: 2,
		GiveCurrency: "Gold", GiveAmount: 1, WantCurrency: "Gold", WantAmount: 1,
	})
	require.NoError(t, err)
	trades.SetMessage(p.ID, 11)

	adminSvc := admin.NewService(store, saver, nil, time.Nanosecond)
	removeUI := admin.NewHandler(adminSvc, nil, nil, sender, dir)
	r, err := adminSvc.RequestRemoval(chat, 1, "Gold")
	require.NoError(t, err)
	adminSvc.SetMessage(r.ID, 12)

	time.Sleep(time.Millisecond)
	s := NewScheduler(Specs{}, "Europe/Moscow", trades, tradeUI, adminSvc, removeUI, nil, nil)
	s.ExpirePending(context.Background())

	assert.Zero(t, trades.Pending())
	assert.Zero(t, adminSvc.PendingRemovals())
	require.Len(t, sender.Sent, 2)
	texts := sender.Texts()
	assert.Contains(t, texts[0], "Время на подтверждение вышло")
	assert.Contains(t, texts[1], "не подтверждено")

	require.NoError(t, store.View(func(tx *ledger.Tx) error {
		assert.True(t, tx.HasCurrencies(chat))
		assert.Equal(t, int64(10), tx.Balance(chat, "Gold", 1))
		return nil
	}))
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := &fakeFlusher{dirty: true}
	s := NewScheduler(Specs{Expire: "@every 1s", Flush: "@every 1s"}, "UTC", nil, nil, nil, nil, f, nil)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestStartRejectsBadSpec(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(Specs{Expire: "every five seconds", Flush: "@every 1s"}, "", nil, nil, nil, nil, nil, nil)
	assert.Error(t, s.Start(context.Background()))
}
