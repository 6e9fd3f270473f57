package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/currency-bot/internal/common"
)

type memPersister struct {
	loaded  *Snapshot
	applied []*Changes
	err     error
}

func (m *memPersister) LoadAll(context.Context) (*Snapshot, error) { return m.loaded, nil }

func (m *memPersister) Apply(_ context.Context, c *Changes) error {
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, c)
	return nil
}

func TestDiffTargetedChanges(t *testing.T) {
	prev := &Snapshot{
		Currencies: []CurrencyRow{{chat, "Gold", "🪙"}},
		Balances:   []BalanceRow{{chat, 1, "Gold", 10}, {chat, 2, "Gold", 5}},
	}
	next := &Snapshot{
		Currencies: []CurrencyRow{{chat, "Gold", "🪙"}},
		Balances:   []BalanceRow{{chat, 1, "Gold", 4}, {chat, 3, "Gold", 6}},
		Jackpots:   []JackpotRow{{chat, "Gold", 5}},
	}

	c := Diff(prev, next)
	assert.Empty(t, c.Currencies.Upserts)
	assert.Equal(t, []BalanceRow{{chat, 1, "Gold", 4}, {chat, 3, "Gold", 6}}, c.Balances.Upserts)
	assert.Equal(t, []BalanceRow{{chat, 2, "Gold", 5}}, c.Balances.Deletes)
	assert.Equal(t, []JackpotRow{{chat, "Gold", 5}}, c.Jackpots.Upserts)
	assert.False(t, c.Empty())
	assert.True(t, Diff(next, next).Empty())
	assert.True(t, Diff(nil, nil).Empty())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := newStoreWithGold(t)
	now := time.Unix(1_700_000_000, 500_000_000)
	require.NoError(t, s.Update(func(tx *Tx) error {
		_, _ = tx.AdjustBalance(chat, "Gold", 1, 10)
		_, _ = tx.AdjustPot(chat, "Gold", 3)
		_ = tx.AddItem(chat, 1, "coffee", 2)
		_ = tx.AddBuff(chat, 2, BuffShield)
		_ = tx.SetLastUsed(chat, 1, ActionRob, now)
		return tx.SetCooldown(chat, ActionRob, 90*time.Second)
	}))

	snap := s.Snapshot()
	require.Len(t, snap.Settings, 1)
	assert.Equal(t, SettingsRow{chat, Unset, Unset, 90}, snap.Settings[0])

	// Баланс несуществующей валюты при загрузке отбрасывается
	snap.Balances = append(snap.Balances, BalanceRow{chat, 1, "Ghost", 99})

	restored := NewStore(0)
	restored.Restore(snap)
	require.NoError(t, restored.View(func(tx *Tx) error {
		assert.Equal(t, int64(10), tx.Balance(chat, "Gold", 1))
		assert.Zero(t, tx.Balance(chat, "Ghost", 1))
		assert.Equal(t, int64(3), tx.Pot(chat, "Gold"))
		assert.Equal(t, int64(2), tx.Quantity(chat, 1, "coffee"))
		assert.True(t, tx.HasBuff(chat, 2, BuffShield))
		assert.Equal(t, 90*time.Second, tx.Cooldown(chat, ActionRob))
		assert.Equal(t, DefaultCooldown, tx.Cooldown(chat, ActionHomework))
		assert.WithinDuration(t, now, tx.LastUsed(chat, 1, ActionRob), time.Microsecond)
		return nil
	}))
}

func TestFlusherSendsOnlyDifferences(t *testing.T) {
	p := &memPersister{loaded: &Snapshot{
		Currencies: []CurrencyRow{{chat, "Gold", "🪙"}},
		Balances:   []BalanceRow{{chat, 1, "Gold", 10}},
	}}
	s := NewStore(0)
	f := NewFlusher(s, p)
	ctx := context.Background()

	require.NoError(t, f.Load(ctx))
	require.NoError(t, f.Flush(ctx))
	assert.Empty(t, p.applied, "без изменений писать нечего")

	require.NoError(t, s.Update(func(tx *Tx) error {
		_, err := tx.AdjustBalance(chat, "Gold", 2, 5)
		return err
	}))
	require.NoError(t, f.Flush(ctx))
	require.Len(t, p.applied, 1)
	assert.Equal(t, []BalanceRow{{chat, 2, "Gold", 5}}, p.applied[0].Balances.Upserts)
	assert.Empty(t, p.applied[0].Currencies.Upserts)
}

func TestFlusherFailureKeepsMemoryAndRetries(t *testing.T) {
	p := &memPersister{}
	s := NewStore(0)
	f := NewFlusher(s, p)
	ctx := context.Background()
	require.NoError(t, f.Load(ctx))

	require.NoError(t, s.Update(func(tx *Tx) error { return tx.CreateCurrency(chat, "Gold", "🪙") }))
	p.err = errors.New("connection refused")

	err := f.Flush(ctx)
	require.ErrorIs(t, err, common.ErrSaveFailed)
	assert.Equal(t, common.KindPersistence, common.KindOf(err))
	assert.True(t, f.Dirty())
	assert.Len(t, s.Snapshot().Currencies, 1)

	p.err = nil
	require.NoError(t, f.Flush(ctx))
	assert.False(t, f.Dirty())
	require.Len(t, p.applied, 1)
	assert.Equal(t, []CurrencyRow{{chat, "Gold", "🪙"}}, p.applied[0].Currencies.Upserts)
}
