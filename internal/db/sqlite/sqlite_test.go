package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/features/members"
	"serotonyl.ru/currency-bot/internal/ledger"
)

const chat = int64(-1001)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)

	_, err = Open(ctx, "")
	assert.Error(t, err)
}

func TestLedgerRoundTrip(t *testing.T) {
	db := openTemp(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	store := ledger.NewStore(ledger.DefaultCooldown)
	flusher := ledger.NewFlusher(store, repo)
	require.NoError(t, flusher.Load(ctx))

	now := time.Unix(1_700_000_000, 250_000_000)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error {
		if err := tx.CreateCurrency(chat, "Gold", "🪙"); err != nil {
			return err
		}
		if err := tx.CreateCurrency(chat, "Gems", "<:gem:123>"); err != nil {
			return err
		}
		_, _ = tx.AdjustBalance(chat, "Gold", 1, 40)
		_, _ = tx.AdjustBalance(chat, "Gems", 2, 7)
		_, _ = tx.AdjustPot(chat, "Gold", 5)
		_ = tx.AddItem(chat, 1, "coffee", 2)
		_ = tx.AddBuff(chat, 2, ledger.BuffShield)
		_ = tx.SetLastUsed(chat, 1, ledger.ActionHomework, now)
		return tx.SetCooldown(chat, ledger.ActionRob, 0)
	}))
	require.NoError(t, flusher.Flush(ctx))

	// Точечные изменения: переименование и обнуление
	require.NoError(t, store.Update(func(tx *ledger.Tx) error {
		if err := tx.RenameCurrency(chat, "Gems", "Crystals"); err != nil {
			return err
		}
		_, err := tx.RemoveBuff(chat, 2, ledger.BuffShield)
		return err
	}))
	require.NoError(t, flusher.Flush(ctx))

	restored := ledger.NewStore(ledger.DefaultCooldown)
	require.NoError(t, ledger.NewFlusher(restored, repo).Load(ctx))

	assert.Equal(t, store.Snapshot(), restored.Snapshot())
	require.NoError(t, restored.View(func(tx *ledger.Tx) error {
		assert.Equal(t, int64(7), tx.Balance(chat, "Crystals", 2))
		assert.False(t, tx.HasBuff(chat, 2, ledger.BuffShield))
		assert.Equal(t, time.Duration(0), tx.Cooldown(chat, ledger.ActionRob))
		assert.Equal(t, ledger.DefaultCooldown, tx.Cooldown(chat, ledger.ActionHomework))
		assert.Equal(t, now.Unix(), tx.LastUsed(chat, 1, ledger.ActionHomework).Unix())
		return nil
	}))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM balances WHERE currency = 'Gems'").Scan(&n))
	assert.Zero(t, n)
	var rob sql.NullInt64
	var homework sql.NullInt64
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT homework_cooldown, rob_cooldown FROM guild_settings WHERE guild_id = ?", chat).Scan(&homework, &rob))
	assert.False(t, homework.Valid)
	assert.True(t, rob.Valid)
}

func TestApplyIsAtomic(t *testing.T) {
	db := openTemp(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	err := repo.Apply(ctx, &ledger.Changes{
		Currencies: ledger.TableChanges[ledger.CurrencyRow]{
			Upserts: []ledger.CurrencyRow{{CommunityID: chat, Name: "Gold", Emoji: "🪙"}},
		},
		Balances: ledger.TableChanges[ledger.BalanceRow]{
			Upserts: []ledger.BalanceRow{{CommunityID: chat, UserID: 1, Currency: "Gold", Amount: -1}},
		},
	})
	require.Error(t, err)

	snap, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Currencies)
	assert.NoError(t, repo.Apply(ctx, nil))
}

func TestMembersRepository(t *testing.T) {
	repo := NewMembersRepository(openTemp(t))
	ctx := context.Background()
	updated := time.Unix(1_700_000_000, 0).UTC()

	_, err := repo.GetByUserID(ctx, 1)
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	require.NoError(t, repo.Upsert(ctx, &members.Member{UserID: 1, Username: "Alice", FirstName: "Alice", UpdatedAt: updated}))
	require.NoError(t, repo.Upsert(ctx, &members.Member{UserID: 2, FirstName: "Helper", IsBot: true, UpdatedAt: updated}))

	m, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.UserID)
	assert.Equal(t, updated, m.UpdatedAt)

	m, err = repo.GetByUserID(ctx, 2)
	require.NoError(t, err)
	assert.True(t, m.IsBot)

	require.NoError(t, repo.Upsert(ctx, &members.Member{UserID: 1, Username: "alice_new", UpdatedAt: updated}))
	_, err = repo.GetByUsername(ctx, "Alice")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}
