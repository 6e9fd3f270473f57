package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/currency-bot/internal/common"
)

const chat = int64(-100)

func newStoreWithGold(t *testing.T) *Store {
	t.Helper()
	s := NewStore(0)
	require.NoError(t, s.Update(func(tx *Tx) error {
		return tx.CreateCurrency(chat, "Gold", "🪙")
	}))
	return s
}

func TestCreateCurrencyValidation(t *testing.T) {
	s := NewStore(0)
	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.CreateCurrency(chat, "Gold", "🪙"))
		require.NoError(t, tx.CreateCurrency(chat, "Gems", "<a:gem:123456>"))
		assert.ErrorIs(t, tx.CreateCurrency(chat, "Gold", "💰"), common.ErrCurrencyExists)
		assert.ErrorIs(t, tx.CreateCurrency(chat, "Bad", "abc"), common.ErrInvalidEmoji)
		assert.ErrorIs(t, tx.CreateCurrency(chat, "Bad", ""), common.ErrInvalidEmoji)
		assert.ErrorIs(t, tx.CreateCurrency(chat, " Bad", "💰"), common.ErrInvalidName)
		assert.ErrorIs(t, tx.CreateCurrency(chat, "Two Words", "💰"), common.ErrInvalidName)
		// Другое сообщество — своё пространство имён
		require.NoError(t, tx.CreateCurrency(chat+1, "Gold", "💰"))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.View(func(tx *Tx) error {
		names := []string{}
		for _, c := range tx.Currencies(chat) {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"Gems", "Gold"}, names)
		return nil
	}))
}

func TestAdjustBalanceNeverNegative(t *testing.T) {
	s := newStoreWithGold(t)
	err := s.Update(func(tx *Tx) error {
		bal, err := tx.AdjustBalance(chat, "Gold", 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), bal)

		_, err = tx.AdjustBalance(chat, "Gold", 1, -6)
		assert.ErrorIs(t, err, common.ErrNegativeState)
		assert.Equal(t, int64(5), tx.Balance(chat, "Gold", 1))

		_, err = tx.AdjustBalance(chat, "Silver", 1, 1)
		assert.ErrorIs(t, err, common.ErrCurrencyNotFound)

		_, err = tx.AdjustPot(chat, "Gold", -1)
		assert.ErrorIs(t, err, common.ErrNegativeState)

		assert.ErrorIs(t, tx.SetBalance(chat, "Gold", 1, -1), common.ErrNegativeBalance)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := newStoreWithGold(t)
	require.NoError(t, s.Update(func(tx *Tx) error {
		_, err := tx.AdjustBalance(chat, "Gold", 1, 100)
		return err
	}))
	before := s.Snapshot()
	version := s.Version()

	boom := errors.New("boom")
	err := s.Update(func(tx *Tx) error {
		if _, err := tx.AdjustBalance(chat, "Gold", 1, -40); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(chat, "Gold", 2, 40); err != nil {
			return err
		}
		if err := tx.AddBuff(chat, 2, BuffShield); err != nil {
			return err
		}
		if err := tx.RenameCurrency(chat, "Gold", "Coins"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, version, s.Version())
}

func TestUpdateRollsBackOnPanic(t *testing.T) {
	s := newStoreWithGold(t)
	before := s.Snapshot()

	assert.Panics(t, func() {
		_ = s.Update(func(tx *Tx) error {
			_, _ = tx.AdjustBalance(chat, "Gold", 1, 10)
			panic("oops")
		})
	})
	assert.Equal(t, before, s.Snapshot())

	// Мьютекс отпущен
	require.NoError(t, s.View(func(tx *Tx) error { return nil }))
}

func TestViewIsReadOnly(t *testing.T) {
	s := newStoreWithGold(t)
	err := s.View(func(tx *Tx) error {
		_, err := tx.AdjustBalance(chat, "Gold", 1, 1)
		return err
	})
	assert.ErrorIs(t, err, common.ErrReadOnly)
}

func TestRenameCurrencyKeepsBalancesAndPot(t *testing.T) {
	s := newStoreWithGold(t)
	require.NoError(t, s.Update(func(tx *Tx) error {
		require.NoError(t, tx.CreateCurrency(chat, "Gems", "💎"))
		_, _ = tx.AdjustBalance(chat, "Gold", 1, 7)
		_, _ = tx.AdjustBalance(chat, "Gold", 2, 3)
		_, _ = tx.AdjustPot(chat, "Gold", 11)
		return nil
	}))

	err := s.Update(func(tx *Tx) error { return tx.RenameCurrency(chat, "Gold", "Gems") })
	assert.ErrorIs(t, err, common.ErrCurrencyExists)
	err = s.Update(func(tx *Tx) error { return tx.RenameCurrency(chat, "Nope", "X") })
	assert.ErrorIs(t, err, common.ErrCurrencyNotFound)

	require.NoError(t, s.Update(func(tx *Tx) error { return tx.RenameCurrency(chat, "Gold", "Coins") }))
	require.NoError(t, s.View(func(tx *Tx) error {
		c, ok := tx.Currency(chat, "Coins")
		require.True(t, ok)
		assert.Equal(t, "🪙", c.Emoji)
		assert.Equal(t, int64(7), tx.Balance(chat, "Coins", 1))
		assert.Equal(t, int64(3), tx.Balance(chat, "Coins", 2))
		assert.Equal(t, int64(11), tx.Pot(chat, "Coins"))
		assert.Zero(t, tx.Balance(chat, "Gold", 1))
		_, ok = tx.Currency(chat, "Gold")
		assert.False(t, ok)
		return nil
	}))
}

func TestDeleteCurrencyBurnsEverything(t *testing.T) {
	s := newStoreWithGold(t)
	var burned int64
	require.NoError(t, s.Update(func(tx *Tx) error {
		_, _ = tx.AdjustBalance(chat, "Gold", 1, 7)
		_, _ = tx.AdjustBalance(chat, "Gold", 2, 3)
		_, _ = tx.AdjustPot(chat, "Gold", 5)
		var err error
		burned, err = tx.DeleteCurrency(chat, "Gold")
		return err
	}))
	assert.Equal(t, int64(15), burned)

	snap := s.Snapshot()
	assert.Empty(t, snap.Currencies)
	assert.Empty(t, snap.Balances)
	assert.Empty(t, snap.Jackpots)
}

func TestHoldersOrdering(t *testing.T) {
	s := newStoreWithGold(t)
	require.NoError(t, s.Update(func(tx *Tx) error {
		_, _ = tx.AdjustBalance(chat, "Gold", 3, 10)
		_, _ = tx.AdjustBalance(chat, "Gold", 1, 10)
		_, _ = tx.AdjustBalance(chat, "Gold", 2, 30)
		return nil
	}))
	require.NoError(t, s.View(func(tx *Tx) error {
		assert.Equal(t, []Holder{{2, 30}, {1, 10}, {3, 10}}, tx.Holders(chat, "Gold"))
		return nil
	}))
}

func TestInventoryAndBuffs(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Update(func(tx *Tx) error {
		require.NoError(t, tx.AddItem(chat, 1, "coffee", 2))
		require.NoError(t, tx.RemoveItem(chat, 1, "coffee", 1))
		assert.Equal(t, int64(1), tx.Quantity(chat, 1, "coffee"))
		require.NoError(t, tx.RemoveItem(chat, 1, "coffee", 1))
		assert.Empty(t, tx.Inventory(chat, 1))
		assert.ErrorIs(t, tx.RemoveItem(chat, 1, "coffee", 1), common.ErrItemNotOwned)

		require.NoError(t, tx.AddBuff(chat, 1, BuffShield))
		assert.ErrorIs(t, tx.AddBuff(chat, 1, BuffShield), common.ErrBuffActive)
		removed, err := tx.RemoveBuff(chat, 1, BuffShield)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.False(t, tx.HasBuff(chat, 1, BuffShield))
		return nil
	}))
}

func TestCooldownSettings(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Update(func(tx *Tx) error {
		assert.Equal(t, DefaultCooldown, tx.Cooldown(chat, ActionRob))
		assert.ErrorIs(t, tx.SetCooldown(chat, ActionRob, -time.Second), common.ErrNegativeCooldown)
		assert.ErrorIs(t, tx.SetCooldown(chat, Action("nap"), time.Second), common.ErrUnknownAction)
		assert.ErrorIs(t, tx.SetCooldown(chat, ActionRob, 1500*time.Millisecond), common.ErrInvalidCooldown)
		assert.ErrorIs(t, tx.SetCooldown(chat, ActionRob, MaxCooldown+time.Second), common.ErrInvalidCooldown)
		assert.Equal(t, DefaultCooldown, tx.Cooldown(chat, ActionRob))
		require.NoError(t, tx.SetCooldown(chat, ActionRob, MaxCooldown))
		assert.Equal(t, MaxCooldown, tx.Cooldown(chat, ActionRob))
		require.NoError(t, tx.SetCooldown(chat, ActionRob, 0))
		assert.Equal(t, time.Duration(0), tx.Cooldown(chat, ActionRob))
		assert.Equal(t, time.Unix(0, 0), tx.LastUsed(chat, 1, ActionRob))
		return nil
	}))
}

func TestValidateEmoji(t *testing.T) {
	for _, ok := range []string{"🪙", "💎", "❤️", "👨‍👩‍👧", "<:gold:123>", "<a:spin:42>"} {
		assert.NoError(t, ValidateEmoji(ok), ok)
	}
	for _, bad := range []string{"", "gold", ":gold:", "<gold:1>", "🪙 🪙", "$"} {
		assert.ErrorIs(t, ValidateEmoji(bad), common.ErrInvalidEmoji, bad)
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" OfficeHours ")
	require.NoError(t, err)
	assert.Equal(t, ActionOfficeHours, a)
	_, err = ParseAction("nap")
	assert.ErrorIs(t, err, common.ErrUnknownAction)
}

func TestLookupCurrencyIgnoresCase(t *testing.T) {
	s := newStoreWithGold(t)
	require.NoError(t, s.View(func(tx *Tx) error {
		c, err := tx.RequireCurrency(chat, "gold")
		require.NoError(t, err)
		assert.Equal(t, "Gold", c.Name)
		_, err = tx.RequireCurrency(chat, "silver")
		assert.ErrorIs(t, err, common.ErrCurrencyNotFound)
		return nil
	}))
}

func TestCurrencyNamesUniqueIgnoringCase(t *testing.T) {
	s := newStoreWithGold(t)
	err := s.Update(func(tx *Tx) error { return tx.CreateCurrency(chat, "GOLD", "💎") })
	assert.ErrorIs(t, err, common.ErrCurrencyExists)

	require.NoError(t, s.Update(func(tx *Tx) error { return tx.CreateCurrency(chat, "Silver", "🥈") }))
	err = s.Update(func(tx *Tx) error { return tx.RenameCurrency(chat, "Silver", "gold") })
	assert.ErrorIs(t, err, common.ErrCurrencyExists)

	// смена регистра у той же валюты разрешена
	require.NoError(t, s.Update(func(tx *Tx) error { return tx.RenameCurrency(chat, "Gold", "GOLD") }))
	require.NoError(t, s.View(func(tx *Tx) error {
		c, err := tx.RequireCurrency(chat, "gold")
		require.NoError(t, err)
		assert.Equal(t, "GOLD", c.Name)
		return nil
	}))
}
