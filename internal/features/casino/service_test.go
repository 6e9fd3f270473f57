package casino

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/features/economy"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/testutil"
)

const (
	chat  = int64(-1001)
	alice = int64(1)
	bob   = int64(2)
)

func setup(t *testing.T) (*Service, *ledger.Store, *testutil.ScriptedRand) {
	t.Helper()
	store := ledger.NewStore(0)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error {
		if err := tx.CreateCurrency(chat, "Gold", "🪙"); err != nil {
			return err
		}
		return tx.CreateCurrency(chat, "Gems", "💎")
	}))
	rng := &testutil.ScriptedRand{}
	return NewService(store, &testutil.Saver{}, rng, nil), store, rng
}

func read(store *ledger.Store, fn func(tx *ledger.Tx)) {
	_ = store.View(func(tx *ledger.Tx) error {
		fn(tx)
		return nil
	})
}

func TestGambleLossFeedsPot(t *testing.T) {
	svc, store, rng := setup(t)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error { return tx.SetBalance(chat, "Gold", alice, 100) }))
	rng.Floats = []float64{0.7}

	res, err := svc.Gamble(context.Background(), common.Request{CommunityID: chat, UserID: alice, Currency: "Gold", Amount: 30})
	require.NoError(t, err)
	assert.False(t, res.Won)
	assert.Equal(t, int64(70), res.Balance)
	assert.Equal(t, int64(30), res.Pot)
	read(store, func(tx *ledger.Tx) {
		assert.Equal(t, int64(70), tx.Balance(chat, "Gold", alice))
		assert.Equal(t, int64(30), tx.Pot(chat, "Gold"))
	})
}

func TestGambleWinWithoutJackpot(t *testing.T) {
	svc, store, rng := setup(t)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error {
		_, err := tx.AdjustPot(chat, "Gold", 40)
		if err != nil {
			return err
		}
		return tx.SetBalance(chat, "Gold", alice, 100)
	}))
	// Выигрыш, но 0.3 > min(0.002*50, 0.5) = 0.1
	rng.Floats = []float64{0.2, 0.3}

	res, err := svc.Gamble(context.Background(), common.Request{CommunityID: chat, UserID: alice, Currency: "Gold", Amount: 50})
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.False(t, res.JackpotTriggered())
	assert.Equal(t, int64(150), res.Balance)
	assert.Equal(t, int64(40), res.Pot)
}

func TestGambleJackpotSweepsAllPots(t *testing.T) {
	svc, store, rng := setup(t)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error {
		if _, err := tx.AdjustPot(chat, "Gold", 40); err != nil {
			return err
		}
		if _, err := tx.AdjustPot(chat, "Gems", 7); err != nil {
			return err
		}
		return tx.SetBalance(chat, "Gold", alice, 10)
	}))
	rng.Floats = []float64{0.1, 0.01} // 0.01 < 0.002*10

	res, err := svc.Gamble(context.Background(), common.Request{CommunityID: chat, UserID: alice, Currency: "gold", Amount: 10})
	require.NoError(t, err)
	require.True(t, res.JackpotTriggered())
	assert.Equal(t, int64(60), res.Balance) // 10 + 10 + 40
	assert.Zero(t, res.Pot)
	assert.Equal(t, []ledger.Holding{
		{Currency: "Gems", Emoji: "💎", Amount: 7},
		{Currency: "Gold", Emoji: "🪙", Amount: 40},
	}, res.Jackpot)

	read(store, func(tx *ledger.Tx) {
		assert.Equal(t, int64(7), tx.Balance(chat, "Gems", alice))
		assert.Empty(t, tx.Pots(chat))
	})
	assert.Empty(t, svc.Jackpots(chat))
}

func TestGambleRejections(t *testing.T) {
	svc, store, _ := setup(t)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error { return tx.SetBalance(chat, "Gold", alice, 5) }))
	ctx := context.Background()

	_, err := svc.Gamble(ctx, common.Request{CommunityID: chat, UserID: alice, Currency: "Gold", Amount: 0})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
	_, err = svc.Gamble(ctx, common.Request{CommunityID: chat, UserID: alice, Currency: "Silver", Amount: 1})
	assert.ErrorIs(t, err, common.ErrCurrencyNotFound)
	_, err = svc.Gamble(ctx, common.Request{CommunityID: chat, UserID: alice, Currency: "Gold", Amount: 6})
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
}

func TestJackpotChance(t *testing.T) {
	assert.InDelta(t, 0.002, JackpotChance(1), 1e-12)
	assert.InDelta(t, 0.2, JackpotChance(100), 1e-12)
	assert.Equal(t, JackpotMaxChance, JackpotChance(1000))
}

// Баланс плюс джекпот валюты меняются ровно на ±ставку.
func TestGambleConservation(t *testing.T) {
	store := ledger.NewStore(0)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error {
		if err := tx.CreateCurrency(chat, "Gold", "🪙"); err != nil {
			return err
		}
		return tx.SetBalance(chat, "Gold", alice, 1000)
	}))
	svc := NewService(store, &testutil.Saver{}, common.GlobalRand{}, nil)

	for i := 0; i < 300; i++ {
		var before, pot int64
		read(store, func(tx *ledger.Tx) {
			before, pot = tx.Balance(chat, "Gold", alice), tx.Pot(chat, "Gold")
		})
		if before == 0 {
			break
		}
		bet := min(before, int64(1+i%20))
		res, err := svc.Gamble(context.Background(), common.Request{CommunityID: chat, UserID: alice, Currency: "Gold", Amount: bet})
		require.NoError(t, err)

		switch {
		case !res.Won:
			assert.Equal(t, before-bet, res.Balance)
			assert.Equal(t, pot+bet, res.Pot)
		case res.JackpotTriggered():
			assert.Equal(t, before+bet+pot, res.Balance)
			assert.Zero(t, res.Pot)
		default:
			assert.Equal(t, before+bet, res.Balance)
			assert.Equal(t, pot, res.Pot)
		}
		assert.GreaterOrEqual(t, res.Balance, int64(0))
	}
}

// Домашка, перевод и ставки в одном чате.
func TestHomeworkGiveGambleScenario(t *testing.T) {
	store := ledger.NewStore(0)
	require.NoError(t, store.Update(func(tx *ledger.Tx) error { return tx.CreateCurrency(chat, "Gold", "🪙") }))
	saver := &testutil.Saver{}
	eco := economy.NewService(store, saver, common.GlobalRand{}, nil)
	casino := NewService(store, saver, common.GlobalRand{}, nil)
	ctx := context.Background()
	req := common.Request{CommunityID: chat, UserID: alice}

	earned, err := eco.Earn(ctx, req, ledger.ActionHomework)
	require.NoError(t, err)
	a := earned.Amount
	require.True(t, a >= 1 && a <= 10)

	_, err = eco.Earn(ctx, req, ledger.ActionHomework)
	var cdErr *common.CooldownError
	require.ErrorAs(t, err, &cdErr)
	assert.InDelta(t, float64(6*time.Hour), float64(cdErr.Remaining), float64(time.Second))

	give, err := eco.Give(ctx, common.Request{CommunityID: chat, UserID: alice, TargetUserID: bob, Currency: "Gold", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, a-1, give.SenderBalance)
	assert.Equal(t, int64(1), give.ReceiverBalance)

	for i := 0; i < 50; i++ {
		var bal int64
		read(store, func(tx *ledger.Tx) { bal = tx.Balance(chat, "Gold", alice) })
		if bal == 0 {
			break
		}
		res, err := casino.Gamble(ctx, common.Request{CommunityID: chat, UserID: alice, Currency: "Gold", Amount: bal})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Balance, int64(0))
	}
}
