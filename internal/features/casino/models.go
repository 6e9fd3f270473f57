// Package casino — ставка «орёл или решка» и общий джекпот сообщества.
package casino

import "serotonyl.ru/currency-bot/internal/ledger"

// Вероятности
const (
	WinChance = 0.5
	// Шанс джекпота при выигрыше: JackpotRatePerCoin за каждую монету ставки,
	// но не больше JackpotMaxChance.
	JackpotRatePerCoin = 0.002
	JackpotMaxChance   = 0.5
)

// GambleResult — итог ставки.
type GambleResult struct {
	Currency ledger.Currency
	Bet      int64
	Won      bool
	Balance  int64 // баланс валюты ставки после всех начислений
	Pot      int64 // джекпот валюты ставки после ставки

	// Выплаченные джекпоты по валютам, если он сработал.
	Jackpot []ledger.Holding
}

// JackpotTriggered сообщает, сработал ли джекпот.
func (r *GambleResult) JackpotTriggered() bool {
	return len(r.Jackpot) > 0
}

// JackpotChance — вероятность джекпота для выигрышной ставки.
func JackpotChance(bet int64) float64 {
	return min(JackpotRatePerCoin*float64(bet), JackpotMaxChance)
}
