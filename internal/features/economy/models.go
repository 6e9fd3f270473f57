// Package economy — базовые действия с валютами: заработок по кулдауну
// (homework, officehours), переводы, балансы и таблица лидеров.
package economy

import (
	"time"

	"serotonyl.ru/currency-bot/internal/ledger"
)

// Границы награды за homework/officehours (включительно).
const (
	EarnMin int64 = 1
	EarnMax int64 = 10
)

// LeaderboardSize — сколько мест показывает топ.
const LeaderboardSize = 10

// EarnResult — итог homework/officehours.
type EarnResult struct {
	Action   ledger.Action
	Currency ledger.Currency
	Amount   int64
	Balance  int64
	Next     time.Time // когда действие снова станет доступно
}

// GiveResult — итог перевода.
type GiveResult struct {
	Currency        ledger.Currency
	Amount          int64
	SenderBalance   int64
	ReceiverBalance int64
}

// BalanceView — балансы пользователя по всем валютам сообщества.
type BalanceView struct {
	UserID   int64
	Holdings []ledger.Holding
}

// Leaderboard — топ держателей валюты.
type Leaderboard struct {
	Currency ledger.Currency
	Holders  []ledger.Holder
}
