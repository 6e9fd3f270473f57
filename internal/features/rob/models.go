// Package rob — ограбление другого участника с риском штрафа.
package rob

import "serotonyl.ru/currency-bot/internal/ledger"

const (
	// MaxTake — верхняя граница добычи и штрафа.
	MaxTake int64 = 50
	// SuccessChance — вероятность удачного ограбления.
	SuccessChance = 0.5
)

// Result — итог попытки ограбления.
type Result struct {
	// Blocked: цель была под щитом, щит сгорел, кулдаун не начат.
	Blocked bool

	Currency ledger.Currency
	Success  bool
	Amount   int64 // добыча (при успехе) или разыгранная сумма
	Penalty  int64 // штраф в джекпот (при провале)

	ActorBalance  int64
	TargetBalance int64
	Pot           int64
}
