package ledger

import (
	"time"

	"serotonyl.ru/currency-bot/internal/common"
)

// Gate — результат проверки кулдауна.
type Gate struct {
	Allowed   bool
	Remaining time.Duration
	Cooldown  time.Duration
}

// CheckCooldown: действие разрешено, если с lastUsed прошло не меньше cd.
func CheckCooldown(lastUsed time.Time, cd time.Duration, now time.Time) Gate {
	elapsed := now.Sub(lastUsed)
	if elapsed >= cd {
		return Gate{Allowed: true, Cooldown: cd}
	}
	return Gate{Remaining: cd - elapsed, Cooldown: cd}
}

// Err возвращает CooldownError для закрытого гейта.
func (g Gate) Err(action Action) error {
	if g.Allowed {
		return nil
	}
	return &common.CooldownError{Action: string(action), Remaining: g.Remaining}
}

// Gate проверяет кулдаун пользователя внутри транзакции.
func (tx *Tx) Gate(community, user int64, action Action, now time.Time) Gate {
	return CheckCooldown(tx.LastUsed(community, user, action), tx.Cooldown(community, action), now)
}

// Check — Gate вне транзакции. Состояние не меняет.
func (s *Store) Check(community, user int64, action Action, now time.Time) Gate {
	var g Gate
	_ = s.View(func(tx *Tx) error {
		g = tx.Gate(community, user, action, now)
		return nil
	})
	return g
}
