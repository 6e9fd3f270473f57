// Package admin реализует управление валютами сообщества и вход в админку по паролю.
// models.go описывает запрос на удаление валюты и сессии администраторов.
package admin

import (
	"time"

	"serotonyl.ru/currency-bot/internal/common"
)

// DefaultRemovalTimeout — сколько ждём подтверждения удаления валюты.
const DefaultRemovalTimeout = 30 * time.Second

// MaxLoginFailures — столько неудачных попыток за LoginWindow блокируют вход.
const (
	MaxLoginFailures = 3
	LoginWindow      = time.Hour
)

// RemovalStatus — состояние запроса на удаление.
type RemovalStatus int

const (
	RemovalPending RemovalStatus = iota
	RemovalConfirmed
	RemovalCancelled
	RemovalExpired
)

func (s RemovalStatus) String() string {
	switch s {
	case RemovalPending:
		return "pending"
	case RemovalConfirmed:
		return "confirmed"
	case RemovalCancelled:
		return "cancelled"
	case RemovalExpired:
		return "expired"
	}
	return "unknown"
}

// Removal — запрос на удаление валюты, ждущий подтверждения автора.
type Removal struct {
	ID          string
	CommunityID int64
	Currency    string
	Emoji       string
	Requester   int64
	Deadline    time.Time
	Status      RemovalStatus

	// Сколько монет сгорело при удалении
	Burned int64

	MessageID int
}

// IsExpired — дедлайн прошёл, а запрос ещё открыт.
func (r *Removal) IsExpired(now time.Time) bool {
	return r.Status == RemovalPending && !now.Before(r.Deadline)
}

// check проверяет, может ли userID закрыть запрос. Чужие нажатия
// отклоняются до проверки дедлайна и состояние не трогают.
func (r *Removal) check(userID int64, now time.Time) error {
	if userID != r.Requester {
		return common.ErrNotRequester
	}
	if r.IsExpired(now) {
		r.Status = RemovalExpired
	}
	switch r.Status {
	case RemovalPending:
		return nil
	case RemovalExpired:
		return common.ErrProposalExpired
	default:
		return common.ErrProposalClosed
	}
}

// Confirm переводит запрос в подтверждённое состояние.
func (r *Removal) Confirm(userID int64, now time.Time) error {
	if err := r.check(userID, now); err != nil {
		return err
	}
	r.Status = RemovalConfirmed
	return nil
}

// Cancel отменяет запрос.
func (r *Removal) Cancel(userID int64, now time.Time) error {
	if err := r.check(userID, now); err != nil {
		return err
	}
	r.Status = RemovalCancelled
	return nil
}

// session — активная сессия администратора, ключ — user_id.
type session struct {
	expiresAt time.Time
}
