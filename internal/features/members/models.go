// Package members запоминает участников чатов: имя, @username и признак бота.
// По этим данным команды находят цель по @username, а топы показывают имена.
package members

import (
	"context"
	"time"
)

// Member — участник, которого бот видел в чатах.
type Member struct {
	UserID    int64     `db:"user_id"`    // Telegram user ID (уникальный)
	Username  string    `db:"username"`   // @username без @ (может быть пустым)
	FirstName string    `db:"first_name"` // Имя пользователя
	LastName  string    `db:"last_name"`  // Фамилия (может быть пустой)
	IsBot     bool      `db:"is_bot"`     // Бот или системный аккаунт
	UpdatedAt time.Time `db:"updated_at"` // Последнее обновление записи
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}

// sameAs — данные не изменились с прошлого раза.
func (m *Member) sameAs(o *Member) bool {
	return m.UserID == o.UserID && m.Username == o.Username &&
		m.FirstName == o.FirstName && m.LastName == o.LastName && m.IsBot == o.IsBot
}

// Repository хранит участников. Реализации: internal/db/postgres и internal/db/sqlite.
// Если участник не найден, Get* возвращают common.ErrUserNotFound.
type Repository interface {
	Upsert(ctx context.Context, m *Member) error
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	// GetByUsername ищет без учёта регистра, username без @.
	GetByUsername(ctx context.Context, username string) (*Member, error)
}
