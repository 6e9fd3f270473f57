package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/features/members"
)

// MembersRepository реализует members.Repository поверх SQLite.
type MembersRepository struct {
	db *sql.DB
}

// NewMembersRepository создаёт репозиторий участников.
func NewMembersRepository(db *sql.DB) *MembersRepository {
	return &MembersRepository{db: db}
}

var _ members.Repository = (*MembersRepository)(nil)

// Upsert добавляет участника или обновляет его данные.
func (r *MembersRepository) Upsert(ctx context.Context, m *members.Member) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (user_id, username, first_name, last_name, is_bot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET username = excluded.username,
		    first_name = excluded.first_name,
		    last_name = excluded.last_name,
		    is_bot = excluded.is_bot,
		    updated_at = excluded.updated_at
	`, m.UserID, m.Username, m.FirstName, m.LastName, m.IsBot, m.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

// GetByUserID: если не найден — common.ErrUserNotFound.
func (r *MembersRepository) GetByUserID(ctx context.Context, userID int64) (*members.Member, error) {
	return r.getOne(ctx, `
		SELECT user_id, username, first_name, last_name, is_bot, updated_at
		FROM members WHERE user_id = ?`, userID)
}

// GetByUsername ищет без учёта регистра.
func (r *MembersRepository) GetByUsername(ctx context.Context, username string) (*members.Member, error) {
	return r.getOne(ctx, `
		SELECT user_id, username, first_name, last_name, is_bot, updated_at
		FROM members WHERE username = ? COLLATE NOCASE
		ORDER BY updated_at DESC LIMIT 1`, username)
}

func (r *MembersRepository) getOne(ctx context.Context, query string, arg any) (*members.Member, error) {
	var (
		m       members.Member
		updated int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.IsBot, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения участника (%v): %w", arg, err)
	}
	m.UpdatedAt = time.Unix(updated, 0).UTC()
	return &m, nil
}
