// Package postgres — members.go работает с таблицей members.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/features/members"
)

// MembersRepository реализует members.Repository.
type MembersRepository struct {
	db *pgxpool.Pool
}

// NewMembersRepository создаёт репозиторий участников.
func NewMembersRepository(db *pgxpool.Pool) *MembersRepository {
	return &MembersRepository{db: db}
}

var _ members.Repository = (*MembersRepository)(nil)

// Upsert добавляет участника или обновляет его имя и username.
func (r *MembersRepository) Upsert(ctx context.Context, m *members.Member) error {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name, is_bot, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    is_bot = EXCLUDED.is_bot,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, m.UserID, m.Username, m.FirstName, m.LastName, m.IsBot, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return nil
}

// GetByUserID: если не найден — common.ErrUserNotFound.
func (r *MembersRepository) GetByUserID(ctx context.Context, userID int64) (*members.Member, error) {
	return r.getOne(ctx, `
		SELECT user_id, username, first_name, last_name, is_bot, updated_at
		FROM members
		WHERE user_id = $1
	`, userID)
}

// GetByUsername ищет без учёта регистра. Если не найден — common.ErrUserNotFound.
func (r *MembersRepository) GetByUsername(ctx context.Context, username string) (*members.Member, error) {
	return r.getOne(ctx, `
		SELECT user_id, username, first_name, last_name, is_bot, updated_at
		FROM members
		WHERE lower(username) = lower($1)
		ORDER BY updated_at DESC
		LIMIT 1
	`, username)
}

func (r *MembersRepository) getOne(ctx context.Context, query string, arg any) (*members.Member, error) {
	var m members.Member
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&m.UserID, &m.Username, &m.FirstName, &m.LastName, &m.IsBot, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения участника (%v): %w", arg, err)
	}
	return &m, nil
}
