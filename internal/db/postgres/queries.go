// Package postgres — queries.go: применение одной миграции и
// преобразования NULL для настроек кулдаунов.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/currency-bot/internal/ledger"
)

// migrationLockID — ключ pg_advisory_xact_lock, чтобы две копии бота
// не накатывали одну миграцию одновременно.
const migrationLockID = 0x63757272 // "curr"

// applyMigration накатывает одну миграцию в транзакции и записывает её версию.
// Возвращает false, если версия уже была применена.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, fmt.Errorf("ошибка блокировки миграций: %w", err)
	}

	var applied bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки миграции %d: %w", m.Version, err)
	}
	if applied {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("миграция %03d_%s: %w", m.Version, m.Name, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name,
	); err != nil {
		return false, fmt.Errorf("ошибка записи версии миграции: %w", err)
	}
	return true, tx.Commit(ctx)
}

// nullCooldown превращает ledger.Unset в NULL.
func nullCooldown(v int64) *int64 {
	if v == ledger.Unset {
		return nil
	}
	return &v
}

// cooldownOrUnset — обратное преобразование при чтении.
func cooldownOrUnset(v *int64) int64 {
	if v == nil {
		return ledger.Unset
	}
	return *v
}
