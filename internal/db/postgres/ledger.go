// Package postgres — ledger.go зеркалирует состояние экономики в таблицы PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/currency-bot/internal/ledger"
)

// LedgerRepository реализует ledger.Persister поверх pgxpool.
type LedgerRepository struct {
	db *pgxpool.Pool
}

// NewLedgerRepository создаёт репозиторий экономики.
func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ ledger.Persister = (*LedgerRepository)(nil)

// LoadAll читает все таблицы экономики.
func (r *LedgerRepository) LoadAll(ctx context.Context) (*ledger.Snapshot, error) {
	var (
		snap ledger.Snapshot
		err  error
	)
	if snap.Currencies, err = collect[ledger.CurrencyRow](ctx, r.db,
		`SELECT guild_id, name, emoji FROM currencies`); err != nil {
		return nil, fmt.Errorf("ошибка чтения валют: %w", err)
	}
	if snap.Balances, err = collect[ledger.BalanceRow](ctx, r.db,
		`SELECT guild_id, user_id, currency, amount FROM balances`); err != nil {
		return nil, fmt.Errorf("ошибка чтения балансов: %w", err)
	}
	if snap.Cooldowns, err = collect[ledger.CooldownRow](ctx, r.db,
		`SELECT guild_id, user_id, action, last_used FROM cooldowns`); err != nil {
		return nil, fmt.Errorf("ошибка чтения кулдаунов: %w", err)
	}
	if snap.Jackpots, err = collect[ledger.JackpotRow](ctx, r.db,
		`SELECT guild_id, currency, amount FROM jackpots`); err != nil {
		return nil, fmt.Errorf("ошибка чтения джекпотов: %w", err)
	}
	if snap.Inventories, err = collect[ledger.InventoryRow](ctx, r.db,
		`SELECT guild_id, user_id, item, quantity FROM inventories`); err != nil {
		return nil, fmt.Errorf("ошибка чтения инвентарей: %w", err)
	}
	if snap.Buffs, err = collect[ledger.BuffRow](ctx, r.db,
		`SELECT guild_id, user_id, buff_name FROM active_buffs`); err != nil {
		return nil, fmt.Errorf("ошибка чтения эффектов: %w", err)
	}
	if snap.Settings, err = r.loadSettings(ctx); err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	return &snap, nil
}

func (r *LedgerRepository) loadSettings(ctx context.Context) ([]ledger.SettingsRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT guild_id, homework_cooldown, officehours_cooldown, rob_cooldown FROM guild_settings`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.SettingsRow, error) {
		var (
			s                 ledger.SettingsRow
			homework, oh, rob *int64
		)
		if err := row.Scan(&s.CommunityID, &homework, &oh, &rob); err != nil {
			return s, err
		}
		s.Homework = cooldownOrUnset(homework)
		s.OfficeHours = cooldownOrUnset(oh)
		s.Rob = cooldownOrUnset(rob)
		return s, nil
	})
}

func collect[R any](ctx context.Context, db *pgxpool.Pool, query string) ([]R, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[R])
}

// Apply записывает изменения одной транзакцией.
func (r *LedgerRepository) Apply(ctx context.Context, c *ledger.Changes) error {
	if c == nil || c.Empty() {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	queueChanges(b, c)
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("ошибка записи изменений: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func queueChanges(b *pgx.Batch, c *ledger.Changes) {
	for _, row := range c.Currencies.Upserts {
		b.Queue(`INSERT INTO currencies (guild_id, name, emoji) VALUES ($1, $2, $3)
			ON CONFLICT (guild_id, name) DO UPDATE SET emoji = EXCLUDED.emoji`,
			row.CommunityID, row.Name, row.Emoji)
	}
	for _, row := range c.Currencies.Deletes {
		b.Queue(`DELETE FROM currencies WHERE guild_id = $1 AND name = $2`, row.CommunityID, row.Name)
	}

	for _, row := range c.Balances.Upserts {
		b.Queue(`INSERT INTO balances (guild_id, user_id, currency, amount) VALUES ($1, $2, $3, $4)
			ON CONFLICT (guild_id, user_id, currency) DO UPDATE SET amount = EXCLUDED.amount`,
			row.CommunityID, row.UserID, row.Currency, row.Amount)
	}
	for _, row := range c.Balances.Deletes {
		b.Queue(`DELETE FROM balances WHERE guild_id = $1 AND user_id = $2 AND currency = $3`,
			row.CommunityID, row.UserID, row.Currency)
	}

	for _, row := range c.Cooldowns.Upserts {
		b.Queue(`INSERT INTO cooldowns (guild_id, user_id, action, last_used) VALUES ($1, $2, $3, $4)
			ON CONFLICT (guild_id, user_id, action) DO UPDATE SET last_used = EXCLUDED.last_used`,
			row.CommunityID, row.UserID, string(row.Action), row.LastUsed)
	}
	for _, row := range c.Cooldowns.Deletes {
		b.Queue(`DELETE FROM cooldowns WHERE guild_id = $1 AND user_id = $2 AND action = $3`,
			row.CommunityID, row.UserID, string(row.Action))
	}

	for _, row := range c.Settings.Upserts {
		b.Queue(`INSERT INTO guild_settings (guild_id, homework_cooldown, officehours_cooldown, rob_cooldown)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (guild_id) DO UPDATE SET
				homework_cooldown = EXCLUDED.homework_cooldown,
				officehours_cooldown = EXCLUDED.officehours_cooldown,
				rob_cooldown = EXCLUDED.rob_cooldown`,
			row.CommunityID, nullCooldown(row.Homework), nullCooldown(row.OfficeHours), nullCooldown(row.Rob))
	}
	for _, row := range c.Settings.Deletes {
		b.Queue(`DELETE FROM guild_settings WHERE guild_id = $1`, row.CommunityID)
	}

	for _, row := range c.Jackpots.Upserts {
		b.Queue(`INSERT INTO jackpots (guild_id, currency, amount) VALUES ($1, $2, $3)
			ON CONFLICT (guild_id, currency) DO UPDATE SET amount = EXCLUDED.amount`,
			row.CommunityID, row.Currency, row.Amount)
	}
	for _, row := range c.Jackpots.Deletes {
		b.Queue(`DELETE FROM jackpots WHERE guild_id = $1 AND currency = $2`, row.CommunityID, row.Currency)
	}

	for _, row := range c.Inventories.Upserts {
		b.Queue(`INSERT INTO inventories (guild_id, user_id, item, quantity) VALUES ($1, $2, $3, $4)
			ON CONFLICT (guild_id, user_id, item) DO UPDATE SET quantity = EXCLUDED.quantity`,
			row.CommunityID, row.UserID, row.Item, row.Quantity)
	}
	for _, row := range c.Inventories.Deletes {
		b.Queue(`DELETE FROM inventories WHERE guild_id = $1 AND user_id = $2 AND item = $3`,
			row.CommunityID, row.UserID, row.Item)
	}

	for _, row := range c.Buffs.Upserts {
		b.Queue(`INSERT INTO active_buffs (guild_id, user_id, buff_name) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			row.CommunityID, row.UserID, row.Buff)
	}
	for _, row := range c.Buffs.Deletes {
		b.Queue(`DELETE FROM active_buffs WHERE guild_id = $1 AND user_id = $2 AND buff_name = $3`,
			row.CommunityID, row.UserID, row.Buff)
	}
}
