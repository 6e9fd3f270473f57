package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"serotonyl.ru/currency-bot/internal/ledger"
)

// LedgerRepository реализует ledger.Persister поверх SQLite.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository создаёт репозиторий экономики.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ ledger.Persister = (*LedgerRepository)(nil)

// LoadAll читает все таблицы экономики.
func (r *LedgerRepository) LoadAll(ctx context.Context) (*ledger.Snapshot, error) {
	var (
		snap ledger.Snapshot
		err  error
	)
	snap.Currencies, err = queryRows(ctx, r.db, `SELECT guild_id, name, emoji FROM currencies`,
		func(rows *sql.Rows) (row ledger.CurrencyRow, err error) {
			err = rows.Scan(&row.CommunityID, &row.Name, &row.Emoji)
			return
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения валют: %w", err)
	}
	snap.Balances, err = queryRows(ctx, r.db, `SELECT guild_id, user_id, currency, amount FROM balances`,
		func(rows *sql.Rows) (row ledger.BalanceRow, err error) {
			err = rows.Scan(&row.CommunityID, &row.UserID, &row.Currency, &row.Amount)
			return
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения балансов: %w", err)
	}
	snap.Cooldowns, err = queryRows(ctx, r.db, `SELECT guild_id, user_id, action, last_used FROM cooldowns`,
		func(rows *sql.Rows) (row ledger.CooldownRow, err error) {
			var action string
			err = rows.Scan(&row.CommunityID, &row.UserID, &action, &row.LastUsed)
			row.Action = ledger.Action(action)
			return
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кулдаунов: %w", err)
	}
	snap.Settings, err = queryRows(ctx, r.db,
		`SELECT guild_id, homework_cooldown, officehours_cooldown, rob_cooldown FROM guild_settings`,
		func(rows *sql.Rows) (row ledger.SettingsRow, err error) {
			var homework, oh, rob sql.NullInt64
			err = rows.Scan(&row.CommunityID, &homework, &oh, &rob)
			row.Homework = cooldownOrUnset(homework)
			row.OfficeHours = cooldownOrUnset(oh)
			row.Rob = cooldownOrUnset(rob)
			return
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	snap.Jackpots, err = queryRows(ctx, r.db, `SELECT guild_id, currency, amount FROM jackpots`,
		func(rows *sql.Rows) (row ledger.JackpotRow, err error) {
			err = rows.Scan(&row.CommunityID, &row.Currency, &row.Amount)
			return
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения джекпотов: %w", err)
	}
	snap.Inventories, err = queryRows(ctx, r.db, `SELECT guild_id, user_id, item, quantity FROM inventories`,
		func(rows *sql.Rows) (row ledger.InventoryRow, err error) {
			err = rows.Scan(&row.CommunityID, &row.UserID, &row.Item, &row.Quantity)
			return
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения инвентарей: %w", err)
	}
	snap.Buffs, err = queryRows(ctx, r.db, `SELECT guild_id, user_id, buff_name FROM active_buffs`,
		func(rows *sql.Rows) (row ledger.BuffRow, err error) {
			err = rows.Scan(&row.CommunityID, &row.UserID, &row.Buff)
			return
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения эффектов: %w", err)
	}
	return &snap, nil
}

func queryRows[R any](ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) (R, error)) ([]R, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []R
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Apply записывает изменения одной транзакцией.
func (r *LedgerRepository) Apply(ctx context.Context, c *ledger.Changes) error {
	if c == nil || c.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range statements(c) {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return fmt.Errorf("ошибка записи изменений: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

type statement struct {
	query string
	args  []any
}

func statements(c *ledger.Changes) []statement {
	var out []statement
	add := func(query string, args ...any) {
		out = append(out, statement{query: query, args: args})
	}

	for _, row := range c.Currencies.Upserts {
		add(`INSERT INTO currencies (guild_id, name, emoji) VALUES (?, ?, ?)
			ON CONFLICT (guild_id, name) DO UPDATE SET emoji = excluded.emoji`,
			row.CommunityID, row.Name, row.Emoji)
	}
	for _, row := range c.Currencies.Deletes {
		add(`DELETE FROM currencies WHERE guild_id = ? AND name = ?`, row.CommunityID, row.Name)
	}

	for _, row := range c.Balances.Upserts {
		add(`INSERT INTO balances (guild_id, user_id, currency, amount) VALUES (?, ?, ?, ?)
			ON CONFLICT (guild_id, user_id, currency) DO UPDATE SET amount = excluded.amount`,
			row.CommunityID, row.UserID, row.Currency, row.Amount)
	}
	for _, row := range c.Balances.Deletes {
		add(`DELETE FROM balances WHERE guild_id = ? AND user_id = ? AND currency = ?`,
			row.CommunityID, row.UserID, row.Currency)
	}

	for _, row := range c.Cooldowns.Upserts {
		add(`INSERT INTO cooldowns (guild_id, user_id, action, last_used) VALUES (?, ?, ?, ?)
			ON CONFLICT (guild_id, user_id, action) DO UPDATE SET last_used = excluded.last_used`,
			row.CommunityID, row.UserID, string(row.Action), row.LastUsed)
	}
	for _, row := range c.Cooldowns.Deletes {
		add(`DELETE FROM cooldowns WHERE guild_id = ? AND user_id = ? AND action = ?`,
			row.CommunityID, row.UserID, string(row.Action))
	}

	for _, row := range c.Settings.Upserts {
		add(`INSERT INTO guild_settings (guild_id, homework_cooldown, officehours_cooldown, rob_cooldown)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (guild_id) DO UPDATE SET
				homework_cooldown = excluded.homework_cooldown,
				officehours_cooldown = excluded.officehours_cooldown,
				rob_cooldown = excluded.rob_cooldown`,
			row.CommunityID, nullCooldown(row.Homework), nullCooldown(row.OfficeHours), nullCooldown(row.Rob))
	}
	for _, row := range c.Settings.Deletes {
		add(`DELETE FROM guild_settings WHERE guild_id = ?`, row.CommunityID)
	}

	for _, row := range c.Jackpots.Upserts {
		add(`INSERT INTO jackpots (guild_id, currency, amount) VALUES (?, ?, ?)
			ON CONFLICT (guild_id, currency) DO UPDATE SET amount = excluded.amount`,
			row.CommunityID, row.Currency, row.Amount)
	}
	for _, row := range c.Jackpots.Deletes {
		add(`DELETE FROM jackpots WHERE guild_id = ? AND currency = ?`, row.CommunityID, row.Currency)
	}

	for _, row := range c.Inventories.Upserts {
		add(`INSERT INTO inventories (guild_id, user_id, item, quantity) VALUES (?, ?, ?, ?)
			ON CONFLICT (guild_id, user_id, item) DO UPDATE SET quantity = excluded.quantity`,
			row.CommunityID, row.UserID, row.Item, row.Quantity)
	}
	for _, row := range c.Inventories.Deletes {
		add(`DELETE FROM inventories WHERE guild_id = ? AND user_id = ? AND item = ?`,
			row.CommunityID, row.UserID, row.Item)
	}

	for _, row := range c.Buffs.Upserts {
		add(`INSERT OR IGNORE INTO active_buffs (guild_id, user_id, buff_name) VALUES (?, ?, ?)`,
			row.CommunityID, row.UserID, row.Buff)
	}
	for _, row := range c.Buffs.Deletes {
		add(`DELETE FROM active_buffs WHERE guild_id = ? AND user_id = ? AND buff_name = ?`,
			row.CommunityID, row.UserID, row.Buff)
	}
	return out
}

func nullCooldown(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != ledger.Unset}
}

func cooldownOrUnset(v sql.NullInt64) int64 {
	if !v.Valid {
		return ledger.Unset
	}
	return v.Int64
}
