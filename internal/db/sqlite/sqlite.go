// Package sqlite — хранилище на одном файле (modernc.org/sqlite, без cgo)
// для небольших инсталляций без PostgreSQL. Таблицы те же, что в postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Open открывает (или создаёт) файл БД, включает WAL и создаёт таблицы.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к SQLite")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ошибка создания каталога БД: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	// Один писатель: SQLite всё равно сериализует запись
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithField("path", path).Info("SQLite открыта")
	return db, nil
}

func initPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("ошибка %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS currencies (
			guild_id INTEGER NOT NULL,
			name     TEXT    NOT NULL,
			emoji    TEXT    NOT NULL,
			PRIMARY KEY (guild_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS balances (
			guild_id INTEGER NOT NULL,
			user_id  INTEGER NOT NULL,
			currency TEXT    NOT NULL,
			amount   INTEGER NOT NULL CHECK (amount >= 0),
			PRIMARY KEY (guild_id, user_id, currency)
		);`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			guild_id  INTEGER NOT NULL,
			user_id   INTEGER NOT NULL,
			action    TEXT    NOT NULL,
			last_used REAL    NOT NULL,
			PRIMARY KEY (guild_id, user_id, action)
		);`,
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id             INTEGER PRIMARY KEY,
			homework_cooldown    INTEGER,
			officehours_cooldown INTEGER,
			rob_cooldown         INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS jackpots (
			guild_id INTEGER NOT NULL,
			currency TEXT    NOT NULL,
			amount   INTEGER NOT NULL CHECK (amount >= 0),
			PRIMARY KEY (guild_id, currency)
		);`,
		`CREATE TABLE IF NOT EXISTS inventories (
			guild_id INTEGER NOT NULL,
			user_id  INTEGER NOT NULL,
			item     TEXT    NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			PRIMARY KEY (guild_id, user_id, item)
		);`,
		`CREATE TABLE IF NOT EXISTS active_buffs (
			guild_id  INTEGER NOT NULL,
			user_id   INTEGER NOT NULL,
			buff_name TEXT    NOT NULL,
			PRIMARY KEY (guild_id, user_id, buff_name)
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			user_id    INTEGER PRIMARY KEY,
			username   TEXT    NOT NULL DEFAULT '',
			first_name TEXT    NOT NULL DEFAULT '',
			last_name  TEXT    NOT NULL DEFAULT '',
			is_bot     INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_members_username ON members (username COLLATE NOCASE);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ошибка создания схемы: %w", err)
		}
	}
	return nil
}
