// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Пользователи, которым разрешён вход в админку по паролю
	AdminIDsRaw string  `envconfig:"ADMIN_IDS"`
	AdminIDs    []int64 `envconfig:"-"` // заполним вручную

	// --- Storage ---
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/currencies.db"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"currency_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`
	// Пусто = бот работает в любой группе, куда его добавили
	AllowedChatsRaw string  `envconfig:"ALLOWED_CHATS"`
	AllowedChats    []int64 `envconfig:"-"`

	// --- Admin ---
	// Пустой хеш = вход по паролю отключён, остаются только админы чатов.
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`

	// --- Economy ---
	EconomyDefaultCooldown time.Duration `envconfig:"ECONOMY_DEFAULT_COOLDOWN" default:"6h"`
	TradeTimeout           time.Duration `envconfig:"TRADE_TIMEOUT" default:"60s"`
	RemovalTimeout         time.Duration `envconfig:"REMOVAL_TIMEOUT" default:"30s"`

	// --- Jobs ---
	JobsExpireSpec string `envconfig:"JOBS_EXPIRE_SPEC" default:"@every 5s"`
	JobsFlushSpec  string `envconfig:"JOBS_FLUSH_SPEC" default:"@every 30s"`

	// --- Metrics ---
	// Пусто = HTTP-эндпоинт /metrics не поднимается.
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет диапазоны значений.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	default:
		return fmt.Errorf("неизвестный STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.EconomyDefaultCooldown < 0 {
		return fmt.Errorf("ECONOMY_DEFAULT_COOLDOWN не может быть отрицательным")
	}
	if c.TradeTimeout <= 0 || c.RemovalTimeout <= 0 {
		return fmt.Errorf("TRADE_TIMEOUT и REMOVAL_TIMEOUT должны быть > 0")
	}
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_TTL должен быть > 0")
	}
	return nil
}

// IsAdminID сообщает, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdminID(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	chats, err := parseInt64CSV(cfg.AllowedChatsRaw)
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_CHATS parse: %w", err)
	}
	cfg.AllowedChats = chats

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
