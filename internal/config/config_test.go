package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("ADMIN_IDS", " 10, 20 ,")
	t.Setenv("ALLOWED_CHATS", "-1001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 20}, cfg.AdminIDs)
	assert.Equal(t, []int64{-1001}, cfg.AllowedChats)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, 6*time.Hour, cfg.EconomyDefaultCooldown)
	assert.Equal(t, 60*time.Second, cfg.TradeTimeout)
	assert.Equal(t, 30*time.Second, cfg.RemovalTimeout)
	assert.True(t, cfg.IsAdminID(20))
	assert.False(t, cfg.IsAdminID(30))
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "1,abc")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			StorageDriver:           StorageDriverSQLite,
			SQLitePath:              "x.db",
			BotMaxInflight:          1,
			BotUpdateTimeoutSeconds: 1,
			TradeTimeout:            time.Second,
			RemovalTimeout:          time.Second,
			AdminSessionTTL:         time.Hour,
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.StorageDriver = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.EconomyDefaultCooldown = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.DBMaxConns = 1
	cfg.DBMinConns = 2
	assert.Error(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.DatabaseDSN())
}
