package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "/tmp/market.db")
	t.Setenv("MARKET_AUTOSTART", "false")
	t.Setenv("FINNHUB_API_KEY", "fh-key")
	t.Setenv("FINNHUB_RPM", "30")
	t.Setenv("ALPHAVANTAGE_RPM", "many")
	t.Setenv("PUBLIC_RPM", "")

	cfg, _ := LoadConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/market.db", cfg.DBPath)
	assert.False(t, cfg.MarketAutostart)
	assert.Equal(t, "sql", cfg.QuoteStore)
	assert.Equal(t, 120, cfg.PublicRequestsPerMinute)
	assert.Equal(t, "fh-key", cfg.Providers.FinnhubKey)
	assert.Equal(t, map[string]int{"finnhub": 30}, cfg.Providers.RequestsPerMinute)
}

func TestLoadConfigRejectsMongoWithoutURI(t *testing.T) {
	t.Setenv("QUOTE_STORE", "mongo")
	t.Setenv("MONGODB_URI", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "MONGODB_URI")
}

func TestInitDBSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", t.TempDir()+"/test.db")
	_, _ = LoadConfig()

	db, err := InitDB()
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Same(t, db, DB)
}

func TestMaskHost(t *testing.T) {
	assert.Equal(t, "***", maskHost("db"))
	assert.Equal(t, "loc***", maskHost("localhost"))
	assert.Equal(t, "db.examp***nternal.io", maskHost("db.example.cluster.internal.io"))
}
