package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "bangun.db", cfg.Store.SQLitePath)
	assert.Equal(t, "fatihtahta~tokopedia-scraper", cfg.Apify.ActorID)
	assert.Equal(t, 10, cfg.Apify.MaxResults)
	assert.Equal(t, 0.30, cfg.BOM.LaborPct)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BANGUN_BOM_LABOR_PCT", "0.4")
	t.Setenv("BANGUN_APIFY_TOKEN", "apify_api_test")
	t.Setenv("BANGUN_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.BOM.LaborPct)
	assert.Equal(t, "apify_api_test", cfg.Apify.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Store:  StoreConfig{Driver: "sqlite", SQLitePath: "x.db"},
		Scrape: ScrapeConfig{UseMock: true},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Scrape.UseMock = false
	assert.Error(t, cfg.Validate(), "live scraping needs an apify token")

	cfg.Apify.Token = "apify_api_test"
	assert.NoError(t, cfg.Validate())

	cfg.Store = StoreConfig{Driver: "postgres"}
	assert.Error(t, cfg.Validate(), "postgres needs a database url")

	cfg.Store.DatabaseURL = "postgres://localhost/bangun"
	assert.NoError(t, cfg.Validate())

	cfg.Store.Driver = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "console"}))
}
