package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig(Params{})
	require.NoError(t, err)
	require.Equal(t, "serialfic-monetization", cfg.AppName)
	require.Equal(t, 5, cfg.Monetization.FreeChapterThreshold)
	require.Equal(t, int64(4), cfg.Monetization.DefaultCoinCost)
	require.Equal(t, "queue", cfg.Monetization.EarningsDispatch)
	require.Equal(t, "Asia/Kolkata", cfg.Monetization.Timezone)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := []byte(`APP_ENV: staging
DATABASE:
  TYPE: sqlite
  DBNAME: test.db
MONETIZATION:
  DAILY_AD_UNLOCK_LIMIT: 3
  ECPM: 55.5
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("MONETIZATION_DAILY_AD_UNLOCK_LIMIT", "7")

	cfg, err := LoadConfig(Params{})
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.AppEnv)
	require.Equal(t, "sqlite", cfg.Database.Type)
	require.Equal(t, 7, cfg.Monetization.DailyAdUnlockLimit)
	require.Equal(t, 55.5, cfg.Monetization.ECPM)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MONETIZATION_EARNINGS_DISPATCH", "carrier-pigeon")

	_, err := LoadConfig(Params{})
	require.ErrorContains(t, err, "EARNINGS_DISPATCH")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		var c Config
		c.Monetization.DailyAdUnlockLimit = 5
		c.Monetization.DefaultCoinCost = 4
		c.Monetization.ECPM = 40
		c.Monetization.CoinsPerRupee = 2
		c.Monetization.NonSubscriberFeePercentage = 30
		c.Monetization.DefaultSubscriberFeePercentage = 10
		c.Monetization.Timezone = "UTC"
		return &c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"negative threshold": func(c *Config) { c.Monetization.FreeChapterThreshold = -1 },
		"zero ad limit":      func(c *Config) { c.Monetization.DailyAdUnlockLimit = 0 },
		"zero coin cost":     func(c *Config) { c.Monetization.DefaultCoinCost = 0 },
		"zero coin rate":     func(c *Config) { c.Monetization.CoinsPerRupee = 0 },
		"fee over 100":       func(c *Config) { c.Monetization.NonSubscriberFeePercentage = 101 },
		"bad timezone":       func(c *Config) { c.Monetization.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			require.Error(t, c.Validate())
		})
	}
}
