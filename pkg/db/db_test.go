package db

import (
	"path/filepath"
	"testing"

	"serialfic-monetization/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialect(t *testing.T) {
	cfg := &config.Config{}

	for typ, name := range map[string]string{"": "postgres", "postgres": "postgres", "mysql": "mysql", "sqlite": "sqlite"} {
		cfg.Database.Type = typ
		d, err := Dialect(cfg)
		require.NoError(t, err)
		require.Equal(t, name, d.Name())
	}

	cfg.Database.Type = "oracle"
	_, err := Dialect(cfg)
	require.ErrorContains(t, err, "oracle")
}

func TestNewAndMigrate(t *testing.T) {
	zap.ReplaceGlobals(zap.NewNop())

	cfg := &config.Config{}
	cfg.Database.Type = "sqlite"
	cfg.Database.DBNAME = filepath.Join(t.TempDir(), "probe.db")

	d, err := Dialect(cfg)
	require.NoError(t, err)
	conn, err := New(cfg, d)
	require.NoError(t, err)

	type probe struct {
		ID   int64
		Name string
	}
	require.NoError(t, Migrate(cfg, conn, &probe{}))
	require.False(t, conn.Migrator().HasTable(&probe{}))

	cfg.Database.AutoMigrate = true
	require.NoError(t, Migrate(cfg, conn, &probe{}))
	require.True(t, conn.Migrator().HasTable(&probe{}))
}
