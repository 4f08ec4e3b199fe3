package db

import (
	"context"
	"fmt"
	"time"

	"serialfic-monetization/pkg/config"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/prometheus"
)

var Module = fx.Module("database",
	fx.Provide(
		Dialect,
		New,
	),
	fx.Invoke(RegisterConnectionPool),
)

// Dialect builds the gorm dialector for the configured database type.
func Dialect(cfg *config.Config) (gorm.Dialector, error) {
	d := cfg.Database
	switch d.Type {
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			d.Host, d.Port, d.User, d.Password, d.DBNAME, orDefault(d.SSLMode, "disable"), orDefault(d.Timezone, "UTC"))
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBNAME)
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(orDefault(d.DBNAME, "monetization.db")), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", d.Type)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

const (
	openAttempts = 5
	openBackoff  = 3 * time.Second
)

// New opens the connection, retrying while the database comes up, and
// registers tracing plus (in production) pool metrics.
func New(cfg *config.Config, dialector gorm.Dialector) (*gorm.DB, error) {
	logLevel, showSQL := logger.Info, true
	if cfg.AppEnv == "production" {
		logLevel, showSQL = logger.Warn, false
	}
	gormCfg := &gorm.Config{
		Logger:         NewZapGormLogger(zap.L(), logLevel, showSQL),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= openAttempts; attempt++ {
		if db, err = gorm.Open(dialector, gormCfg); err == nil {
			break
		}
		if attempt == openAttempts {
			return nil, fmt.Errorf("open %s after %d attempts: %w", dialector.Name(), openAttempts, err)
		}
		zap.L().Warn("[DB] database not ready", zap.Int("attempt", attempt), zap.Duration("backoff", openBackoff), zap.Error(err))
		time.Sleep(openBackoff)
	}

	if err := Otel(db); err != nil {
		zap.L().Warn("[DB] tracing disabled", zap.Error(err))
	}
	if cfg.AppEnv == "production" {
		if err := Metric(db, cfg.Database.DBNAME); err != nil {
			zap.L().Warn("[DB] metrics disabled", zap.Error(err))
		}
	}

	zap.L().Info("[DB] connected", zap.String("dialect", dialector.Name()))
	return db, nil
}

type connectionPoolParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Config    *config.Config
}

func RegisterConnectionPool(p connectionPoolParams) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		zap.L().Error("[DB] Failed to get sql.DB from gorm", zap.Error(err))
		return err
	}

	cp := p.Config.Database.ConnectionPool
	if cp.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cp.MaxIdleConn)
	}
	if cp.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cp.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(cp.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cp.ConnMaxIdleTime)

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			zap.L().Info("[DB] Closing connection pool...")
			return sqlDB.Close()
		},
	})
	return nil
}

// Migrate runs AutoMigrate for the given models when enabled in config.
func Migrate(cfg *config.Config, db *gorm.DB, models ...any) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	zap.L().Info("[DB] schema migrated", zap.Int("models", len(models)))
	return nil
}

func Otel(db *gorm.DB) error {
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		zap.L().Error("Failed to register db telemetry", zap.Error(err))
		return err
	}

	return nil
}

func Metric(db *gorm.DB, name string) error {
	var collectors []prometheus.MetricsCollector
	if db.Dialector.Name() == "postgres" {
		collectors = append(collectors, &prometheus.Postgres{VariableNames: []string{"Threads_running"}})
	}

	if err := db.Use(prometheus.New(prometheus.Config{
		DBName:           orDefault(name, "unknown"),
		RefreshInterval:  15,
		StartServer:      false,
		MetricsCollector: collectors,
	})); err != nil {
		zap.L().Error("Failed to register db metrics", zap.Error(err))
		return err
	}
	return nil
}
