package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Remote provider settings, overridable through REMOTE_CONFIG_* env vars.
const (
	defaultRemoteAddr = "127.0.0.1:8500"
	defaultRemotePath = "development"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Auth struct {
		JWTSecret  string   `mapstructure:"JWT_SECRET"`
		Issuer     string   `mapstructure:"ISSUER"`
		AdminUsers []string `mapstructure:"ADMIN_USERS"`
	} `mapstructure:"AUTH"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Kafka struct {
		Brokers []string `mapstructure:"BROKERS"`
		Topic   string   `mapstructure:"TOPIC"`
	} `mapstructure:"KAFKA"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Monetization struct {
		FreeChapterThreshold           int     `mapstructure:"FREE_CHAPTER_THRESHOLD"`
		DailyAdUnlockLimit             int     `mapstructure:"DAILY_AD_UNLOCK_LIMIT"`
		DefaultCoinCost                int64   `mapstructure:"DEFAULT_COIN_COST"`
		ECPM                           float64 `mapstructure:"ECPM"`
		CoinsPerRupee                  float64 `mapstructure:"COINS_PER_RUPEE"`
		NonSubscriberFeePercentage     int     `mapstructure:"NON_SUBSCRIBER_FEE_PERCENTAGE"`
		DefaultSubscriberFeePercentage int     `mapstructure:"DEFAULT_SUBSCRIBER_FEE_PERCENTAGE"`
		FreeViewsRequirement           int64   `mapstructure:"FREE_VIEWS_REQUIREMENT"`
		SampleEarningViewThreshold     int64   `mapstructure:"SAMPLE_EARNING_VIEW_THRESHOLD"`
		CoinEarningRule                string  `mapstructure:"COIN_EARNING_RULE"`
		Timezone                       string  `mapstructure:"TIMEZONE"`
		EarningsDispatch               string  `mapstructure:"EARNINGS_DISPATCH"`
	} `mapstructure:"MONETIZATION"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "serialfic-monetization")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("KAFKA.TOPIC", "chapter-unlocks")

	v.SetDefault("MONETIZATION.FREE_CHAPTER_THRESHOLD", 5)
	v.SetDefault("MONETIZATION.DAILY_AD_UNLOCK_LIMIT", 5)
	v.SetDefault("MONETIZATION.DEFAULT_COIN_COST", 4)
	v.SetDefault("MONETIZATION.ECPM", 40)
	v.SetDefault("MONETIZATION.COINS_PER_RUPEE", 2)
	v.SetDefault("MONETIZATION.NON_SUBSCRIBER_FEE_PERCENTAGE", 30)
	v.SetDefault("MONETIZATION.DEFAULT_SUBSCRIBER_FEE_PERCENTAGE", 10)
	v.SetDefault("MONETIZATION.FREE_VIEWS_REQUIREMENT", 1000)
	v.SetDefault("MONETIZATION.SAMPLE_EARNING_VIEW_THRESHOLD", 1000)
	v.SetDefault("MONETIZATION.TIMEZONE", "Asia/Kolkata")
	v.SetDefault("MONETIZATION.EARNINGS_DISPATCH", "queue")
}

// LoadConfig reads config.yaml (or the remote provider named by
// REMOTE_CONFIG_PROVIDER), overlays env vars and Vault secrets, then
// validates the result.
func LoadConfig(p Params) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if provider, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		if err := readRemote(v, provider); err != nil {
			return nil, err
		}
	} else if err := readLocal(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readLocal(v *viper.Viper) error {
	v.SetConfigName("config")
	v.AddConfigPath(".")

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &notFound):
		zap.L().Warn("[CONFIG] config.yaml not found, using env and defaults")
		return nil
	case err != nil:
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func readRemote(v *viper.Viper, provider string) error {
	addr := envOr("REMOTE_CONFIG_ADDR", defaultRemoteAddr)
	path := envOr("REMOTE_CONFIG_PATH", defaultRemotePath)

	if err := v.AddRemoteProvider(provider, addr, path); err != nil {
		return fmt.Errorf("remote provider %s: %w", provider, err)
	}
	if err := v.ReadRemoteConfig(); err != nil {
		return fmt.Errorf("read remote config %s%s: %w", addr, path, err)
	}
	zap.L().Info("[CONFIG] loaded remote config", zap.String("provider", provider), zap.String("path", path))
	return nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// Validate rejects monetization settings the services cannot run with.
func (c *Config) Validate() error {
	m := c.Monetization
	switch {
	case m.FreeChapterThreshold < 0:
		return errors.New("MONETIZATION.FREE_CHAPTER_THRESHOLD must not be negative")
	case m.DailyAdUnlockLimit < 1:
		return errors.New("MONETIZATION.DAILY_AD_UNLOCK_LIMIT must be at least 1")
	case m.DefaultCoinCost < 1:
		return errors.New("MONETIZATION.DEFAULT_COIN_COST must be at least 1")
	case m.ECPM < 0 || m.CoinsPerRupee <= 0:
		return errors.New("MONETIZATION.ECPM must not be negative and COINS_PER_RUPEE must be positive")
	case outOfPercent(m.NonSubscriberFeePercentage) || outOfPercent(m.DefaultSubscriberFeePercentage):
		return errors.New("MONETIZATION fee percentages must be within 0..100")
	}

	switch m.EarningsDispatch {
	case "", "queue", "inline", "sync":
	default:
		return fmt.Errorf("MONETIZATION.EARNINGS_DISPATCH %q is not one of queue, inline, sync", m.EarningsDispatch)
	}

	if m.Timezone != "" {
		if _, err := time.LoadLocation(m.Timezone); err != nil {
			return fmt.Errorf("MONETIZATION.TIMEZONE: %w", err)
		}
	}
	return nil
}

func outOfPercent(v int) bool {
	return v < 0 || v > 100
}

// Vault KV v2 keys under secret/<APP_ENV>. Missing keys keep the file value.
var secretFields = map[string]func(*Config) *string{
	"postgres_user":     func(c *Config) *string { return &c.Database.User },
	"postgres_password": func(c *Config) *string { return &c.Database.Password },
	"redis_password":    func(c *Config) *string { return &c.Redis.Password },
	"jwt_secret":        func(c *Config) *string { return &c.Auth.JWTSecret },
	"flagsmith_api_key": func(c *Config) *string { return &c.Flagsmith.ApiKey },
}

func applySecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		return fmt.Errorf("read vault secret %q: %w", cfg.AppEnv, err)
	}

	applied := 0
	for key, field := range secretFields {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			*field(cfg) = val
			applied++
		}
	}
	zap.L().Info("[CONFIG] vault secrets applied", zap.String("path", cfg.AppEnv), zap.Int("keys", applied))
	return nil
}
