package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"serialfic-monetization/pkg/authz"
	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/db"
	"serialfic-monetization/pkg/events"
	"serialfic-monetization/pkg/featureflags"
	"serialfic-monetization/pkg/gen"
	"serialfic-monetization/pkg/hashistack/secretmanager"
	"serialfic-monetization/pkg/health"
	"serialfic-monetization/pkg/httpapi"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/pkg/otelcol"
	"serialfic-monetization/pkg/profiling"
	"serialfic-monetization/pkg/redis"
	"serialfic-monetization/pkg/redislock"
	"serialfic-monetization/pkg/server"
	"serialfic-monetization/pkg/task"
	"serialfic-monetization/services/access"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/earning"
	"serialfic-monetization/services/eligibility"
	"serialfic-monetization/services/monetization"
	"serialfic-monetization/services/subscription"
	"serialfic-monetization/services/unlock"
	"serialfic-monetization/services/wallet"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		redislock.Module,
		gen.Module,
		featureflags.Module,
		authz.Module,
		events.Module,
		task.Client,
		health.Module,
		httpapi.Module,
		server.ProvideHTTPServer,

		monetization.Module,
		catalog.Module,
		subscription.Module,
		wallet.Module,
		access.Module,
		eligibility.Module,
		earning.Module,
		unlock.Module,

		fx.Invoke(migrate),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func migrate(cfg *config.Config, conn *gorm.DB) error {
	var models []any
	for _, m := range [][]any{
		catalog.Models(),
		subscription.Models(),
		wallet.Models(),
		access.Models(),
		earning.Models(),
		unlock.Models(),
	} {
		models = append(models, m...)
	}
	return db.Migrate(cfg, conn, models...)
}
