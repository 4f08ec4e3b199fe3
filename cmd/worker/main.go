package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/db"
	"serialfic-monetization/pkg/gen"
	"serialfic-monetization/pkg/hashistack/secretmanager"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/pkg/otelcol"
	"serialfic-monetization/pkg/profiling"
	"serialfic-monetization/pkg/redis"
	"serialfic-monetization/pkg/task"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/earning"
	"serialfic-monetization/services/monetization"
	"serialfic-monetization/services/subscription"
)

// The worker drains the earnings queue filled by the API process.
func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Server,

		monetization.Module,
		catalog.Module,
		subscription.Module,
		earning.WorkerModule,
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
