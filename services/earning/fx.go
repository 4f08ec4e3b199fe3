package earning

import (
	"serialfic-monetization/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var attribution = fx.Provide(
	NewAttribution,
	func(a *Attribution) Recorder { return a },
)

// Module serves the writer reports and dispatches earnings from the API
// process.
var Module = fx.Module("earning.service",
	attribution,
	fx.Provide(
		NewDispatcher,
		func(d *EarningDispatcher) Dispatcher { return d },
		NewReportService,
		NewHandler,
	),
	fx.Invoke(registerRoutes),
)

// WorkerModule consumes queued earning tasks.
var WorkerModule = fx.Module("earning.worker",
	attribution,
	fx.Provide(NewTaskHandler),
	fx.Invoke(func(mux *asynq.ServeMux, h *TaskHandler) {
		h.Register(mux)
	}),
)

func registerRoutes(r *gin.Engine, h *Handler, auth *middleware.Authenticator) {
	h.Register(r, auth)
}
