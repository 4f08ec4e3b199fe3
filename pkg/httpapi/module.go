package httpapi

import (
	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/health"
	"serialfic-monetization/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewEngine, middleware.NewAuthenticator),
	fx.Invoke(registerOpsEndpoints),
)

// NewEngine builds the gin engine shared by every service module.
func NewEngine(cfg *config.Config, tp trace.TracerProvider) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		tracing(tp, cfg.AppName),
		accessLog(),
		middleware.Error(),
	)
	return r
}

func registerOpsEndpoints(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func tracing(tp trace.TracerProvider, name string) gin.HandlerFunc {
	tracer := tp.Tracer(name)
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		zap.L().Info("http.request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", middleware.RequestID(c)),
			zap.String("user_id", middleware.UserID(c)),
		)
	}
}
