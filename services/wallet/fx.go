package wallet

import (
	"serialfic-monetization/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler, auth *middleware.Authenticator) {
	h.Register(r, auth)
}
