package access

import (
	"net/http"

	"serialfic-monetization/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r gin.IRouter, auth *middleware.Authenticator) {
	r.GET("/chapter-access/check/:chapterId", auth.OptionalAuth(), h.check)
}

func (h *Handler) check(c *gin.Context) {
	d, err := h.service.HasAccess(c.Request.Context(), middleware.UserID(c), c.Param("chapterId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}
