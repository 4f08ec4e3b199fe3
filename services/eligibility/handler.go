package eligibility

import (
	"net/http"

	"serialfic-monetization/pkg/authz"
	"serialfic-monetization/pkg/middleware"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/monetization"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	catalog catalog.Reader
	authz   *authz.Authorizer
}

func NewHandler(service *Service, reader catalog.Reader, az *authz.Authorizer) *Handler {
	return &Handler{service: service, catalog: reader, authz: az}
}

func (h *Handler) Register(r gin.IRouter, auth *middleware.Authenticator) {
	r.GET("/writer-earning/eligibility/:novelId", auth.RequireAuth(), h.eligibility)
}

func (h *Handler) eligibility(c *gin.Context) {
	ctx := c.Request.Context()

	rate, err := monetization.ParseECPMRate(c.Query("ecpmRate"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	novel, err := h.catalog.Novel(ctx, c.Param("novelId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.authz.Require(middleware.UserID(c), novel.AuthorID, authz.ActionReadEarnings); err != nil {
		_ = c.Error(err)
		return
	}

	report, err := h.service.CheckEligibility(ctx, novel.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.service.WithAdEstimate(report, rate))
}
