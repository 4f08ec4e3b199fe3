package wallet

import (
	"net/http"

	"serialfic-monetization/pkg/db/pagination"
	"serialfic-monetization/pkg/errutil"
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
	g := r.Group("/wallet", auth.RequireAuth())
	g.GET("/balance", h.balance)
	g.GET("/transactions", h.transactions)
}

func (h *Handler) balance(c *gin.Context) {
	coins, err := h.service.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coins": coins})
}

func (h *Handler) transactions(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid pagination", err))
		return
	}

	rows, info, err := h.service.Transactions(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}
