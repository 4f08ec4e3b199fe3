package unlock

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
	g := r.Group("/chapter-access", auth.RequireAuth())
	g.POST("/purchase/:chapterId", h.purchase)
	g.POST("/unlock-coins/:chapterId", h.unlockCoins)
	g.POST("/unlock-ads/:chapterId", h.unlockAds)
	g.POST("/record-ad/:novelId", h.recordAd)
	g.GET("/ad-status/:novelId", h.adStatus)
	g.GET("/history", h.history)
}

func (h *Handler) purchase(c *gin.Context) {
	res, err := h.service.PurchaseChapter(c.Request.Context(), middleware.UserID(c), c.Param("chapterId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) unlockCoins(c *gin.Context) {
	res, err := h.service.UnlockByCoins(c.Request.Context(), middleware.UserID(c), c.Param("chapterId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) unlockAds(c *gin.Context) {
	res, err := h.service.UnlockByAds(c.Request.Context(), middleware.UserID(c), c.Param("chapterId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type recordAdRequest struct {
	ChapterID string `json:"chapterId"`
	AdType    string `json:"adType" binding:"omitempty,max=32"`
}

func (h *Handler) recordAd(c *gin.Context) {
	var req recordAdRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.ValidationFailed("invalid request body", err))
			return
		}
	}

	status, err := h.service.RecordAdWatch(c.Request.Context(), RecordAdParams{
		UserID:    middleware.UserID(c),
		NovelID:   c.Param("novelId"),
		ChapterID: req.ChapterID,
		AdType:    req.AdType,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) adStatus(c *gin.Context) {
	status, err := h.service.AdStatus(c.Request.Context(), middleware.UserID(c), c.Param("novelId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) history(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid pagination", err))
		return
	}

	rows, info, err := h.service.History(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}
