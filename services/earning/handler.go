package earning

import (
	"net/http"

	"serialfic-monetization/pkg/authz"
	"serialfic-monetization/pkg/middleware"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/monetization"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	reports *ReportService
	catalog catalog.Reader
	authz   *authz.Authorizer
}

func NewHandler(reports *ReportService, reader catalog.Reader, az *authz.Authorizer) *Handler {
	return &Handler{reports: reports, catalog: reader, authz: az}
}

func (h *Handler) Register(r gin.IRouter, auth *middleware.Authenticator) {
	g := r.Group("/writer-earning", auth.RequireAuth())
	g.GET("/all", h.all)
	g.GET("/novel/:novelId", h.novel)
	g.GET("/chapter/:novelId/:chapterId", h.chapter)
}

// authorizedNovel loads the novel and checks the caller may read its
// earnings.
func (h *Handler) authorizedNovel(c *gin.Context) (*catalog.Novel, error) {
	novel, err := h.catalog.Novel(c.Request.Context(), c.Param("novelId"))
	if err != nil {
		return nil, err
	}
	if err := h.authz.Require(middleware.UserID(c), novel.AuthorID, authz.ActionReadEarnings); err != nil {
		return nil, err
	}
	return novel, nil
}

func (h *Handler) all(c *gin.Context) {
	rate, err := monetization.ParseECPMRate(c.Query("ecpmRate"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	report, err := h.reports.WriterEarnings(c.Request.Context(), middleware.UserID(c), rate)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) novel(c *gin.Context) {
	rate, err := monetization.ParseECPMRate(c.Query("ecpmRate"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	novel, err := h.authorizedNovel(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	report, err := h.reports.NovelEarnings(c.Request.Context(), novel, rate)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) chapter(c *gin.Context) {
	rate, err := monetization.ParseECPMRate(c.Query("ecpmRate"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	novel, err := h.authorizedNovel(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	report, err := h.reports.ChapterEarnings(c.Request.Context(), novel, c.Param("chapterId"), rate)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}
