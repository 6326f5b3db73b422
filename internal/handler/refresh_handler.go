package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"feedkeep/internal/store"
	"feedkeep/internal/syncer"
)

type RefreshHandler struct {
	store        *store.Store
	orchestrator *syncer.Orchestrator
}

type trimResponse struct {
	Evicted int `json:"evicted"`
}

func NewRefreshHandler(st *store.Store, orch *syncer.Orchestrator) *RefreshHandler {
	return &RefreshHandler{store: st, orchestrator: orch}
}

func (h *RefreshHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/refresh", h.Refresh)
	g.POST("/refresh/:id", h.RefreshFeed)
	g.GET("/refresh/status", h.Status)
	g.POST("/trim", h.Trim)
}

func (h *RefreshHandler) Refresh(c echo.Context) error {
	report, err := h.orchestrator.RefreshAll(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *RefreshHandler) RefreshFeed(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	report, err := h.orchestrator.RefreshFeed(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *RefreshHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.orchestrator.Status())
}

// Trim applies retention on demand; it is the only trigger besides startup.
func (h *RefreshHandler) Trim(c echo.Context) error {
	return c.JSON(http.StatusOK, trimResponse{Evicted: h.store.ApplyRetention()})
}
