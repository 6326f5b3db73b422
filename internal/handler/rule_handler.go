package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"feedkeep/internal/model"
	"feedkeep/internal/store"
)

type RuleHandler struct {
	store *store.Store
}

type reorderRequest struct {
	RuleIDs []string `json:"ruleIds"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func NewRuleHandler(st *store.Store) *RuleHandler {
	return &RuleHandler{store: st}
}

func (h *RuleHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/rules", h.List)
	g.POST("/rules", h.Create)
	g.PUT("/rules/:id", h.Update)
	g.POST("/rules/:id/toggle", h.Toggle)
	g.POST("/rules/reorder", h.Reorder)
	g.DELETE("/rules/:id", h.Delete)
}

func (h *RuleHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Rules())
}

func (h *RuleHandler) Create(c echo.Context) error {
	var rule model.FilterRule
	if err := c.Bind(&rule); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	created, err := h.store.AddRule(rule)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *RuleHandler) Update(c echo.Context) error {
	var rule model.FilterRule
	if err := c.Bind(&rule); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	rule.ID = c.Param("id")
	updated, err := h.store.UpdateRule(rule)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *RuleHandler) Toggle(c echo.Context) error {
	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.store.SetRuleEnabled(c.Param("id"), req.Enabled); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RuleHandler) Reorder(c echo.Context) error {
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.store.ReorderRules(req.RuleIDs); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RuleHandler) Delete(c echo.Context) error {
	if err := h.store.DeleteRule(c.Param("id")); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
