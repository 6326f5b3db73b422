package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"feedkeep/internal/model"
	"feedkeep/internal/secrets"
	"feedkeep/internal/store"
	"feedkeep/pkg/logger"
)

type FeedHandler struct {
	store   *store.Store
	secrets *secrets.Store
}

type createFeedRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type updateFeedRequest struct {
	Title string `json:"title"`
}

type setAuthRequest struct {
	Kind   model.AuthKind `json:"kind"`
	Secret string         `json:"secret"`
}

func NewFeedHandler(st *store.Store, sec *secrets.Store) *FeedHandler {
	return &FeedHandler{store: st, secrets: sec}
}

func (h *FeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/feeds", h.Create)
	g.GET("/feeds", h.List)
	g.PUT("/feeds/:id", h.Update)
	g.PUT("/feeds/:id/auth", h.SetAuth)
	g.DELETE("/feeds/:id", h.Delete)
}

func (h *FeedHandler) Create(c echo.Context) error {
	var req createFeedRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	feed, err := h.store.Subscribe(req.URL, req.Title)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, feed)
}

func (h *FeedHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Feeds())
}

func (h *FeedHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req updateFeedRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.store.RenameFeed(id, req.Title); err != nil {
		return writeServiceError(c, err)
	}
	feed, err := h.store.Feed(id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, feed)
}

func (h *FeedHandler) SetAuth(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	var req setAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	feed, err := h.store.Feed(id)
	if err != nil {
		return writeServiceError(c, err)
	}
	if err := h.store.SetFeedAuth(id, req.Kind); err != nil {
		return writeServiceError(c, err)
	}

	ctx := c.Request().Context()
	switch {
	case req.Kind == model.AuthNone:
		if err := h.secrets.Delete(ctx, id); err != nil {
			logger.Warn("delete credential failed", "module", "handler", "action", "delete", "resource", "secret", "result", "failed", "feed_id", id, "error", err)
		}
	case req.Secret != "":
		if err := h.secrets.Save(ctx, id, []byte(req.Secret)); err != nil {
			return writeServiceError(c, err)
		}
	case feed.Auth != req.Kind:
		// A payload stored for one scheme must never be sent under another.
		if err := h.secrets.Delete(ctx, id); err != nil {
			logger.Warn("delete credential failed", "module", "handler", "action", "delete", "resource", "secret", "result", "failed", "feed_id", id, "error", err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete unsubscribes a feed; its items and stored credential go with it.
func (h *FeedHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.store.Unsubscribe(id); err != nil {
		return writeServiceError(c, err)
	}
	if err := h.secrets.Delete(c.Request().Context(), id); err != nil {
		logger.Warn("delete credential failed", "module", "handler", "action", "delete", "resource", "secret", "result", "failed", "feed_id", id, "error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
