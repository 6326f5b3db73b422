package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"feedkeep/internal/filter"
	"feedkeep/internal/model"
	"feedkeep/internal/store"
)

type ItemHandler struct {
	store  *store.Store
	engine *filter.Engine
}

// itemResponse is an item joined with its derived filter result.
type itemResponse struct {
	model.FeedItem
	HighlightColor *string  `json:"highlightColor,omitempty"`
	IconGlyph      *string  `json:"iconGlyph,omitempty"`
	ShowSummary    bool     `json:"showSummary,omitempty"`
	MatchedRuleIDs []string `json:"matchedRuleIds,omitempty"`
}

func NewItemHandler(st *store.Store, engine *filter.Engine) *ItemHandler {
	return &ItemHandler{store: st, engine: engine}
}

func (h *ItemHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/items", h.List)
	g.POST("/items/:id/read", h.MarkRead)
	g.POST("/items/:id/unread", h.MarkUnread)
	g.POST("/items/:id/star", h.Star)
	g.POST("/items/:id/unstar", h.Unstar)
}

// List returns the filtered item view: hidden items are omitted unless
// all=1 is passed. Optional filters: feedId, unread=1.
func (h *ItemHandler) List(c echo.Context) error {
	var feedID *int64
	if raw := c.QueryParam("feedId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid feedId"})
		}
		feedID = &parsed
	}
	unreadOnly := c.QueryParam("unread") == "1"
	includeHidden := c.QueryParam("all") == "1"

	items := h.store.Items(feedID)
	results := h.engine.Evaluate(items)

	response := make([]itemResponse, 0, len(items))
	for i, item := range items {
		result := results[i]
		if !result.Visible && !includeHidden {
			continue
		}
		if unreadOnly && item.Read {
			continue
		}
		response = append(response, itemResponse{
			FeedItem:       item,
			HighlightColor: result.HighlightColor,
			IconGlyph:      result.IconGlyph,
			ShowSummary:    result.ShowSummary,
			MatchedRuleIDs: result.MatchedRuleIDs,
		})
	}
	return c.JSON(http.StatusOK, response)
}

func (h *ItemHandler) MarkRead(c echo.Context) error   { return h.setRead(c, true) }
func (h *ItemHandler) MarkUnread(c echo.Context) error { return h.setRead(c, false) }
func (h *ItemHandler) Star(c echo.Context) error       { return h.setStarred(c, true) }
func (h *ItemHandler) Unstar(c echo.Context) error     { return h.setStarred(c, false) }

func (h *ItemHandler) setRead(c echo.Context, read bool) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.store.MarkRead(c.Request().Context(), id, read); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ItemHandler) setStarred(c echo.Context, starred bool) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
	}
	if err := h.store.Star(c.Request().Context(), id, starred); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
