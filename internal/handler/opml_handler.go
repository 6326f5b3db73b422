package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"feedkeep/internal/opml"
	"feedkeep/internal/store"
)

const maxOPMLSize = 5 << 20

type OPMLHandler struct {
	store *store.Store
}

type importResponse struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

func NewOPMLHandler(st *store.Store) *OPMLHandler {
	return &OPMLHandler{store: st}
}

func (h *OPMLHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/opml/import", h.Import)
	g.GET("/opml/export", h.Export)
}

// Import adds every outline whose URL is not already subscribed
// (case-insensitive). Already-subscribed URLs are counted as skipped.
func (h *OPMLHandler) Import(c echo.Context) error {
	reader := io.LimitReader(c.Request().Body, maxOPMLSize)
	subs, err := opml.Import(reader)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid opml"})
	}

	result := importResponse{}
	for _, sub := range subs {
		if _, err := h.store.Subscribe(sub.URL, sub.Title); err != nil {
			result.Skipped++
			continue
		}
		result.Added++
	}
	return c.JSON(http.StatusOK, result)
}

func (h *OPMLHandler) Export(c echo.Context) error {
	payload, err := opml.Export(h.store.Feeds())
	if err != nil {
		return writeServiceError(c, err)
	}
	c.Response().Header().Set("Content-Disposition", `attachment; filename="feedkeep.opml"`)
	return c.Blob(http.StatusOK, "application/xml", payload)
}
