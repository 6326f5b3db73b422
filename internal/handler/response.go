package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"feedkeep/internal/store"
	"feedkeep/internal/syncer"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: "conflict"})
	case errors.Is(err, store.ErrInvalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, syncer.ErrAlreadyRefreshing):
		return c.JSON(http.StatusConflict, errorResponse{Error: "refresh already in progress"})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
