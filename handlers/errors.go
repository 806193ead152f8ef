package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/padraicbc/library/apperr"
)

// fail turns a service error into the HTTP error shown to the client.
func (h *Handler) fail(err error) error {
	var (
		conflict    *apperr.ConflictError
		invalid     *apperr.ValidationError
		unsupported *apperr.UnsupportedFileTypeError
	)
	switch {
	case errors.As(err, &conflict):
		return echo.NewHTTPError(http.StatusConflict, conflict.Error())
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, apperr.ErrInvalidCredentials.Error())
	case errors.Is(err, apperr.ErrAuthRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, apperr.ErrAuthRequired.Error())
	case errors.As(err, &unsupported):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType,
			fmt.Sprintf("%s, allowed: %s", unsupported.Error(), strings.Join(h.catalog.AllowedExtensions(), ", ")))
	case errors.Is(err, apperr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, apperr.ErrNotFound.Error())
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, invalid.Error())
	}

	h.log.Error("request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}
