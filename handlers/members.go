package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListMembers returns id, username and email of every user.
func (h *Handler) ListMembers(c echo.Context) error {
	members, err := h.members.ListMembers(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, members)
}

// DeleteMember removes a user. Deleting a missing user is not an error.
func (h *Handler) DeleteMember(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	removed, err := h.members.DeleteMember(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": removed})
}

// Healthz pings the database.
func (h *Handler) Healthz(c echo.Context) error {
	if err := h.db.PingContext(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
