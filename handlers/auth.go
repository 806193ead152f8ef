package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/library/auth"
	mw "github.com/padraicbc/library/middleware"
	"github.com/padraicbc/library/models"
)

type registerForm struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type credentials struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Register creates a user and returns its public fields.
func (h *Handler) Register(c echo.Context) error {
	var f registerForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	in, err := auth.NewRegisterInput(f.Username, f.Email, f.Password)
	if err != nil {
		return h.fail(err)
	}
	u, err := h.auth.Register(c.Request().Context(), in)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, models.Member{ID: u.ID, Username: u.Username, Email: u.Email})
}

// Login checks credentials and sets the session cookie.
func (h *Handler) Login(c echo.Context) error {
	var creds credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	in, err := auth.NewLoginInput(creds.Username, creds.Password)
	if err != nil {
		return h.fail(err)
	}
	sess, err := h.auth.Login(c.Request().Context(), in, mw.Slot(c))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": sess.UserID, "username": sess.Username})
}

// Logout clears the session cookie. It succeeds without a session too.
func (h *Handler) Logout(c echo.Context) error {
	h.auth.Logout(mw.Slot(c))
	return c.NoContent(http.StatusNoContent)
}
