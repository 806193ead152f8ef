package handlers

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/padraicbc/library/middleware"
	"github.com/padraicbc/library/session"
)

// Routes mounts the library endpoints on e. Sessions are carried in a cookie
// signed by codec; bodyLimit caps uploads (e.g. "50M").
func (h *Handler) Routes(e *echo.Echo, codec *session.Codec, secureCookie bool, bodyLimit string) {
	e.Use(mw.Sessions(codec, secureCookie))
	authed := mw.RequireAuth(h.auth)

	// Public
	e.GET("/healthz", h.Healthz)
	e.POST("/register", h.Register)
	e.POST("/login", h.Login)
	e.POST("/logout", h.Logout)
	e.GET("/books", h.ListBooks)
	e.GET("/uploads/:filename", h.FetchFile)

	// Protected – require a valid session cookie
	e.POST("/books", h.UploadBook, authed, echomw.BodyLimit(bodyLimit))
	e.POST("/books/:id/delete", h.DeleteBook, authed)
	e.DELETE("/books/:id", h.DeleteBook, authed)
	e.GET("/members", h.ListMembers, authed)
	e.POST("/members/:id/delete", h.DeleteMember, authed)
	e.DELETE("/members/:id", h.DeleteMember, authed)
}
