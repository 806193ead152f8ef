package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/library/apperr"
	"github.com/padraicbc/library/session"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

const slotKey = "session_slot"

// cookieSlot is a session.Slot backed by a signed cookie on the current request.
type cookieSlot struct {
	c      echo.Context
	codec  *session.Codec
	secure bool
	cur    *session.Session
}

func (s *cookieSlot) Get() (session.Session, error) {
	if s.cur == nil {
		return session.Session{}, session.ErrNoSession
	}
	return *s.cur, nil
}

func (s *cookieSlot) Set(sess session.Session) error {
	token, err := s.codec.Encode(sess)
	if err != nil {
		return err
	}
	// No MaxAge: the cookie lives for the browser session, the token's
	// expiry bounds it server-side.
	s.c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.cur = &sess
	return nil
}

func (s *cookieSlot) Clear() {
	s.c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	s.cur = nil
}

// Sessions returns an Echo middleware that decodes the session cookie and
// attaches a per-request session.Slot. Cookies that fail verification are
// cleared.
func Sessions(codec *session.Codec, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slot := &cookieSlot{c: c, codec: codec, secure: secure}
			if ck, err := c.Cookie(CookieName); err == nil && ck.Value != "" {
				if sess, err := codec.Decode(ck.Value); err == nil {
					slot.cur = &sess
				} else {
					slot.Clear()
				}
			}
			c.Set(slotKey, slot)
			return next(c)
		}
	}
}

// Slot returns the session slot attached by Sessions. Without it the request
// gets an empty in-memory slot.
func Slot(c echo.Context) session.Slot {
	if s, ok := c.Get(slotKey).(session.Slot); ok {
		return s
	}
	s := &session.Memory{}
	c.Set(slotKey, s)
	return s
}

// Guard checks that a slot holds a valid session.
type Guard interface {
	RequireAuthenticated(ctx context.Context, slot session.Slot) (session.Session, error)
}

// RequireAuth returns an Echo middleware rejecting requests without an
// authenticated session. On success "user_id" and "username" are set on the context.
func RequireAuth(g Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := g.RequireAuthenticated(c.Request().Context(), Slot(c))
			if err != nil {
				if errors.Is(err, apperr.ErrAuthRequired) {
					return echo.NewHTTPError(http.StatusUnauthorized, apperr.ErrAuthRequired.Error())
				}
				return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
			}

			c.Set("user_id", sess.UserID)
			c.Set("username", sess.Username)
			return next(c)
		}
	}
}
