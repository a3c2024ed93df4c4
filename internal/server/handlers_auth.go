package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bobleung/ds-broadcaster/internal/errors"
	"github.com/bobleung/ds-broadcaster/internal/rooms"
)

const sessionName = "ds_session"

// principal adapts a logged-in user to the broadcaster's identity interface.
type principal struct {
	user rooms.User
}

func (p principal) UserID() int64 { return p.user.ID }

func (s *Server) handleLoginPage(c echo.Context) error {
	return s.render(c, "login.html", nil)
}

func (s *Server) handleLogin(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return errors.ValidationError("name is required")
	}

	user := s.store.EnsureUser(name)

	sess, _ := s.sessionStore.Get(c.Request(), sessionName)
	sess.Values["user_id"] = user.ID
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return errors.InternalError("failed to save session", err)
	}

	return c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleLogout(c echo.Context) error {
	sess, _ := s.sessionStore.Get(c.Request(), sessionName)
	sess.Options.MaxAge = -1
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return errors.InternalError("failed to clear session", err)
	}
	return c.Redirect(http.StatusFound, "/login")
}

// requireAuth resolves the session to a user and stores it on the context;
// unauthenticated requests are redirected to the login page.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, _ := s.sessionStore.Get(c.Request(), sessionName)
		userID, ok := sess.Values["user_id"].(int64)
		if !ok {
			return c.Redirect(http.StatusFound, "/login")
		}
		user, err := s.store.UserByID(userID)
		if err != nil {
			return c.Redirect(http.StatusFound, "/login")
		}
		c.Set("user", user)
		c.Set("userID", user.ID)
		return next(c)
	}
}

func currentUser(c echo.Context) rooms.User {
	user, _ := c.Get("user").(rooms.User)
	return user
}
