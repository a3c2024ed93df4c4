package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bobleung/ds-broadcaster/broadcast"
	"github.com/bobleung/ds-broadcaster/internal/config"
	"github.com/bobleung/ds-broadcaster/internal/errors"
	"github.com/bobleung/ds-broadcaster/internal/rooms"
	"github.com/bobleung/ds-broadcaster/web"
)

const sessionMaxAgeDays = 7

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	broadcaster  *broadcast.Broadcaster
	store        *rooms.Store
	sessionStore *sessions.CookieStore
	templates    *template.Template
	limits       *ConnectionLimits
	startTime    time.Time
}

func NewServer(cfg *config.Config, broadcaster *broadcast.Broadcaster, store *rooms.Store) (*Server, error) {
	templates, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * sessionMaxAgeDays,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		broadcaster:  broadcaster,
		store:        store,
		sessionStore: sessionStore,
		templates:    templates,
		limits:       NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) render(c echo.Context, name string, data any) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	if err := s.templates.ExecuteTemplate(c.Response(), name, data); err != nil {
		return errors.InternalError("failed to render page", err)
	}
	return nil
}

// renderPartial renders a named template to a string for broadcasting.
func (s *Server) renderPartial(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}
