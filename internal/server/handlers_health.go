package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bobleung/ds-broadcaster/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

// Readiness reports the broadcaster's view of the process. There are no
// external dependencies to probe; exposing channel and connection counts
// gives operators something to alert on.
func (s *Server) handleReadiness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ready",
		"active_channels":    len(s.broadcaster.ActiveChannels()),
		"connections_in_use": s.limits.GlobalCurrent(),
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
