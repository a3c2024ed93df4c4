package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth routes
	s.echo.GET("/login", s.handleLoginPage)
	s.echo.POST("/login", s.handleLogin)
	s.echo.POST("/logout", s.handleLogout)

	// Rooms demo (authenticated)
	s.echo.GET("/", s.handleRoomList, s.requireAuth)
	s.echo.POST("/rooms", s.handleRoomCreate, s.requireAuth)
	s.echo.GET("/rooms/:id", s.handleRoomDetail, s.requireAuth)
	s.echo.POST("/rooms/:id/join", s.handleRoomJoin, s.requireAuth)
	s.echo.POST("/rooms/:id/messages", s.handleRoomMessage, s.requireAuth)
	s.echo.POST("/rooms/:id/cursor", s.handleRoomCursor, s.requireAuth)
	s.echo.DELETE("/rooms/:id", s.handleRoomDelete, s.requireAuth)
	s.echo.POST("/rooms/:id/kick/:user", s.handleRoomKick, s.requireAuth)

	// Stream endpoints (authenticated, connection-limited)
	s.echo.GET("/rooms/:id/connect", s.handleRoomConnect, s.requireAuth)
	s.echo.GET("/rooms/:id/connect/ws", s.handleRoomConnectWS, s.requireAuth)
}
