// Package server implements the demo HTTP server using Echo framework.
//
// Routes: auth (name-based session login), rooms (chat demo exercising the
// broadcaster), stream endpoints (SSE and WebSocket transports), health and
// metrics. Handlers split by concern: handlers_auth.go, handlers_rooms.go,
// handlers_stream.go, handlers_health.go.
package server
