package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"log/slog"

	"github.com/bobleung/ds-broadcaster/broadcast"
	"github.com/bobleung/ds-broadcaster/internal/errors"
	"github.com/bobleung/ds-broadcaster/internal/logging"
	"github.com/bobleung/ds-broadcaster/internal/metrics"
)

// handleRoomConnect is the long-lived SSE endpoint. It holds the request
// open and relays every frame published to the room's channel.
func (s *Server) handleRoomConnect(c echo.Context) error {
	room, user, err := s.memberRoom(c)
	if err != nil {
		return err
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("stream connection rejected",
			slog.String("reason", string(reason)),
			slog.String("ip", ip),
		)
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}
	defer s.limits.Release(ip)

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	channel := roomChannel(room.ID)
	stream := s.broadcaster.OpenConnection(channel, principal{user: user},
		broadcast.WithPresence(s.roomPresence(room.ID)))

	started := time.Now()
	defer func() {
		metrics.StreamDuration.Observe(time.Since(started).Seconds())
	}()

	if err := stream.Serve(c.Request().Context(), c.Response()); err != nil {
		// Client went away mid-write; nothing to report back.
		logging.WithChannel(channel).Debug("stream write failed",
			"user_id", user.ID, "error", err)
	}
	return nil
}

// roomPresence builds the channel's presence callback: a fresh member list
// partial plus cursor-clearing signals for everyone who just went offline.
func (s *Server) roomPresence(roomID int64) broadcast.PresenceFunc {
	return func(channel string, userIDs []int64) (broadcast.PresenceResult, error) {
		room, err := s.store.Room(roomID)
		if err != nil {
			return broadcast.PresenceResult{}, err
		}

		online := make(map[int64]bool, len(userIDs))
		for _, id := range userIDs {
			online[id] = true
		}

		// Online members list first; offline members also get their
		// cursors hidden.
		members := room.Members()
		views := make([]memberView, 0, len(members))
		signals := make(map[string]any)
		for _, m := range members {
			if online[m.ID] {
				views = append(views, memberView{User: m, Online: true})
			}
		}
		for _, m := range members {
			if !online[m.ID] {
				views = append(views, memberView{User: m})
				signals[fmt.Sprintf("cursor_%d_active", m.ID)] = false
			}
		}

		elements, err := s.renderPartial("members", views)
		if err != nil {
			return broadcast.PresenceResult{}, err
		}
		return broadcast.PresenceResult{Elements: elements, Signals: signals}, nil
	}
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin demo app; the session cookie is the actual gate.
		return true
	},
}

// handleRoomConnectWS relays the same frame stream over a websocket for
// clients that cannot hold an SSE response open.
func (s *Server) handleRoomConnectWS(c echo.Context) error {
	room, user, err := s.memberRoom(c)
	if err != nil {
		return err
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}
	defer s.limits.Release(ip)

	conn, err := streamUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.InternalError("websocket upgrade failed", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	channel := roomChannel(room.ID)
	stream := s.broadcaster.OpenConnection(channel, principal{user: user},
		broadcast.WithPresence(s.roomPresence(room.ID)))
	defer stream.Close()

	started := time.Now()
	defer func() {
		metrics.StreamDuration.Observe(time.Since(started).Seconds())
	}()

	// Read pump: discard inbound messages, cancel on close or error.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		frame, err := stream.Next(ctx)
		if err != nil {
			return nil
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			logging.WithChannel(channel).Debug("websocket write failed",
				"user_id", user.ID, "error", err)
			return nil
		}
	}
}
