package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bobleung/ds-broadcaster/broadcast"
	"github.com/bobleung/ds-broadcaster/internal/errors"
	"github.com/bobleung/ds-broadcaster/internal/rooms"
)

// memberView is the presence partial's row model.
type memberView struct {
	User   rooms.User
	Online bool
}

func roomChannel(roomID int64) string {
	return fmt.Sprintf("room-%d", roomID)
}

// memberRoom loads the room from the :id param and enforces membership.
func (s *Server) memberRoom(c echo.Context) (*rooms.Room, rooms.User, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, rooms.User{}, errors.ValidationError("invalid room id")
	}
	room, err := s.store.Room(id)
	if err != nil {
		return nil, rooms.User{}, errors.NotFoundError("room not found").WithContext("room_id", id)
	}
	user := currentUser(c)
	if !room.IsMember(user.ID) {
		return nil, rooms.User{}, errors.ForbiddenError("not a member of this room").WithContext("room_id", id)
	}
	return room, user, nil
}

// readSignals decodes a Datastar signals body; a missing or malformed body
// yields an empty map, matching how the demo treats empty submissions.
func readSignals(c echo.Context) map[string]any {
	signals := make(map[string]any)
	if c.Request().Body == nil {
		return signals
	}
	_ = json.NewDecoder(c.Request().Body).Decode(&signals)
	return signals
}

func (s *Server) handleRoomList(c echo.Context) error {
	user := currentUser(c)
	return s.render(c, "rooms.html", map[string]any{
		"User":  user,
		"Rooms": s.store.RoomsForUser(user.ID),
	})
}

func (s *Server) handleRoomCreate(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return errors.ValidationError("room name is required")
	}
	room := s.store.CreateRoom(name, currentUser(c))
	return c.Redirect(http.StatusFound, fmt.Sprintf("/rooms/%d", room.ID))
}

func (s *Server) handleRoomJoin(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError("invalid room id")
	}
	if err := s.store.AddMember(id, currentUser(c)); err != nil {
		return errors.NotFoundError("room not found").WithContext("room_id", id)
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf("/rooms/%d", id))
}

func (s *Server) handleRoomDetail(c echo.Context) error {
	room, user, err := s.memberRoom(c)
	if err != nil {
		return err
	}

	// Everyone renders offline initially; the first presence broadcast
	// after connect patches in live state.
	members := make([]memberView, 0, len(room.Members()))
	for _, m := range room.Members() {
		members = append(members, memberView{User: m})
	}

	return s.render(c, "room.html", map[string]any{
		"Room":     room,
		"User":     user,
		"Members":  members,
		"Messages": s.store.Messages(room.ID),
	})
}

func (s *Server) handleRoomMessage(c echo.Context) error {
	room, user, err := s.memberRoom(c)
	if err != nil {
		return err
	}

	signals := readSignals(c)
	body, _ := signals["message_to_send"].(string)
	body = strings.TrimSpace(body)

	if body != "" {
		msg, err := s.store.AppendMessage(room.ID, user, body)
		if err != nil {
			return errors.InternalError("failed to store message", err)
		}
		html, err := s.renderPartial("message", msg)
		if err != nil {
			return errors.InternalError("failed to render message", err)
		}
		s.broadcaster.PublishElements(roomChannel(room.ID), html,
			broadcast.WithSelector("#chat-feed"),
			broadcast.WithMode(broadcast.ModeAppend),
		)
	}

	// Clear the input on the submitting client only.
	frame, err := broadcast.FormatPatchSignals(map[string]any{"message_to_send": ""})
	if err != nil {
		return errors.InternalError("failed to format signals", err)
	}
	return writeEventStream(c, frame)
}

func (s *Server) handleRoomCursor(c echo.Context) error {
	room, user, err := s.memberRoom(c)
	if err != nil {
		return err
	}

	signals := readSignals(c)
	x, _ := signals["cursor_x"].(float64)
	y, _ := signals["cursor_y"].(float64)

	err = s.broadcaster.PublishSignals(roomChannel(room.ID), map[string]any{
		fmt.Sprintf("cursor_%d_x", user.ID):      x,
		fmt.Sprintf("cursor_%d_y", user.ID):      y,
		fmt.Sprintf("cursor_%d_active", user.ID): true,
	})
	if err != nil {
		return errors.InternalError("failed to publish cursor", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRoomDelete(c echo.Context) error {
	room, _, err := s.memberRoom(c)
	if err != nil {
		return err
	}

	// Signal streams before the store forgets the room.
	s.broadcaster.KillChannel(roomChannel(room.ID))
	if err := s.store.DeleteRoom(room.ID); err != nil {
		return errors.InternalError("failed to delete room", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRoomKick(c echo.Context) error {
	room, _, err := s.memberRoom(c)
	if err != nil {
		return err
	}
	targetID, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil {
		return errors.ValidationError("invalid user id")
	}

	if err := s.store.RemoveMember(room.ID, targetID); err != nil {
		return errors.NotFoundError("room not found")
	}
	s.broadcaster.CloseUserConnections(roomChannel(room.ID), targetID)
	return c.NoContent(http.StatusNoContent)
}

// writeEventStream sends pre-formatted frames as a short-lived SSE response.
func writeEventStream(c echo.Context, frames ...broadcast.Frame) error {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)
	for _, frame := range frames {
		if _, err := c.Response().Write([]byte(frame)); err != nil {
			return err
		}
	}
	c.Response().Flush()
	return nil
}
