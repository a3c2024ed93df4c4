// Package rooms holds the in-memory demo domain: users, chat rooms and
// their messages. The broadcaster core never touches this state; handlers
// read it to render markup and decide membership.
package rooms

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

type User struct {
	ID   int64
	Name string
}

type Message struct {
	ID        int64
	RoomID    int64
	Author    User
	Body      string
	CreatedAt time.Time
}

type Room struct {
	ID      int64
	Name    string
	members map[int64]User
}

// Members returns the room's members sorted by user id.
func (r *Room) Members() []User {
	members := make([]User, 0, len(r.members))
	for _, u := range r.members {
		members = append(members, u)
	}
	slices.SortFunc(members, func(a, b User) int {
		return int(a.ID - b.ID)
	})
	return members
}

// IsMember reports whether the user belongs to the room.
func (r *Room) IsMember(userID int64) bool {
	_, ok := r.members[userID]
	return ok
}

var (
	ErrRoomNotFound = fmt.Errorf("room not found")
	ErrUserNotFound = fmt.Errorf("user not found")
)

// Store is a mutex-guarded in-memory repository. Reads hand out copies so
// callers never see concurrent mutation.
type Store struct {
	mu       sync.Mutex
	users    map[int64]User
	byName   map[string]int64
	rooms    map[int64]*Room
	messages map[int64][]Message
	nextUser int64
	nextRoom int64
	nextMsg  int64
}

func NewStore() *Store {
	return &Store{
		users:    make(map[int64]User),
		byName:   make(map[string]int64),
		rooms:    make(map[int64]*Room),
		messages: make(map[int64][]Message),
	}
}

// EnsureUser returns the user with the given name, creating it on first
// login.
func (s *Store) EnsureUser(name string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[name]; ok {
		return s.users[id]
	}
	s.nextUser++
	user := User{ID: s.nextUser, Name: name}
	s.users[user.ID] = user
	s.byName[name] = user.ID
	return user
}

// UserByID looks a user up by id.
func (s *Store) UserByID(id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// CreateRoom creates a room with the creator as its first member.
func (s *Store) CreateRoom(name string, creator User) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoom++
	room := &Room{
		ID:      s.nextRoom,
		Name:    name,
		members: map[int64]User{creator.ID: creator},
	}
	s.rooms[room.ID] = room
	return room
}

// Room returns a copy of the room.
func (s *Store) Room(id int64) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

// RoomsForUser lists rooms the user is a member of, sorted by id.
func (s *Store) RoomsForUser(userID int64) []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Room
	for _, room := range s.rooms {
		if _, ok := room.members[userID]; ok {
			result = append(result, cloneRoom(room))
		}
	}
	slices.SortFunc(result, func(a, b *Room) int {
		return int(a.ID - b.ID)
	})
	return result
}

// AddMember adds a user to a room; adding an existing member is a no-op.
func (s *Store) AddMember(roomID int64, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.members[user.ID] = user
	return nil
}

// RemoveMember removes a user from a room.
func (s *Store) RemoveMember(roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	delete(room.members, userID)
	return nil
}

// DeleteRoom removes a room and its messages.
func (s *Store) DeleteRoom(roomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	delete(s.rooms, roomID)
	delete(s.messages, roomID)
	return nil
}

// AppendMessage stores a chat message and returns it.
func (s *Store) AppendMessage(roomID int64, author User, body string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return Message{}, ErrRoomNotFound
	}
	s.nextMsg++
	msg := Message{
		ID:        s.nextMsg,
		RoomID:    roomID,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

// Messages returns the room's messages in insertion order.
func (s *Store) Messages(roomID int64) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages[roomID])
}

func cloneRoom(room *Room) *Room {
	members := make(map[int64]User, len(room.members))
	for id, u := range room.members {
		members[id] = u
	}
	return &Room{ID: room.ID, Name: room.Name, members: members}
}
