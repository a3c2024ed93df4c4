package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_EnsureUserIsIdempotent(t *testing.T) {
	s := NewStore()

	alice := s.EnsureUser("alice")
	again := s.EnsureUser("alice")
	bob := s.EnsureUser("bob")

	assert.Equal(t, alice, again)
	assert.NotEqual(t, alice.ID, bob.ID)

	got, err := s.UserByID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

func TestStore_RoomMembership(t *testing.T) {
	s := NewStore()
	alice := s.EnsureUser("alice")
	bob := s.EnsureUser("bob")

	room := s.CreateRoom("general", alice)
	require.True(t, room.IsMember(alice.ID))
	require.False(t, room.IsMember(bob.ID))

	require.NoError(t, s.AddMember(room.ID, bob))
	got, err := s.Room(room.ID)
	require.NoError(t, err)
	assert.Equal(t, []User{alice, bob}, got.Members())

	require.NoError(t, s.RemoveMember(room.ID, alice.ID))
	got, err = s.Room(room.ID)
	require.NoError(t, err)
	assert.Equal(t, []User{bob}, got.Members())
}

func TestStore_RoomsForUser(t *testing.T) {
	s := NewStore()
	alice := s.EnsureUser("alice")
	bob := s.EnsureUser("bob")

	general := s.CreateRoom("general", alice)
	s.CreateRoom("private", bob)

	roomsForAlice := s.RoomsForUser(alice.ID)
	require.Len(t, roomsForAlice, 1)
	assert.Equal(t, general.ID, roomsForAlice[0].ID)
}

func TestStore_Messages(t *testing.T) {
	s := NewStore()
	alice := s.EnsureUser("alice")
	room := s.CreateRoom("general", alice)

	first, err := s.AppendMessage(room.ID, alice, "hello")
	require.NoError(t, err)
	second, err := s.AppendMessage(room.ID, alice, "world")
	require.NoError(t, err)

	msgs := s.Messages(room.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
	assert.Equal(t, "hello", msgs[0].Body)

	_, err = s.AppendMessage(999, alice, "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStore_DeleteRoom(t *testing.T) {
	s := NewStore()
	alice := s.EnsureUser("alice")
	room := s.CreateRoom("general", alice)
	_, err := s.AppendMessage(room.ID, alice, "hello")
	require.NoError(t, err)

	require.NoError(t, s.DeleteRoom(room.ID))
	_, err = s.Room(room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Empty(t, s.Messages(room.ID))
	assert.ErrorIs(t, s.DeleteRoom(room.ID), ErrRoomNotFound)
}
