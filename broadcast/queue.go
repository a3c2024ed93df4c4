package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// item is the tagged element type of a subscriber queue: either a frame to
// deliver or the close sentinel that ends the stream.
type item struct {
	frame    Frame
	sentinel bool
}

// subscriber is one open streaming connection: an unbounded FIFO queue of
// pending items plus its channel and user association. The queue itself is
// internally synchronized, so the home loop can push while the stream
// driver pops.
type subscriber struct {
	id     uuid.UUID
	userID int64

	mu    sync.Mutex
	items []item
	ready chan struct{}
}

func newSubscriber(userID int64) *subscriber {
	return &subscriber{
		id:     uuid.New(),
		userID: userID,
		ready:  make(chan struct{}, 1),
	}
}

// push appends an item and wakes the driver. Never blocks: the queue is
// unbounded, so a slow consumer cannot stall the home loop.
func (s *subscriber) push(it item) {
	s.mu.Lock()
	s.items = append(s.items, it)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// pop removes and returns the head item, if any.
func (s *subscriber) pop() (item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return item{}, false
	}
	it := s.items[0]
	s.items = s.items[1:]
	if len(s.items) == 0 {
		s.items = nil
	}
	return it, true
}
