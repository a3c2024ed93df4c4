package broadcast

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_HeartbeatOnIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New(WithClock(clock))
	t.Cleanup(b.Stop)

	st := b.OpenConnection("room-1", testPrincipal(1))

	frames := make(chan Frame, 1)
	go func() {
		frame, err := st.Next(context.Background())
		if err == nil {
			frames <- frame
		}
	}()

	// Wait for the driver to arm its heartbeat timer, then let the idle
	// interval elapse.
	clock.BlockUntil(1)
	clock.Advance(DefaultHeartbeatInterval)

	select {
	case frame := <-frames:
		assert.Equal(t, Heartbeat, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat after idle interval")
	}
}

func TestStream_HeartbeatIntervalOption(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New(WithClock(clock), WithHeartbeatInterval(time.Second))
	t.Cleanup(b.Stop)

	st := b.OpenConnection("room-1", testPrincipal(1))

	frames := make(chan Frame, 1)
	go func() {
		frame, err := st.Next(context.Background())
		if err == nil {
			frames <- frame
		}
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	select {
	case frame := <-frames:
		assert.Equal(t, Heartbeat, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat after configured interval")
	}
}

func TestStream_ContextCancelCleansUp(t *testing.T) {
	calls := make(chan []int64, 4)
	presence := func(channel string, userIDs []int64) (PresenceResult, error) {
		calls <- userIDs
		return PresenceResult{}, nil
	}

	b := New()
	t.Cleanup(b.Stop)

	first := b.OpenConnection("room-1", testPrincipal(1), WithPresence(presence))
	<-calls
	b.OpenConnection("room-1", testPrincipal(2))
	<-calls

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := first.Next(ctx)
	require.ErrorIs(t, err, io.EOF)

	// Transport cancellation is treated like a normal stream end: the
	// subscriber is unregistered and remaining members get presence.
	assert.Equal(t, []int64{2}, <-calls)
	waitFor(t, "subscriber unregistered", func() bool {
		return len(b.ConnectedUserIDs("room-1")) == 1
	})
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	b := New()
	t.Cleanup(b.Stop)

	st := b.OpenConnection("room-1", testPrincipal(1))
	st.Close()
	st.Close()
	assert.Empty(t, b.ActiveChannels())
}

func TestStream_ServeWritesQueuedFramesUntilClose(t *testing.T) {
	b := New()
	t.Cleanup(b.Stop)

	st := b.OpenConnection("room-1", testPrincipal(1))
	b.PublishElements("room-1", "<p>one</p>")
	b.PublishElements("room-1", "<p>two</p>")
	b.KillChannel("room-1")

	// Everything is already posted; wait until it lands in the queue so
	// Serve drains deterministically.
	waitFor(t, "queue to fill", func() bool {
		st.sub.mu.Lock()
		defer st.sub.mu.Unlock()
		return len(st.sub.items) == 3
	})

	var buf bytes.Buffer
	require.NoError(t, st.Serve(context.Background(), &buf))

	want := string(FormatPatchElements("<p>one</p>")) + string(FormatPatchElements("<p>two</p>"))
	assert.Equal(t, want, buf.String())
}

func TestStream_Accessors(t *testing.T) {
	b := New()
	t.Cleanup(b.Stop)

	st := b.OpenConnection("room-1", testPrincipal(42))
	assert.Equal(t, "room-1", st.Channel())
	assert.Equal(t, int64(42), st.UserID())
}
