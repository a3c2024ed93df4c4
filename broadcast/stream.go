package broadcast

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/bobleung/ds-broadcaster/internal/metrics"
)

// Stream is one open subscriber connection. The transport adapter drives it
// either by pulling frames with Next or by handing an io.Writer to Serve.
//
// However the stream ends (close sentinel, context cancellation, or an
// explicit Close), the subscriber is unregistered exactly once and, if
// the channel still has members, a presence broadcast follows.
type Stream struct {
	b       *Broadcaster
	channel string
	sub     *subscriber
	once    sync.Once
}

func newStream(b *Broadcaster, channel string, sub *subscriber) *Stream {
	return &Stream{b: b, channel: channel, sub: sub}
}

// Channel returns the channel this stream is subscribed to.
func (st *Stream) Channel() string {
	return st.channel
}

// UserID returns the user id the stream was opened with (0 for anonymous).
func (st *Stream) UserID() int64 {
	return st.sub.userID
}

// Next blocks until the next frame is available and returns it. When the
// stream has been idle for the heartbeat interval it returns Heartbeat
// instead. It returns io.EOF, after cleanup, once a close sentinel is
// received or ctx is cancelled; frames queued ahead of a sentinel are
// still delivered first.
func (st *Stream) Next(ctx context.Context) (Frame, error) {
	timer := st.b.clock.NewTimer(st.b.heartbeat)
	defer timer.Stop()

	for {
		if it, ok := st.sub.pop(); ok {
			if it.sentinel {
				st.Close()
				return "", io.EOF
			}
			return it.frame, nil
		}

		select {
		case <-st.sub.ready:
		case <-timer.Chan():
			metrics.HeartbeatsSentTotal.Inc()
			return Heartbeat, nil
		case <-ctx.Done():
			st.Close()
			return "", io.EOF
		}
	}
}

// Serve drains the stream into w until it ends, flushing after every frame
// when w supports it. A transport write error tears the stream down and is
// returned; a normal end (sentinel, cancellation) returns nil.
func (st *Stream) Serve(ctx context.Context, w io.Writer) error {
	flusher, _ := w.(http.Flusher)
	for {
		frame, err := st.Next(ctx)
		if err != nil {
			return nil
		}
		if _, err := io.WriteString(w, string(frame)); err != nil {
			st.Close()
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Close unregisters the subscriber. Idempotent; safe to call from any
// goroutine, and called internally on every stream exit path.
func (st *Stream) Close() {
	st.once.Do(func() {
		remaining := st.b.registry.removeSubscriber(st.channel, st.sub)
		metrics.ConnectedSubscribers.Dec()
		metrics.ActiveChannels.Set(float64(len(st.b.registry.channelNames())))

		st.b.logger.Debug("Subscriber disconnected",
			"channel", st.channel,
			"subscriber_id", st.sub.id.String(),
			"user_id", st.sub.userID,
			"remaining", remaining,
		)

		if remaining > 0 {
			st.b.broadcastPresence(st.channel)
		}
	})
}
