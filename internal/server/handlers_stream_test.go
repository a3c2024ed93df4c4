package server

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobleung/ds-broadcaster/internal/config"
)

func TestRoomConnect_RejectedWhenRateLimited(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.ConnectionBurst = 0
	})
	cookies := login(t, srv, "alice")
	roomID := createRoom(t, srv, cookies, "busy")

	rec := doRequest(srv, http.MethodGet, fmt.Sprintf("/rooms/%d/connect", roomID), "", nil, cookies)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRoomConnect_NonMemberForbidden(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")
	roomID := createRoom(t, srv, alice, "private")

	bob := login(t, srv, "bob")
	rec := doRequest(srv, http.MethodGet, fmt.Sprintf("/rooms/%d/connect", roomID), "", nil, bob)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// readFrame reads one SSE frame (up to and including its blank line).
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			return b.String()
		}
		b.WriteString(line)
	}
}

func TestRoomConnect_StreamsPresenceAndMessages(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	resp, err := client.PostForm(ts.URL+"/login", url.Values{"name": {"alice"}})
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.PostForm(ts.URL+"/rooms", url.Values{"name": {"general"}})
	require.NoError(t, err)
	roomURL := resp.Request.URL.String()
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, roomURL+"/connect", nil)
	require.NoError(t, err)

	stream, err := client.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	require.Equal(t, http.StatusOK, stream.StatusCode)
	require.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	// First frame is the presence broadcast triggered by our own connect.
	reader := bufio.NewReader(stream.Body)
	frame := readFrame(t, reader)
	assert.Contains(t, frame, "event: patch-elements")
	assert.Contains(t, frame, "room-members")
	assert.Contains(t, frame, "alice")

	body := strings.NewReader(`{"message_to_send":"hello stream"}`)
	msgReq, err := http.NewRequest(http.MethodPost, roomURL+"/messages", body)
	require.NoError(t, err)
	msgReq.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(msgReq)
	require.NoError(t, err)
	resp.Body.Close()

	frame = readFrame(t, reader)
	assert.Contains(t, frame, "event: patch-elements")
	assert.Contains(t, frame, "hello stream")
}
