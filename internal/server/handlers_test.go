package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/bobleung/ds-broadcaster/broadcast"
	"github.com/bobleung/ds-broadcaster/internal/config"
	"github.com/bobleung/ds-broadcaster/internal/rooms"
)

// --- Test helpers ---

func newTestConfig() *config.Config {
	return &config.Config{
		AppEnv:              "test",
		Port:                "0",
		LogLevel:            "error",
		LogFormat:           "text",
		SessionSecret:       "test-secret-key-32-bytes-long!!!",
		HeartbeatInterval:   15 * time.Second,
		MaxConnections:      100,
		MaxConnectionsPerIP: 10,
		ConnectionRate:      1000,
		ConnectionBurst:     1000,
	}
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()

	cfg := newTestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	broadcaster := broadcast.New()
	t.Cleanup(broadcaster.Stop)

	srv, err := NewServer(cfg, broadcaster, rooms.NewStore())
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, target, contentType string, body io.Reader, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func doForm(srv *Server, target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return doRequest(srv, http.MethodPost, target, echo.MIMEApplicationForm,
		strings.NewReader(form.Encode()), cookies)
}

// login creates the user on first use and returns its session cookies.
func login(t *testing.T, srv *Server, name string) []*http.Cookie {
	t.Helper()
	rec := doForm(srv, "/login", url.Values{"name": {name}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

var roomLocation = regexp.MustCompile(`^/rooms/(\d+)$`)

func createRoom(t *testing.T, srv *Server, cookies []*http.Cookie, name string) int64 {
	t.Helper()
	rec := doForm(srv, "/rooms", url.Values{"name": {name}}, cookies)
	require.Equal(t, http.StatusFound, rec.Code)

	m := roomLocation.FindStringSubmatch(rec.Header().Get("Location"))
	require.NotNil(t, m, "expected redirect to the new room")
	id, err := strconv.ParseInt(m[1], 10, 64)
	require.NoError(t, err)
	return id
}

func joinRoom(t *testing.T, srv *Server, cookies []*http.Cookie, roomID int64) {
	t.Helper()
	rec := doForm(srv, fmt.Sprintf("/rooms/%d/join", roomID), nil, cookies)
	require.Equal(t, http.StatusFound, rec.Code)
}
