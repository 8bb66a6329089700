package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spoilerBot/internal/app/events"
	"spoilerBot/internal/domain"
)

func startTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg.Logger = zerolog.Nop()
	s := NewServer(cfg)
	ts := httptest.NewServer(s.Handler(ctx))
	t.Cleanup(ts.Close)
	return s, ts, ctx
}

func dial(t *testing.T, s *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestBroadcast(t *testing.T) {
	s, ts, ctx := startTestServer(t, Config{})
	conn := dial(t, s, ts)

	require.NoError(t, s.Broadcast(ctx, Envelope{Type: "spoiler:posted", Data: map[string]string{"id": "1"}}))

	env := readEnvelope(t, conn)
	assert.Equal(t, "spoiler:posted", env["type"])
	assert.Equal(t, map[string]any{"id": "1"}, env["data"])
}

func TestForward_RelaysBusEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	s, ts, ctx := startTestServer(t, Config{Bus: bus, Topics: events.Topics})
	s.forward(ctx)
	conn := dial(t, s, ts)

	dto := events.NewSpoilerEventDTO(events.TopicSpoilerRejected, "rejected", domain.Message{
		Platform: domain.PlatformMattermost,
		ID:       "p1",
	})
	bus.Publish(events.TopicSpoilerRejected, dto)

	env := readEnvelope(t, conn)
	assert.Equal(t, events.TopicSpoilerRejected, env["type"])
	data := env["data"].(map[string]any)
	assert.Equal(t, "p1", data["trigger_id"])
	assert.Equal(t, "mattermost", data["platform"])
}

func TestClientDisconnectIsRemoved(t *testing.T) {
	s, ts, _ := startTestServer(t, Config{})
	conn := dial(t, s, ts)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthzAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "spoilerbot_messages_total 0\n")
	})
	_, ts, _ := startTestServer(t, Config{Metrics: metrics})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp2, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "spoilerbot_messages_total")
}

func TestMetricsNotServedWithoutHandler(t *testing.T) {
	_, ts, _ := startTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
