package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spoilerBot/internal/app/events"
	"spoilerBot/internal/domain"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if json.Unmarshal([]byte(line), &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestLog_FailedEventIsWarning(t *testing.T) {
	var buf syncBuffer
	l := NewEventLogger(nil, nil, zerolog.New(&buf))

	dto := events.NewSpoilerEventDTO(events.TopicSpoilerFailed, "failed", domain.Message{ID: "m1", ChannelID: "c1"})
	dto.Stage = "upload"
	dto.Error = "boom"
	l.Log(events.TopicSpoilerFailed, dto)

	lines := buf.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "upload", lines[0]["stage"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "m1", lines[0]["trigger_id"])
	assert.Equal(t, "events", lines[0]["component"])
}

func TestRun_LogsUntilCancelled(t *testing.T) {
	var buf syncBuffer
	bus := events.NewBus(zerolog.Nop())
	l := NewEventLogger(bus, events.Topics, zerolog.New(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(events.TopicSpoilerPosted, events.NewSpoilerEventDTO(events.TopicSpoilerPosted, "self-spoiler", domain.Message{ID: "m1"}))
		return len(buf.Lines()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	first := buf.Lines()[0]
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "self-spoiler", first["outcome"])
}

func TestRun_StopsWhenBusCloses(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	l := NewEventLogger(bus, events.Topics, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Close()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
