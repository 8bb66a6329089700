package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spoilerBot/internal/domain"
)

func receive(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("no payload received")
		return nil
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	posted, unsubPosted := bus.Subscribe(TopicSpoilerPosted)
	defer unsubPosted()
	failed, unsubFailed := bus.Subscribe(TopicSpoilerFailed)
	defer unsubFailed()

	bus.Publish(TopicSpoilerPosted, "hello")
	bus.Publish("", "ignored")

	assert.Equal(t, "hello", receive(t, posted))
	select {
	case v := <-failed:
		t.Fatalf("unexpected payload on other topic: %v", v)
	default:
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, unsub := bus.Subscribe(TopicSpoilerRejected)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)

	bus.Publish(TopicSpoilerRejected, "nobody listens")
}

func TestBus_DropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	_, unsub := bus.Subscribe(TopicSpoilerPosted)
	defer unsub()

	for i := 0; i < defaultBufferSize+10; i++ {
		bus.Publish(TopicSpoilerPosted, i)
	}

	bus.dropMu.Lock()
	defer bus.dropMu.Unlock()
	assert.Equal(t, uint64(10), bus.dropCounts[TopicSpoilerPosted])
}

func TestBus_Close(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	ch, unsub := bus.Subscribe(TopicSpoilerPosted)

	bus.Close()
	_, ok := <-ch
	assert.False(t, ok)

	unsub()
	bus.Publish(TopicSpoilerPosted, "after close")

	late, _ := bus.Subscribe(TopicSpoilerPosted)
	_, ok = <-late
	assert.False(t, ok)
}

func TestNewSpoilerEventDTO(t *testing.T) {
	trigger := domain.Message{
		Platform:          domain.PlatformDiscord,
		ID:                "m1",
		ChannelID:         "c1",
		AuthorID:          "u1",
		AuthorDisplayName: "alice",
	}
	dto := NewSpoilerEventDTO(TopicSpoilerPosted, "self-spoiler", trigger)

	require.NotEmpty(t, dto.ID)
	assert.Equal(t, "discord", dto.Platform)
	assert.Equal(t, "m1", dto.TriggerID)
	assert.Equal(t, "u1", dto.UserID)
	assert.Equal(t, "self-spoiler", dto.Outcome)
	_, err := time.Parse(time.RFC3339Nano, dto.Timestamp)
	assert.NoError(t, err)
}
