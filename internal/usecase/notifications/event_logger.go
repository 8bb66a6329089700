package notifications

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"spoilerBot/internal/app/events"
)

type Subscriber interface {
	Subscribe(topic string) (<-chan any, func())
}

// EventLogger centraliza los logs de los eventos de spoilers publicados en
// el bus.
type EventLogger struct {
	bus    Subscriber
	topics []string
	log    zerolog.Logger
}

func NewEventLogger(bus Subscriber, topics []string, log zerolog.Logger) *EventLogger {
	return &EventLogger{
		bus:    bus,
		topics: topics,
		log:    log.With().Str("component", "events").Logger(),
	}
}

// Run logs every event until ctx is cancelled or the bus is closed.
func (l *EventLogger) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, topic := range l.topics {
		topic := topic
		ch, unsubscribe := l.bus.Subscribe(topic)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					l.Log(topic, payload)
				}
			}
		}()
	}
	wg.Wait()
}

func (l *EventLogger) Log(topic string, payload any) {
	dto, ok := payload.(events.SpoilerEventDTO)
	if !ok {
		l.log.Info().Str("topic", topic).Interface("payload", payload).Msg("event")
		return
	}

	ev := l.log.Info()
	if topic == events.TopicSpoilerFailed {
		ev = l.log.Warn()
	}
	ev.Str("topic", topic).
		Str("event_id", dto.ID).
		Str("outcome", dto.Outcome).
		Str("platform", dto.Platform).
		Str("channel_id", dto.ChannelID).
		Str("trigger_id", dto.TriggerID).
		Str("user_id", dto.UserID)
	if dto.SourceID != "" {
		ev.Str("source_id", dto.SourceID)
	}
	if dto.Stage != "" {
		ev.Str("stage", dto.Stage)
	}
	if dto.Error != "" {
		ev.Str("error", dto.Error)
	}
	ev.Msg("spoiler event")
}
