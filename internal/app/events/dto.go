package events

import (
	"time"

	"github.com/google/uuid"

	"spoilerBot/internal/domain"
)

// SpoilerEventDTO describe el payload que se publica en el bus y se envía
// a los clientes del feed de eventos.
type SpoilerEventDTO struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Outcome   string `json:"outcome"`
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	TriggerID string `json:"trigger_id"`
	SourceID  string `json:"source_id,omitempty"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewSpoilerEventDTO crea un DTO a partir del mensaje que disparó el pipeline.
func NewSpoilerEventDTO(topic, outcome string, trigger domain.Message) SpoilerEventDTO {
	return SpoilerEventDTO{
		ID:        uuid.NewString(),
		Topic:     topic,
		Outcome:   outcome,
		Platform:  string(trigger.Platform),
		ChannelID: trigger.ChannelID,
		TriggerID: trigger.ID,
		UserID:    trigger.AuthorID,
		Username:  trigger.AuthorDisplayName,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
