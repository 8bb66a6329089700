package domain

type Platform string

const (
	PlatformDiscord    Platform = "discord"
	PlatformMattermost Platform = "mattermost"
)

// Message is the backend-neutral form of a chat message. Adapters build it
// from gateway events or fetch responses; it is never persisted.
type Message struct {
	Platform          Platform
	ID                string
	ChannelID         string
	AuthorID          string
	AuthorDisplayName string
	Content           string
}
