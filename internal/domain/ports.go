package domain

import "context"

type MessageHandler func(ctx context.Context, msg Message) error

// Transport is the uniform surface both chat backends are normalized to.
type Transport interface {
	Platform() Platform
	SetHandler(h MessageHandler)
	Start(ctx context.Context) error

	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
	DeleteMessage(ctx context.Context, msg Message) error
	HasRole(ctx context.Context, channelID, userID string, roleIDs []string) (bool, error)
	SendMessage(ctx context.Context, channelID, text string) error
	SendFile(ctx context.Context, channelID, filePath, fileName, caption string) error
	SetStatus(ctx context.Context, text string) error

	BotID() string
	Mention(userID, displayName string) string
}

// OutgoingMessagePort is the subset of Transport used for replies.
type OutgoingMessagePort interface {
	SendMessage(ctx context.Context, channelID, text string) error
}

// RoleChecker answers role membership questions for permission checks.
type RoleChecker interface {
	HasRole(ctx context.Context, channelID, userID string, roleIDs []string) (bool, error)
}

// MessageFetcher resolves a message referenced by id.
type MessageFetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
}
