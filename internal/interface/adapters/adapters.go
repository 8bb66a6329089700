// Package adapters picks the chat backend the bot runs on.
package adapters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"spoilerBot/internal/domain"
	discordadapter "spoilerBot/internal/interface/adapters/discord"
	mattermostadapter "spoilerBot/internal/interface/adapters/mattermost"
)

var (
	ErrNoCredentials     = errors.New("adapters: either token or client is required")
	ErrTokenAndClient    = errors.New("adapters: token and client are mutually exclusive")
	ErrUnsupportedClient = errors.New("adapters: unsupported client type")
)

type Options struct {
	// Backend is "discord" or "mattermost". Required with Token, optional
	// with Client.
	Backend   string
	Token     string
	ServerURL string

	// Client is a pre-built *discordgo.Session or *model.Client4.
	Client any
}

// New builds the transport for opts. A pre-built client selects its backend
// by its concrete type.
func New(opts Options, log zerolog.Logger) (domain.Transport, error) {
	hasToken := strings.TrimSpace(opts.Token) != ""
	switch {
	case hasToken && opts.Client != nil:
		return nil, ErrTokenAndClient
	case !hasToken && opts.Client == nil:
		return nil, ErrNoCredentials
	}

	if opts.Client != nil {
		return fromClient(opts, log)
	}

	switch domain.Platform(strings.ToLower(opts.Backend)) {
	case domain.PlatformDiscord:
		return newDiscord(discordadapter.Config{Token: opts.Token}, log)
	case domain.PlatformMattermost:
		return newMattermost(mattermostadapter.Config{
			ServerURL: opts.ServerURL,
			Token:     opts.Token,
		}, log)
	default:
		return nil, fmt.Errorf("adapters: unknown backend %q", opts.Backend)
	}
}

func fromClient(opts Options, log zerolog.Logger) (domain.Transport, error) {
	var platform domain.Platform
	var build func() (domain.Transport, error)

	switch c := opts.Client.(type) {
	case *discordgo.Session:
		platform = domain.PlatformDiscord
		build = func() (domain.Transport, error) {
			return newDiscord(discordadapter.Config{Session: c}, log)
		}
	case *model.Client4:
		platform = domain.PlatformMattermost
		build = func() (domain.Transport, error) {
			return newMattermost(mattermostadapter.Config{Client: c}, log)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedClient, opts.Client)
	}

	if opts.Backend != "" && domain.Platform(strings.ToLower(opts.Backend)) != platform {
		return nil, fmt.Errorf("adapters: backend %q does not match %s client", opts.Backend, platform)
	}
	return build()
}

func newDiscord(cfg discordadapter.Config, log zerolog.Logger) (domain.Transport, error) {
	a, err := discordadapter.NewAdapter(cfg, log)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newMattermost(cfg mattermostadapter.Config, log zerolog.Logger) (domain.Transport, error) {
	a, err := mattermostadapter.NewAdapter(cfg, log)
	if err != nil {
		return nil, err
	}
	return a, nil
}
