// Package discordadapter adapter for discord
package discordadapter

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"spoilerBot/internal/domain"
)

type Config struct {
	// Token of the bot account. Ignored when Session is set.
	Token string

	// Session is a pre-built discordgo session. The adapter will neither
	// open nor close it, but Start switches it to SyncEvents so messages
	// reach the handler in arrival order. Pass it before it is opened, or
	// messages received until Start runs are not seen.
	Session *discordgo.Session
}

// restAPI is the part of *discordgo.Session the adapter calls over REST.
type restAPI interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	UpdateGameStatus(idle int, name string) error
}

var _ restAPI = (*discordgo.Session)(nil)
var _ domain.Transport = (*Adapter)(nil)

type Adapter struct {
	session     *discordgo.Session
	api         restAPI
	ownsSession bool

	mu      sync.RWMutex
	handler domain.MessageHandler
	botID   string
	status  string

	log zerolog.Logger
}

func NewAdapter(cfg Config, log zerolog.Logger) (*Adapter, error) {
	session := cfg.Session
	owns := false
	if session == nil {
		token := strings.TrimSpace(cfg.Token)
		if token == "" {
			return nil, errors.New("discord: token vacío y sin sesión")
		}
		if !strings.HasPrefix(token, "Bot ") {
			token = "Bot " + token
		}
		s, err := discordgo.New(token)
		if err != nil {
			return nil, fmt.Errorf("discord: New: %w", err)
		}
		session = s
		owns = true
	}

	return &Adapter{
		session:     session,
		api:         session,
		ownsSession: owns,
		log:         log.With().Str("component", "discord").Logger(),
	}, nil
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformDiscord
}

func (a *Adapter) SetHandler(h domain.MessageHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// Start registers the gateway handlers, opens the session when the adapter
// created it, and blocks until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	if a.session == nil {
		return errors.New("discord: sesión no inicializada")
	}

	removeReady := a.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			a.setBotID(r.User.ID)
			a.log.Info().Str("user", r.User.Username).Msg("discord: conectado")
		}
		a.applyStatus()
	})
	removeMessage := a.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.dispatch(ctx, m.Message)
	})
	defer removeReady()
	defer removeMessage()

	// handlers en orden de llegada
	a.session.SyncEvents = true

	if a.ownsSession {
		a.session.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentsMessageContent

		if err := a.session.Open(); err != nil {
			return fmt.Errorf("discord: Open: %w", err)
		}
		defer a.session.Close()
	} else if a.session.State != nil && a.session.State.User != nil {
		// sesión ya abierta: el Ready ya pasó
		a.setBotID(a.session.State.User.ID)
		a.applyStatus()
	}

	<-ctx.Done()
	return ctx.Err()
}

func (a *Adapter) dispatch(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil {
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	if err := handler(ctx, mapMessageToDomain(m)); err != nil {
		a.log.Error().Err(err).Str("message_id", m.ID).Msg("discord: error en handler")
	}
}

func (a *Adapter) FetchMessage(ctx context.Context, channelID, messageID string) (domain.Message, error) {
	m, err := a.api.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Message{}, wrapErr("fetch message", err)
	}
	if m.ChannelID == "" {
		m.ChannelID = channelID
	}
	return mapMessageToDomain(m), nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, msg domain.Message) error {
	err := a.api.ChannelMessageDelete(msg.ChannelID, msg.ID, discordgo.WithContext(ctx))
	return wrapErr("delete message", err)
}

// HasRole reports whether the user holds any of roleIDs in the guild that
// owns channelID. Direct messages have no guild and never match.
func (a *Adapter) HasRole(ctx context.Context, channelID, userID string, roleIDs []string) (bool, error) {
	ch, err := a.channel(ctx, channelID)
	if err != nil {
		return false, wrapErr("get channel", err)
	}
	if ch.GuildID == "" {
		return false, nil
	}

	member, err := a.api.GuildMember(ch.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, wrapErr("get guild member", err)
	}

	return intersects(member.Roles, roleIDs), nil
}

func (a *Adapter) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if a.session != nil && a.session.State != nil {
		if ch, err := a.session.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	return a.api.Channel(channelID, discordgo.WithContext(ctx))
}

func (a *Adapter) SendMessage(ctx context.Context, channelID, text string) error {
	if text == "" {
		return nil
	}
	_, err := a.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return wrapErr("send message", err)
}

func (a *Adapter) SendFile(ctx context.Context, channelID, filePath, fileName, caption string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return wrapErr("open file", err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = a.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{{
			Name:        fileName,
			ContentType: contentType,
			Reader:      f,
		}},
	}, discordgo.WithContext(ctx))
	return wrapErr("send file", err)
}

// SetStatus stores the presence text. It is sent right away when the
// gateway is ready, otherwise on the next Ready event.
func (a *Adapter) SetStatus(_ context.Context, text string) error {
	a.mu.Lock()
	a.status = text
	ready := a.botID != ""
	a.mu.Unlock()

	if !ready {
		return nil
	}
	return wrapErr("update status", a.api.UpdateGameStatus(0, text))
}

func (a *Adapter) applyStatus() {
	a.mu.RLock()
	text := a.status
	a.mu.RUnlock()
	if text == "" {
		return
	}
	if err := a.api.UpdateGameStatus(0, text); err != nil {
		a.log.Warn().Err(err).Msg("discord: no se pudo actualizar el estado")
	}
}

func (a *Adapter) BotID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.botID
}

func (a *Adapter) setBotID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botID = id
}

func (a *Adapter) Mention(userID, _ string) string {
	return "<@" + userID + ">"
}

func mapMessageToDomain(m *discordgo.Message) domain.Message {
	msg := domain.Message{
		Platform:  domain.PlatformDiscord,
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorDisplayName = m.Author.Username
		if m.Author.GlobalName != "" {
			msg.AuthorDisplayName = m.Author.GlobalName
		}
	}
	if m.Member != nil && m.Member.Nick != "" {
		msg.AuthorDisplayName = m.Member.Nick
	}
	return msg
}

func intersects(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// wrapErr turns a discordgo error into a domain.TransportError. Unknown or
// inaccessible resources are reported as domain.ErrNotFound.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			err = fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		}
	}
	return domain.NewTransportError(domain.PlatformDiscord, op, err)
}
