// Package mattermostadapter adapter for mattermost
package mattermostadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"spoilerBot/internal/domain"
)

const defaultReconnectDelay = 5 * time.Second

type Config struct {
	ServerURL string
	Token     string

	// Client is a pre-built API client. ServerURL and Token are ignored
	// when it is set.
	Client *model.Client4

	ReconnectDelay time.Duration
}

var _ domain.Transport = (*Adapter)(nil)

type Adapter struct {
	client         *model.Client4
	serverURL      string
	reconnectDelay time.Duration

	mu      sync.RWMutex
	handler domain.MessageHandler
	botID   string
	status  string

	log zerolog.Logger
}

func NewAdapter(cfg Config, log zerolog.Logger) (*Adapter, error) {
	client := cfg.Client
	if client == nil {
		serverURL := strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
		if serverURL == "" {
			return nil, errors.New("mattermost: server_url vacío")
		}
		token := strings.TrimSpace(cfg.Token)
		if token == "" {
			return nil, errors.New("mattermost: token vacío y sin cliente")
		}
		client = model.NewAPIv4Client(serverURL)
		client.SetToken(token)
	}

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	return &Adapter{
		client:         client,
		serverURL:      client.URL,
		reconnectDelay: delay,
		log:            log.With().Str("component", "mattermost").Logger(),
	}, nil
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformMattermost
}

func (a *Adapter) SetHandler(h domain.MessageHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// Start authenticates, then reads the WebSocket event stream until ctx is
// cancelled, reconnecting whenever the stream drops.
func (a *Adapter) Start(ctx context.Context) error {
	me, resp, err := a.client.GetMe(ctx, "")
	if err != nil {
		return wrapErr("get me", resp, err)
	}
	a.setBotID(me.Id)
	a.log.Info().Str("user_id", me.Id).Str("username", me.Username).Msg("mattermost: autenticado")
	a.applyStatus(ctx)

	wsURL := httpToWS(a.serverURL)
	for {
		if err := a.listen(ctx, wsURL); err != nil {
			a.log.Error().Err(err).Str("ws_url", wsURL).Msg("mattermost: websocket caído")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.reconnectDelay):
			a.log.Info().Msg("mattermost: reconectando")
		}
	}
}

func (a *Adapter) listen(ctx context.Context, wsURL string) error {
	ws, err := model.NewWebSocketClient4(wsURL, a.client.AuthToken)
	if err != nil {
		return fmt.Errorf("mattermost: websocket: %w", err)
	}
	defer ws.Close()

	ws.Listen()
	a.log.Info().Str("ws_url", wsURL).Msg("mattermost: websocket conectado")

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ws.EventChannel:
			if !ok {
				if ws.ListenError != nil {
					return ws.ListenError
				}
				return errors.New("mattermost: canal de eventos cerrado")
			}
			if evt == nil {
				continue
			}
			a.handleEvent(ctx, evt)
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, evt *model.WebSocketEvent) {
	if evt.EventType() != model.WebsocketEventPosted {
		return
	}

	msg, ok, err := a.parsePosted(evt)
	if err != nil {
		a.log.Warn().Err(err).Msg("mattermost: evento posted inválido")
		return
	}
	if !ok {
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	if err := handler(ctx, msg); err != nil {
		a.log.Error().Err(err).Str("post_id", msg.ID).Msg("mattermost: error en handler")
	}
}

// parsePosted returns ok=false for posts that must not reach the handler:
// the bot's own posts and system messages.
func (a *Adapter) parsePosted(evt *model.WebSocketEvent) (domain.Message, bool, error) {
	postJSON, ok := evt.GetData()["post"].(string)
	if !ok {
		return domain.Message{}, false, errors.New("posted event missing post data")
	}

	var post model.Post
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		return domain.Message{}, false, fmt.Errorf("unmarshal post: %w", err)
	}

	if post.UserId == a.BotID() {
		return domain.Message{}, false, nil
	}
	if post.Type != "" && post.Type != model.PostTypeDefault {
		return domain.Message{}, false, nil
	}

	senderName, _ := evt.GetData()["sender_name"].(string)
	return mapPostToDomain(&post, strings.TrimPrefix(senderName, "@")), true, nil
}

func (a *Adapter) FetchMessage(ctx context.Context, channelID, messageID string) (domain.Message, error) {
	post, resp, err := a.client.GetPost(ctx, messageID, "")
	if err != nil {
		return domain.Message{}, wrapErr("get post", resp, err)
	}
	if post.ChannelId != channelID || post.DeleteAt != 0 {
		return domain.Message{}, domain.NewTransportError(domain.PlatformMattermost, "get post",
			fmt.Errorf("%w: post %s not in channel %s", domain.ErrNotFound, messageID, channelID))
	}

	username := ""
	if user, _, err := a.client.GetUser(ctx, post.UserId, ""); err != nil {
		a.log.Warn().Err(err).Str("user_id", post.UserId).Msg("mattermost: no se pudo obtener el usuario")
	} else {
		username = user.Username
	}

	return mapPostToDomain(post, username), nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, msg domain.Message) error {
	resp, err := a.client.DeletePost(ctx, msg.ID)
	return wrapErr("delete post", resp, err)
}

// HasRole checks the team roles of the user in the team owning channelID.
// Scheme flags count as the matching built-in team role. Direct and group
// channels have no team and never match.
func (a *Adapter) HasRole(ctx context.Context, channelID, userID string, roleIDs []string) (bool, error) {
	ch, resp, err := a.client.GetChannel(ctx, channelID, "")
	if err != nil {
		return false, wrapErr("get channel", resp, err)
	}
	if ch.TeamId == "" {
		return false, nil
	}

	member, resp, err := a.client.GetTeamMember(ctx, ch.TeamId, userID, "")
	if err != nil {
		return false, wrapErr("get team member", resp, err)
	}

	return intersects(memberRoles(member), roleIDs), nil
}

func memberRoles(m *model.TeamMember) []string {
	roles := strings.Fields(m.Roles)
	if m.SchemeAdmin {
		roles = append(roles, model.TeamAdminRoleId)
	}
	if m.SchemeUser {
		roles = append(roles, model.TeamUserRoleId)
	}
	if m.SchemeGuest {
		roles = append(roles, model.TeamGuestRoleId)
	}
	return roles
}

func (a *Adapter) SendMessage(ctx context.Context, channelID, text string) error {
	if text == "" {
		return nil
	}
	_, resp, err := a.client.CreatePost(ctx, &model.Post{ChannelId: channelID, Message: text})
	return wrapErr("create post", resp, err)
}

func (a *Adapter) SendFile(ctx context.Context, channelID, filePath, fileName, caption string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return wrapErr("read file", nil, err)
	}

	upload, resp, err := a.client.UploadFile(ctx, data, channelID, fileName)
	if err != nil {
		return wrapErr("upload file", resp, err)
	}
	if len(upload.FileInfos) == 0 {
		return wrapErr("upload file", nil, errors.New("no file info returned"))
	}

	_, resp, err = a.client.CreatePost(ctx, &model.Post{
		ChannelId: channelID,
		Message:   caption,
		FileIds:   model.StringArray{upload.FileInfos[0].Id},
	})
	return wrapErr("create post", resp, err)
}

// SetStatus stores the custom status text and publishes it once the bot user
// is known.
func (a *Adapter) SetStatus(ctx context.Context, text string) error {
	a.mu.Lock()
	a.status = text
	botID := a.botID
	a.mu.Unlock()

	if botID == "" {
		return nil
	}
	return a.updateStatus(ctx, botID, text)
}

func (a *Adapter) applyStatus(ctx context.Context) {
	a.mu.RLock()
	text, botID := a.status, a.botID
	a.mu.RUnlock()
	if text == "" || botID == "" {
		return
	}
	if err := a.updateStatus(ctx, botID, text); err != nil {
		a.log.Warn().Err(err).Msg("mattermost: no se pudo actualizar el estado")
	}
}

func (a *Adapter) updateStatus(ctx context.Context, botID, text string) error {
	_, resp, err := a.client.UpdateUserCustomStatus(ctx, botID, &model.CustomStatus{Text: text})
	return wrapErr("update custom status", resp, err)
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

// Mention uses the username, which is what Mattermost expands after "@".
func (a *Adapter) Mention(userID, displayName string) string {
	if displayName == "" {
		return "@" + userID
	}
	return "@" + displayName
}

func mapPostToDomain(p *model.Post, username string) domain.Message {
	return domain.Message{
		Platform:          domain.PlatformMattermost,
		ID:                p.Id,
		ChannelID:         p.ChannelId,
		AuthorID:          p.UserId,
		AuthorDisplayName: username,
		Content:           p.Message,
	}
}

func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
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

func wrapErr(op string, resp *model.Response, err error) error {
	if err == nil {
		return nil
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	var appErr *model.AppError
	if status == 0 && errors.As(err, &appErr) {
		status = appErr.StatusCode
	}
	switch status {
	case http.StatusNotFound, http.StatusForbidden:
		err = fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return domain.NewTransportError(domain.PlatformMattermost, op, err)
}
