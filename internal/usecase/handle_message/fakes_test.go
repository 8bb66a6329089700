package handle_message

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"spoilerBot/internal/domain"
	"spoilerBot/internal/infrastructure/render"
)

// fakeTransport records every outbound call in order.
type fakeTransport struct {
	mu sync.Mutex

	botID    string
	messages map[string]domain.Message
	roles    map[string][]string

	deleteErr map[string]error
	sendErr   error
	fileErr   error

	ops   []string
	sent  []string
	files []sentFile
}

type sentFile struct {
	channelID string
	name      string
	caption   string
	existed   bool
}

var _ domain.Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		botID:     "bot",
		messages:  make(map[string]domain.Message),
		roles:     make(map[string][]string),
		deleteErr: make(map[string]error),
	}
}

func (f *fakeTransport) Platform() domain.Platform { return domain.PlatformDiscord }
func (f *fakeTransport) SetHandler(domain.MessageHandler) {}
func (f *fakeTransport) Start(ctx context.Context) error { <-ctx.Done(); return nil }
func (f *fakeTransport) SetStatus(context.Context, string) error { return nil }
func (f *fakeTransport) BotID() string { return f.botID }
func (f *fakeTransport) Mention(userID, _ string) string { return "<@" + userID + ">" }

func (f *fakeTransport) record(op string) {
	f.ops = append(f.ops, op)
}

func (f *fakeTransport) FetchMessage(_ context.Context, channelID, messageID string) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fetch " + messageID)
	m, ok := f.messages[channelID+"/"+messageID]
	if !ok {
		return domain.Message{}, domain.NewTransportError(domain.PlatformDiscord, "fetch message",
			fmt.Errorf("%w: %s", domain.ErrNotFound, messageID))
	}
	return m, nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete " + msg.ID)
	return f.deleteErr[msg.ID]
}

func (f *fakeTransport) HasRole(_ context.Context, _, userID string, roleIDs []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("roles " + userID)
	for _, have := range f.roles[userID] {
		for _, want := range roleIDs {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeTransport) SendMessage(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("send")
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeTransport) SendFile(_ context.Context, channelID, filePath, fileName, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("file")
	_, statErr := os.Stat(filePath)
	f.files = append(f.files, sentFile{channelID: channelID, name: fileName, caption: caption, existed: statErr == nil})
	return f.fileErr
}

func (f *fakeTransport) snapshot() (ops, sent []string, files []sentFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...), append([]string(nil), f.sent...), append([]sentFile(nil), f.files...)
}

type renderCall struct {
	sourceID string
	text     string
	lines    []string
	path     string
}

// recordingRenderer wraps the real renderer and remembers each call.
type recordingRenderer struct {
	inner *render.Renderer
	err   error
	panic bool

	mu    sync.Mutex
	calls []renderCall
}

func newRecordingRenderer(t *testing.T) *recordingRenderer {
	t.Helper()
	r, err := render.New(render.Config{TempDir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	return &recordingRenderer{inner: r}
}

func (r *recordingRenderer) Render(ctx context.Context, sourceID, text string, maxLines int) (string, error) {
	if r.panic {
		panic("renderer exploded")
	}
	if r.err != nil {
		return "", r.err
	}
	path, err := r.inner.Render(ctx, sourceID, text, maxLines)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renderCall{
		sourceID: sourceID,
		text:     text,
		lines:    r.inner.Layout(text, maxLines),
		path:     path,
	})
	return path, err
}

func (r *recordingRenderer) snapshot() []renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderCall(nil), r.calls...)
}

type recordingBus struct {
	mu     sync.Mutex
	topics []string
	last   map[string]any
}

func (b *recordingBus) Publish(topic string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		b.last = make(map[string]any)
	}
	b.topics = append(b.topics, topic)
	b.last[topic] = payload
}

func (b *recordingBus) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.topics...)
}

var errBoom = errors.New("boom")

// recordingOut is a reply port separate from the transport.
type recordingOut struct {
	mu   sync.Mutex
	sent []string
}

func (o *recordingOut) SendMessage(_ context.Context, channelID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, channelID+": "+text)
	return nil
}

func (o *recordingOut) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.sent...)
}
