package spoiler

import (
	"context"
	"fmt"
	"sync"

	"spoilerBot/internal/domain"
)

// fakeBackend records the fetch and role calls made by the engine.
type fakeBackend struct {
	mu sync.Mutex

	messages map[string]domain.Message
	roles    map[string][]string
	roleErr  error

	fetchCalls int
	roleCalls  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		messages: make(map[string]domain.Message),
		roles:    make(map[string][]string),
	}
}

func (f *fakeBackend) FetchMessage(_ context.Context, channelID, messageID string) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	m, ok := f.messages[channelID+"/"+messageID]
	if !ok {
		return domain.Message{}, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeBackend) HasRole(_ context.Context, _, userID string, roleIDs []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleCalls++
	if f.roleErr != nil {
		return false, f.roleErr
	}
	for _, have := range f.roles[userID] {
		for _, want := range roleIDs {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeBackend) calls() (fetch, role int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.roleCalls
}
