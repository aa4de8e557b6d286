package internal

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"quickchat/internal/storage"
)

// memStore is an in-memory Store used by hub and handler tests so they run
// without a live MongoDB. Setting err makes every call fail with it.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*storage.User
	messages []storage.Message
	err      error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*storage.User)}
}

func (m *memStore) UpsertUser(_ context.Context, username, socketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	user, ok := m.users[username]
	if !ok {
		user = &storage.User{
			ID:       primitive.NewObjectID(),
			Username: username,
			JoinedAt: time.Now().UTC(),
		}
		m.users[username] = user
	}
	id := socketID
	user.SocketID = &id
	return nil
}

func (m *memStore) DetachSocket(_ context.Context, socketID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	for _, user := range m.users {
		if user.SocketID != nil && *user.SocketID == socketID {
			user.SocketID = nil
			return user.Username, nil
		}
	}
	return "", nil
}

func (m *memStore) OnlineUsernames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	names := make([]string, 0)
	for _, user := range m.users {
		if user.SocketID != nil {
			names = append(names, user.Username)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) InsertMessage(_ context.Context, message *storage.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	m.messages = append(m.messages, *message)
	return nil
}

func (m *memStore) ListMessages(_ context.Context) ([]storage.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]storage.Message, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

func (m *memStore) DeleteAllMessages(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = nil
	return nil
}

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memStore) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
