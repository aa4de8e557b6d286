package internal

import (
	"sort"
	"sync"
)

// PresenceTable tracks which usernames currently have a live connection and
// which socket ID holds the binding. The hub's run loop is the only writer;
// HTTP handlers and the metrics endpoint read snapshots.
type PresenceTable struct {
	mu     sync.RWMutex
	online map[string]string // username → socket id
}

func NewPresenceTable() *PresenceTable {
	return &PresenceTable{online: make(map[string]string)}
}

// Set binds a username to a socket ID, replacing any previous binding for
// that username (last registration wins).
func (p *PresenceTable) Set(username, socketID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[username] = socketID
}

// Remove drops the binding for a username, but only if it is still held by
// the given socket ID. Returns true when a binding was removed.
func (p *PresenceTable) Remove(username, socketID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.online[username]; ok && current == socketID {
		delete(p.online, username)
		return true
	}
	return false
}

// Online reports whether a username has a live binding.
func (p *PresenceTable) Online(username string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[username]
	return ok
}

// Usernames returns a sorted snapshot of the online usernames.
func (p *PresenceTable) Usernames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.online))
	for name := range p.online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveCount returns the number of online usernames.
func (p *PresenceTable) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.online)
}
