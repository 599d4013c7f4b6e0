// Package runtime handles live-session state: who is online, which sink
// serves which session, and event delivery. It orchestrates the system
// without containing business logic or domain rules.
package runtime

import (
	"sort"
	"sync"
)

type Set map[string]struct{}

// Presence is the process-wide map from username to the set of currently
// open session ids. An entry exists if and only if its set is non-empty.
// All operations share one mutex so that the online/offline transition
// booleans are computed in the same atomic step as the mutation.
type Presence struct {
	mu       sync.Mutex
	sessions map[string]Set // map username -> open session ids
}

func NewPresence() *Presence {
	return &Presence{sessions: make(map[string]Set)}
}

// Connect records a new live session for username.
// It returns true exactly when this is the user's first concurrently-open
// session, i.e. the offline -> online transition. Callers must supply
// unique session ids.
func (p *Presence) Connect(username, sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids, ok := p.sessions[username]
	if !ok {
		p.sessions[username] = Set{sessionID: {}}
		return true
	}
	ids[sessionID] = struct{}{}
	return false
}

// Disconnect removes the session. It returns true exactly when the removal
// empties the user's set, i.e. the online -> offline transition. An unknown
// user is a no-op.
func (p *Presence) Disconnect(username, sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids, ok := p.sessions[username]
	if !ok {
		return false
	}
	delete(ids, sessionID)

	// Never keep an empty set around
	if len(ids) == 0 {
		delete(p.sessions, username)
		return true
	}
	return false
}

// OnlineUsers returns a sorted snapshot of every user holding at least one
// open session.
func (p *Presence) OnlineUsers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := make([]string, 0, len(p.sessions))
	for username := range p.sessions {
		users = append(users, username)
	}
	sort.Strings(users)
	return users
}

// SessionsFor returns the ids of every open session for username,
// empty when the user is offline.
func (p *Presence) SessionsFor(username string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids, ok := p.sessions[username]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(ids))
	for id := range ids {
		res = append(res, id)
	}
	return res
}
