// Package domain contains core concepts of the presence and messaging system.
// This file defines Groups, the canonical rendezvous point for a pair of
// users, and the Connections currently joined to them.
package domain

// Connection ties one live session to the user owning it.
// The session id itself is issued by the transport layer.
type Connection struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

// Group is the durable conversation record for exactly two usernames.
// The Name is canonical (see CanonicalName). Connections is the ephemeral
// set of sessions currently viewing the conversation; it is only meaningful
// within the current process lifetime and is wiped at startup.
type Group struct {
	Name        string       `json:"name"`
	Connections []Connection `json:"connections"`
}

func NewGroup(name string) Group {
	return Group{Name: name}
}

// CanonicalName returns the group name for a pair of usernames.
// It is symmetric: the two names are ordered byte-wise (ordinal, never
// locale-sensitive) and joined with a fixed separator, so
// CanonicalName(a, b) == CanonicalName(b, a).
func CanonicalName(a, b string) string {
	if a < b {
		return a + "-" + b
	}
	return b + "-" + a
}

// IsJoined reports whether any connection in the group belongs to username.
// A user with several open sessions counts as joined if at least one of
// them is in the group.
func (g Group) IsJoined(username string) bool {
	for _, c := range g.Connections {
		if c.Username == username {
			return true
		}
	}
	return false
}

// SessionIDs returns the ids of every session currently joined.
func (g Group) SessionIDs() []string {
	ids := make([]string, 0, len(g.Connections))
	for _, c := range g.Connections {
		ids = append(ids, c.SessionID)
	}
	return ids
}

// Add appends the connection unless its session id is already present.
// Join is idempotent per session id.
func (g *Group) Add(conn Connection) bool {
	for _, c := range g.Connections {
		if c.SessionID == conn.SessionID {
			return false
		}
	}
	g.Connections = append(g.Connections, conn)
	return true
}

// Remove drops the connection owned by sessionID, reporting whether it was
// present.
func (g *Group) Remove(sessionID string) bool {
	for i, c := range g.Connections {
		if c.SessionID == sessionID {
			g.Connections = append(g.Connections[:i], g.Connections[i+1:]...)
			return true
		}
	}
	return false
}
