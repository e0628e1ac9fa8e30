// Package auth binds admin rights to a live connection. A credential
// is checked exactly once, when the connection joins a game; from then
// on authorization is a lookup on the binding, scoped to that one game
// id. Bindings die with the connection, so a reconnect has to present
// the credential again.
package auth

import "sync"

type binding struct {
	gameID string
	admin  bool
}

type Gate struct {
	mu       sync.RWMutex
	bindings map[string]binding
}

func NewGate() *Gate {
	return &Gate{bindings: make(map[string]binding)}
}

// Bind records the authorization outcome for a connection. Re-binding
// (joining another game on the same connection) replaces the old record.
func (g *Gate) Bind(connID, gameID string, admin bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bindings[connID] = binding{gameID: gameID, admin: admin}
}

// Drop discards the connection's binding, on leave or disconnect.
func (g *Gate) Drop(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.bindings, connID)
}

// DropIf discards the binding only while it still points at gameID.
// A connection that has since re-bound to another game keeps the new
// binding; a stale leave must not revoke it.
func (g *Gate) DropIf(connID, gameID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.bindings[connID]; ok && b.gameID == gameID {
		delete(g.bindings, connID)
	}
}

// IsAdmin reports whether the connection holds an admin binding for
// exactly this game id. The credential itself is never re-checked.
func (g *Gate) IsAdmin(connID, gameID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.bindings[connID]
	return ok && b.admin && b.gameID == gameID
}
