// Package presence tracks which user is reachable on which connection.
package presence

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// ConnID identifies one live client connection. It is assigned by the
// transport; the registry only stores and compares it.
type ConnID string

// Entry binds a username to the connection currently representing it.
type Entry struct {
	Username string `json:"username"`
	Conn     ConnID `json:"conn"`
}

// RegisterResult describes what a registration replaced.
type RegisterResult struct {
	// Displaced is the connection that held the username before, if it was
	// a different connection.
	Displaced ConnID
	// Previous is the username the connection held before, if different.
	Previous string
}

// Registry maps usernames to connections. A username has at most one entry
// and a connection appears in at most one entry.
type Registry struct {
	byUser map[string]ConnID
	byConn map[ConnID]string
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]ConnID),
		byConn: make(map[ConnID]string),
	}
}

// Register binds username to conn. Last registration wins: a prior holder of
// the username loses its entry, and a prior username of conn is dropped.
func (r *Registry) Register(username string, conn ConnID) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res RegisterResult

	if prevConn, ok := r.byUser[username]; ok && prevConn != conn {
		delete(r.byConn, prevConn)
		res.Displaced = prevConn
	}
	if prevUser, ok := r.byConn[conn]; ok && prevUser != username {
		delete(r.byUser, prevUser)
		res.Previous = prevUser
	}

	r.byUser[username] = conn
	r.byConn[conn] = username
	return res
}

// Unregister removes the entry held by conn and returns its username.
// Unknown connections are not an error.
func (r *Registry) Unregister(conn ConnID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[conn]
	if !ok {
		return "", false
	}
	delete(r.byConn, conn)
	delete(r.byUser, username)
	return username, true
}

// Lookup returns the connection registered for username.
func (r *Registry) Lookup(username string) (ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[username]
	return conn, ok
}

// UsernameOf returns the username registered on conn.
func (r *Registry) UsernameOf(conn ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	username, ok := r.byConn[conn]
	return username, ok
}

// Snapshot returns the registered usernames in sorted order.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	users := lo.Keys(r.byUser)
	r.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Entries returns a copy of all entries sorted by username.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	entries := lo.MapToSlice(r.byUser, func(username string, conn ConnID) Entry {
		return Entry{Username: username, Conn: conn}
	})
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})
	return entries
}

// Len returns the number of registered usernames.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
