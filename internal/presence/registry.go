// Package presence tracks which users currently hold a live connection.
package presence

import (
	"slices"
	"sync"

	"github.com/matheus3301/courier/internal/bus"
	"go.uber.org/zap"
)

// Conn is a live connection to one user.
type Conn interface {
	// Push queues an event for the client without blocking.
	Push(event string, payload any) error
	// Close tears the connection down. It must be safe to call more than once.
	Close() error
}

// Change is the payload of presence.* bus events.
type Change struct {
	UserID string
	Online int
}

// Registry maps a user ID to its single active connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	bus    *bus.Bus
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(b *bus.Bus, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		conns:  make(map[string]Conn),
		bus:    b,
		logger: logger,
	}
}

// Register makes c the active connection for userID. A previous connection
// for the same user is closed; its late Unregister will be ignored.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	prev, had := r.conns[userID]
	r.conns[userID] = c
	online := len(r.conns)
	r.mu.Unlock()

	if had && prev != c {
		r.logger.Info("replacing stale connection", zap.String("user_id", userID))
		_ = prev.Close()
		r.bus.Emit(bus.KindPresenceReplaced, Change{UserID: userID, Online: online})
		return
	}
	r.logger.Debug("user online", zap.String("user_id", userID), zap.Int("online", online))
	r.bus.Emit(bus.KindPresenceOnline, Change{UserID: userID, Online: online})
}

// Unregister removes userID only while c is still its active connection.
// It reports whether an entry was removed.
func (r *Registry) Unregister(userID string, c Conn) bool {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if !ok || cur != c {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	online := len(r.conns)
	r.mu.Unlock()

	r.logger.Debug("user offline", zap.String("user_id", userID), zap.Int("online", online))
	r.bus.Emit(bus.KindPresenceOffline, Change{UserID: userID, Online: online})
	return true
}

// Lookup returns the active connection for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Online returns the IDs of every present user, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Each calls fn for every present user. fn must not call back into r.
func (r *Registry) Each(fn func(userID string, c Conn)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.conns {
		fn(id, c)
	}
}

// CloseAll closes and forgets every connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}
