package presence

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push on a closed connection.
var ErrClosed = errors.New("connection closed")

// FakeConn is an in-memory Conn that records pushes. It lets callers run
// the registry and dispatcher without a network transport.
type FakeConn struct {
	mu      sync.Mutex
	pushed  []Pushed
	closed  bool
	PushErr error
}

// Pushed is one recorded Push call.
type Pushed struct {
	Event   string
	Payload any
}

// Push records the event, or fails if the connection is closed or PushErr is set.
func (f *FakeConn) Push(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.PushErr != nil {
		return f.PushErr
	}
	f.pushed = append(f.pushed, Pushed{Event: event, Payload: payload})
	return nil
}

// Close marks the connection closed.
func (f *FakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Pushes returns a copy of the recorded pushes.
func (f *FakeConn) Pushes() []Pushed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Pushed(nil), f.pushed...)
}
