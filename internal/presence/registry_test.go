package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/courier/internal/bus"
)

func TestRegisterReplacesPrevious(t *testing.T) {
	r := NewRegistry(nil, nil)
	h1, h2 := &FakeConn{}, &FakeConn{}

	r.Register("u", h1)
	r.Register("u", h2)

	got, ok := r.Lookup("u")
	if !ok || got != h2 {
		t.Fatalf("Lookup(u) = %v, %v; want h2", got, ok)
	}
	if !h1.Closed() {
		t.Error("stale handle h1 was not closed")
	}
	if h2.Closed() {
		t.Error("active handle h2 was closed")
	}
}

// TestStaleUnregisterKeepsNewer covers a reconnect where the old socket's
// teardown fires after the new socket registered.
func TestStaleUnregisterKeepsNewer(t *testing.T) {
	r := NewRegistry(nil, nil)
	h1, h2 := &FakeConn{}, &FakeConn{}

	r.Register("u", h1)
	r.Register("u", h2)
	if r.Unregister("u", h1) {
		t.Error("Unregister with stale handle reported removal")
	}

	got, ok := r.Lookup("u")
	if !ok || got != h2 {
		t.Fatalf("Lookup(u) = %v, %v; want h2", got, ok)
	}

	if !r.Unregister("u", h2) {
		t.Error("Unregister with active handle should remove")
	}
	if _, ok := r.Lookup("u"); ok {
		t.Error("u still present after unregister")
	}
}

func TestRegisterSameHandleTwice(t *testing.T) {
	r := NewRegistry(nil, nil)
	h := &FakeConn{}
	r.Register("u", h)
	r.Register("u", h)
	if h.Closed() {
		t.Error("re-registering the same handle must not close it")
	}
}

func TestOnlineSorted(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register("c", &FakeConn{})
	r.Register("a", &FakeConn{})
	r.Register("b", &FakeConn{})

	got := r.Online()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Online() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Online()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPresenceEvents(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("presence.", 10)
	defer unsub()

	r := NewRegistry(b, nil)
	h := &FakeConn{}
	r.Register("u", h)
	r.Unregister("u", h)

	for _, want := range []string{bus.KindPresenceOnline, bus.KindPresenceOffline} {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("kind = %s, want %s", evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestConcurrentReconnects(t *testing.T) {
	r := NewRegistry(nil, nil)

	const n = 50
	conns := make([]*FakeConn, n)
	for i := range conns {
		conns[i] = &FakeConn{}
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("u", c)
			// Every connection tears itself down right away; only the one
			// still registered may actually be removed.
			r.Unregister("u", c)
		}()
	}
	wg.Wait()

	if c, ok := r.Lookup("u"); ok {
		t.Errorf("u still mapped to %p after every connection left", c)
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(nil, nil)
	h1, h2 := &FakeConn{}, &FakeConn{}
	r.Register("a", h1)
	r.Register("b", h2)

	r.CloseAll()
	if !h1.Closed() || !h2.Closed() {
		t.Error("CloseAll must close every connection")
	}
	if len(r.Online()) != 0 {
		t.Error("registry not empty after CloseAll")
	}
}
