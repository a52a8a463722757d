package delivery

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/presence"
	"github.com/matheus3301/courier/internal/store"
	"github.com/matheus3301/courier/internal/wire"
)

func TestDispatchToPresentReceiver(t *testing.T) {
	reg := presence.NewRegistry(nil, nil)
	conn := &presence.FakeConn{}
	reg.Register("bob", conn)

	d := NewDispatcher(reg, nil, nil)
	d.Dispatch(&store.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"})

	pushes := conn.Pushes()
	if len(pushes) != 1 {
		t.Fatalf("got %d pushes, want 1", len(pushes))
	}
	if pushes[0].Event != wire.EventNewMessage {
		t.Errorf("event = %q, want %q", pushes[0].Event, wire.EventNewMessage)
	}
	msg, ok := pushes[0].Payload.(wire.Message)
	if !ok || msg.ID != "m1" || msg.Text != "hi" {
		t.Errorf("payload = %#v", pushes[0].Payload)
	}
}

func TestDispatchToAbsentReceiver(t *testing.T) {
	reg := presence.NewRegistry(nil, nil)
	sender := &presence.FakeConn{}
	reg.Register("alice", sender)

	d := NewDispatcher(reg, nil, nil)
	d.Dispatch(&store.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"})

	if n := len(sender.Pushes()); n != 0 {
		t.Errorf("sender got %d pushes, want 0", n)
	}
}

func TestDispatchSwallowsPushFailure(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("delivery.", 10)
	defer unsub()

	reg := presence.NewRegistry(nil, nil)
	conn := &presence.FakeConn{PushErr: errors.New("broken pipe")}
	reg.Register("bob", conn)

	d := NewDispatcher(reg, b, nil)
	d.Dispatch(&store.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"})

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindDeliveryDropped {
			t.Errorf("kind = %s, want %s", evt.Kind, bus.KindDeliveryDropped)
		}
		out := evt.Payload.(Outcome)
		if out.UserID != "bob" || out.Err == nil {
			t.Errorf("outcome = %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery.dropped")
	}
}

func TestNotifySeen(t *testing.T) {
	reg := presence.NewRegistry(nil, nil)
	alice := &presence.FakeConn{}
	reg.Register("alice", alice)
	d := NewDispatcher(reg, nil, nil)

	d.NotifySeen("alice", "bob", nil)
	if n := len(alice.Pushes()); n != 0 {
		t.Fatalf("empty notice pushed %d events", n)
	}

	d.NotifySeen("alice", "bob", []string{"m1", "m2"})
	pushes := alice.Pushes()
	if len(pushes) != 1 || pushes[0].Event != wire.EventMessagesSeen {
		t.Fatalf("pushes = %+v", pushes)
	}
	notice := pushes[0].Payload.(wire.SeenNotice)
	if notice.ReaderID != "bob" || len(notice.MessageIDs) != 2 {
		t.Errorf("notice = %+v", notice)
	}
}

func TestBroadcastOnline(t *testing.T) {
	reg := presence.NewRegistry(nil, nil)
	a, b := &presence.FakeConn{}, &presence.FakeConn{}
	reg.Register("a", a)
	reg.Register("b", b)

	NewDispatcher(reg, nil, nil).BroadcastOnline(reg)

	for _, c := range []*presence.FakeConn{a, b} {
		pushes := c.Pushes()
		if len(pushes) != 1 || pushes[0].Event != wire.EventOnlineUsers {
			t.Fatalf("pushes = %+v", pushes)
		}
		if ids := pushes[0].Payload.([]string); len(ids) != 2 {
			t.Errorf("online = %v, want 2 ids", ids)
		}
	}
}
