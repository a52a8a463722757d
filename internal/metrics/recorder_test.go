package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/delivery"
	"github.com/matheus3301/courier/internal/presence"
	"github.com/matheus3301/courier/internal/seen"
	"github.com/matheus3301/courier/internal/status"
	"github.com/matheus3301/courier/internal/wire"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUpdatesCollectors(t *testing.T) {
	r := NewRecorder(bus.New(), nil)

	r.observe(bus.Event{Kind: bus.KindMessageCreated})
	r.observe(bus.Event{Kind: bus.KindMessageCreated})
	r.observe(bus.Event{Kind: bus.KindMessagesSeen, Payload: seen.Transition{IDs: []string{"a", "b"}, Bulk: true}})
	r.observe(bus.Event{Kind: bus.KindMessagesSeen, Payload: seen.Transition{IDs: []string{"c"}}})
	r.observe(bus.Event{Kind: bus.KindDeliveryDropped, Payload: delivery.Outcome{Event: wire.EventNewMessage, Err: errors.New("x")}})
	r.observe(bus.Event{Kind: bus.KindPresenceOnline, Payload: presence.Change{UserID: "u", Online: 3}})
	r.observe(bus.Event{Kind: bus.KindIndexRebuilt, Payload: 2})
	r.observe(bus.Event{Kind: bus.KindDaemonStatus, Payload: status.StatusChange{From: status.Migrating, To: status.Ready}})

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"created", testutil.ToFloat64(r.messagesCreated), 2},
		{"seen bulk", testutil.ToFloat64(r.messagesSeen.WithLabelValues("bulk")), 2},
		{"seen single", testutil.ToFloat64(r.messagesSeen.WithLabelValues("single")), 1},
		{"dropped", testutil.ToFloat64(r.pushes.WithLabelValues(wire.EventNewMessage, "dropped")), 1},
		{"online", testutil.ToFloat64(r.online), 3},
		{"drift", testutil.ToFloat64(r.rebuildDrift), 2},
		{"ready", testutil.ToFloat64(r.state.WithLabelValues("READY")), 1},
		{"migrating", testutil.ToFloat64(r.state.WithLabelValues("MIGRATING")), 0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestRecorderConsumesBus(t *testing.T) {
	b := bus.New()
	r := NewRecorder(b, nil)
	r.Start(context.Background())
	defer r.Stop()

	b.Emit(bus.KindSeenForbidden, nil)

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(r.seenForbidden) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("event never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandlerServesText(t *testing.T) {
	r := NewRecorder(bus.New(), nil)
	r.observe(bus.Event{Kind: bus.KindMessageCreated})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "courier_messages_created_total 1") ||
		!strings.Contains(rec.Body.String(), "courier_bus_events_dropped_total 0") {
		t.Errorf("body missing counter:\n%s", rec.Body.String())
	}
}
