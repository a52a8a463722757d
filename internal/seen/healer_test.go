package seen

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/status"
)

func TestHealerRepairsAfterUnderflow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a, b := mustUser(t, db, "a"), mustUser(t, db, "b")
	mustSend(t, db, a, b, "1")
	mustSend(t, db, a, b, "2")
	mustSend(t, db, a, b, "3")

	bs := bus.New()
	machine := status.NewMachine(bs)
	_ = machine.Transition(status.Migrating)
	_ = machine.Transition(status.Ready)

	rebuilt, unsub := bs.Subscribe(bus.KindIndexRebuilt, 4)
	defer unsub()

	h := NewHealer(db, bs, machine, nil)
	h.Start(ctx)
	defer h.Stop()

	// Drift the index below the truth, then acknowledge one message: the
	// decrement underflows and the healer must restore the true count of 2.
	if _, err := db.Exec(`UPDATE unseen_counts SET count = 0`); err != nil {
		t.Fatal(err)
	}
	msgs, err := db.FindConversation(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	r := NewReconciler(db, nil, bs, nil)
	if _, err := r.Acknowledge(ctx, msgs[0].ID, b.ID); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-rebuilt:
		if n := evt.Payload.(int); n != 1 {
			t.Errorf("drifted pairs = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for index rebuild")
	}

	counts, err := db.UnseenCounts(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if counts[a.ID] != 2 {
		t.Errorf("unseen = %d, want 2 after heal", counts[a.ID])
	}
	if machine.Current() != status.Ready {
		t.Errorf("state = %s, want READY after heal", machine.Current())
	}
}

func TestHealOnConsistentIndex(t *testing.T) {
	db := testDB(t)
	a, b := mustUser(t, db, "a"), mustUser(t, db, "b")
	mustSend(t, db, a, b, "1")

	if n := NewHealer(db, nil, nil, nil).Heal(context.Background()); n != 0 {
		t.Errorf("Heal() = %d, want 0", n)
	}
}
