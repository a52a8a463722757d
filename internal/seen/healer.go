package seen

import (
	"context"

	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/status"
	"github.com/matheus3301/courier/internal/store"
	"go.uber.org/zap"
)

// Healer rebuilds the unseen index from the messages table whenever an
// underflow shows it has drifted. While rebuilding the daemon reports
// DEGRADED.
type Healer struct {
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHealer creates a healer. machine may be nil.
func NewHealer(db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Healer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Healer{db: db, bus: b, machine: machine, logger: logger}
}

// Start subscribes to index.underflow events on the bus. A failed rebuild
// leaves the daemon DEGRADED until the next one succeeds.
func (h *Healer) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	ch, unsub := h.bus.Subscribe("index.underflow", 16)

	go func() {
		defer close(h.done)
		defer unsub()
		for {
			select {
			case <-ch:
				h.Heal(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the healer and waits for an in-flight rebuild.
func (h *Healer) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
}

// Heal rebuilds the index once and returns the number of drifted pairs.
func (h *Healer) Heal(ctx context.Context) int {
	degraded := h.machine != nil && h.machine.Transition(status.Degraded) == nil

	drifted, err := h.db.RebuildUnseenIndex(ctx)
	if err != nil {
		h.logger.Error("unseen index rebuild failed", zap.Error(err))
		return 0
	}
	if drifted > 0 {
		h.logger.Warn("unseen index rebuilt", zap.Int("drifted_pairs", drifted))
	}
	h.bus.Emit(bus.KindIndexRebuilt, drifted)

	if degraded {
		_ = h.machine.Transition(status.Ready)
	}
	return drifted
}
