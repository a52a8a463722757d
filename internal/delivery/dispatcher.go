// Package delivery pushes stored messages to receivers that are online.
package delivery

import (
	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/presence"
	"github.com/matheus3301/courier/internal/store"
	"github.com/matheus3301/courier/internal/wire"
	"go.uber.org/zap"
)

// Directory resolves a user ID to its live connection.
type Directory interface {
	Lookup(userID string) (presence.Conn, bool)
}

// Outcome is the payload of delivery.* bus events.
type Outcome struct {
	Event  string
	UserID string
	Err    error
}

// Dispatcher performs best-effort pushes. A failed push is never retried and
// never reported to the caller: the store stays the source of truth and the
// client picks the message up on its next fetch.
type Dispatcher struct {
	dir    Directory
	bus    *bus.Bus
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher over dir.
func NewDispatcher(dir Directory, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{dir: dir, bus: b, logger: logger}
}

// Dispatch pushes m to its receiver if present. Call only after m is committed.
func (d *Dispatcher) Dispatch(m *store.Message) {
	d.push(m.ReceiverID, wire.EventNewMessage, wire.FromMessage(m))
}

// NotifySeen tells sender that reader has seen the given messages.
func (d *Dispatcher) NotifySeen(sender, reader string, ids []string) {
	if len(ids) == 0 {
		return
	}
	d.push(sender, wire.EventMessagesSeen, wire.SeenNotice{ReaderID: reader, MessageIDs: ids})
}

// BroadcastOnline sends the current online list to every present user.
func (d *Dispatcher) BroadcastOnline(r *presence.Registry) {
	online := r.Online()
	r.Each(func(userID string, c presence.Conn) {
		if err := c.Push(wire.EventOnlineUsers, online); err != nil {
			d.logger.Debug("online list push failed", zap.String("user_id", userID), zap.Error(err))
		}
	})
}

func (d *Dispatcher) push(userID, event string, payload any) {
	c, ok := d.dir.Lookup(userID)
	if !ok {
		return
	}
	if err := c.Push(event, payload); err != nil {
		d.logger.Debug("push dropped",
			zap.String("user_id", userID),
			zap.String("event", event),
			zap.Error(err))
		d.bus.Emit(bus.KindDeliveryDropped, Outcome{Event: event, UserID: userID, Err: err})
		return
	}
	d.bus.Emit(bus.KindDeliveryPushed, Outcome{Event: event, UserID: userID})
}
