// Package seen moves messages from unseen to seen and keeps the unseen
// counters in step.
package seen

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/courier/internal/apperr"
	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/store"
	"go.uber.org/zap"
)

// Notifier tells a sender that its messages were seen.
type Notifier interface {
	NotifySeen(sender, reader string, ids []string)
}

// Transition is the payload of message.seen bus events.
type Transition struct {
	ReaderID string
	SenderID string
	IDs      []string
	Bulk     bool
}

// Reconciler implements bulk-on-open and single acknowledgement.
type Reconciler struct {
	db       *store.DB
	notifier Notifier
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewReconciler creates a reconciler. notifier may be nil.
func NewReconciler(db *store.DB, notifier Notifier, b *bus.Bus, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, notifier: notifier, bus: b, logger: logger}
}

// OpenConversation marks everything peer sent to reader as seen and returns
// the full conversation. Messages flipped here are returned with Seen=true.
func (r *Reconciler) OpenConversation(ctx context.Context, reader, peer string) ([]store.Message, error) {
	if _, err := r.db.GetUser(ctx, peer); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		return nil, fmt.Errorf("get peer: %w", err)
	}

	msgs, res, err := r.db.OpenConversation(ctx, reader, peer)
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	r.settled(reader, peer, res, true)
	return msgs, nil
}

// Acknowledge marks a single message seen on behalf of requester, who must
// be its receiver.
func (r *Reconciler) Acknowledge(ctx context.Context, messageID, requester string) (*store.Message, error) {
	m, res, err := r.db.MarkSeenOne(ctx, messageID, requester)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.Wrap(apperr.NotFound, "Message not found", err)
	case errors.Is(err, store.ErrForbidden):
		r.logger.Warn("seen acknowledgement by non-receiver",
			zap.String("message_id", messageID),
			zap.String("requester_id", requester))
		r.bus.Emit(bus.KindSeenForbidden, Transition{ReaderID: requester, IDs: []string{messageID}})
		return nil, apperr.Wrap(apperr.Forbidden, "Unauthorized", err)
	case err != nil:
		return nil, fmt.Errorf("mark seen: %w", err)
	}
	r.settled(requester, m.SenderID, res, false)
	return m, nil
}

func (r *Reconciler) settled(reader, sender string, res store.SeenResult, bulk bool) {
	if res.Underflow {
		r.logger.Error("unseen counter underflow clamped at zero",
			zap.String("receiver_id", reader),
			zap.String("sender_id", sender),
			zap.Int("flipped", res.Affected()))
		r.bus.Emit(bus.KindIndexUnderflow, Transition{ReaderID: reader, SenderID: sender, IDs: res.IDs, Bulk: bulk})
	}
	if res.Affected() == 0 {
		return
	}
	r.bus.Emit(bus.KindMessagesSeen, Transition{ReaderID: reader, SenderID: sender, IDs: res.IDs, Bulk: bulk})
	if r.notifier != nil {
		r.notifier.NotifySeen(sender, reader, res.IDs)
	}
}
