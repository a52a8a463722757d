package bus

import "time"

// Event kinds published by courier. Subscribers filter on the prefix
// before the dot.
const (
	KindMessageCreated   = "message.created"
	KindMessagesSeen     = "message.seen"
	KindSeenForbidden    = "message.seen_forbidden"
	KindIndexUnderflow   = "index.underflow"
	KindIndexRebuilt     = "index.rebuilt"
	KindPresenceOnline   = "presence.online"
	KindPresenceOffline  = "presence.offline"
	KindPresenceReplaced = "presence.replaced"
	KindDeliveryPushed   = "delivery.pushed"
	KindDeliveryDropped  = "delivery.dropped"
	KindDaemonStatus     = "daemon.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
