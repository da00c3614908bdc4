// Package transport defines the gossip pub/sub + peer discovery interface
// the core consumes. The core itself never imports this package; it is an
// external collaborator, wired together by node.Loop.
package transport

import "context"

// EventKind tags the shape of an Event: message delivery, topic
// subscription churn, or local peer-discovery churn.
type EventKind uint8

const (
	// EventPeerSubscribed fires when a peer subscribes to the consensus topic.
	EventPeerSubscribed EventKind = iota
	// EventPeerUnsubscribed fires when a peer drops its subscription.
	EventPeerUnsubscribed
	// EventMessage fires when a message arrives on the consensus topic.
	EventMessage
	// EventPeerDiscovered fires for a batch of peers found via local
	// multicast discovery.
	EventPeerDiscovered
	// EventPeerExpired fires for a batch of peers whose discovery record
	// expired.
	EventPeerExpired
)

func (k EventKind) String() string {
	switch k {
	case EventPeerSubscribed:
		return "PeerSubscribed"
	case EventPeerUnsubscribed:
		return "PeerUnsubscribed"
	case EventMessage:
		return "Message"
	case EventPeerDiscovered:
		return "PeerDiscovered"
	case EventPeerExpired:
		return "PeerExpired"
	default:
		return "Unknown"
	}
}

// PeerHandle is the transport-level peer identifier, opaque to the core.
type PeerHandle string

// Event is the single envelope the transport delivers to the event loop for
// every one of the five kinds above; only the fields relevant to Kind are
// populated.
type Event struct {
	Kind EventKind

	// Peer is set for EventPeerSubscribed/EventPeerUnsubscribed/EventMessage.
	Peer PeerHandle

	// Peers is set for EventPeerDiscovered/EventPeerExpired (mDNS reports
	// peers in batches).
	Peers []PeerHandle

	// Data and MessageID are set for EventMessage.
	Data      []byte
	MessageID string
}

// Transport is the gossip pub/sub + peer discovery collaborator the core
// assumes is already authenticated: channels are trusted, sender identity is
// not re-verified here.
type Transport interface {
	// Subscribe joins the named topic and returns a channel of Events for
	// it: message deliveries, subscription churn, and discovery churn.
	Subscribe(ctx context.Context, topic string) (<-chan Event, error)

	// Publish broadcasts data on topic. Implementations may return a
	// retriable error; node.Loop applies the bounded-retry policy, not the
	// transport itself.
	Publish(ctx context.Context, topic string, data []byte) error

	// Close releases the transport's resources. Gossip closes its joined
	// topics and its host here; its discovery service stops when the
	// context passed to Subscribe ends.
	Close() error
}
