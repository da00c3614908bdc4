// Package wire defines the self-contained wire message exchanged between
// replicas and the Response a consensus handler returns for it.
package wire

// MessageType identifies which phase of the protocol a Message belongs to.
type MessageType uint8

const (
	// MessageTypePrePrepare is issued by a round's proposer to kick off the round.
	MessageTypePrePrepare MessageType = iota
	// MessageTypePrepare is broadcast once a replica accepts a proposal.
	MessageTypePrepare
	// MessageTypeCommit is broadcast once a replica observes quorum prepares.
	MessageTypeCommit
	// MessageTypeRoundChange is a vote to abandon the current round.
	MessageTypeRoundChange
	// MessageTypeNewRound announces a freshly elected proposer's new view.
	MessageTypeNewRound
)

// String renders the MessageType's name for logs and telemetry. On the wire
// Encode writes the type as its numeric value, not as this name.
func (t MessageType) String() string {
	switch t {
	case MessageTypePrePrepare:
		return "PrePrepare"
	case MessageTypePrepare:
		return "Prepare"
	case MessageTypeCommit:
		return "Commit"
	case MessageTypeRoundChange:
		return "RoundChange"
	case MessageTypeNewRound:
		return "NewRound"
	default:
		return "Unknown"
	}
}

// Message is the self-contained record replicas exchange over the gossip
// topic. Payload is opaque to the core; it is reserved for proposed block
// content and round-change proofs that a layer above this core would fill in.
type Message struct {
	ID      uint64      `json:"id"`
	Round   uint64      `json:"round"`
	Type    MessageType `json:"m_type"`
	Payload []byte      `json:"payload,omitempty"`
}

// ResponseType tags what a consensus handler wants done with its Response.
type ResponseType uint8

const (
	// ResponseDoNothing means no wire activity should follow the handled event.
	ResponseDoNothing ResponseType = iota
	// ResponseBroadcast means Message should be published to the gossip topic.
	ResponseBroadcast
)

// Response is the tagged variant every consensus handler returns: either
// DoNothing, or Broadcast carrying the Message to publish.
type Response struct {
	Type    ResponseType
	Message Message
}

// DoNothing is the zero Response, returned whenever a handler has nothing to
// broadcast.
var DoNothing = Response{Type: ResponseDoNothing}

// Broadcast wraps m in a Response that instructs the caller to publish it.
func Broadcast(m Message) Response {
	return Response{Type: ResponseBroadcast, Message: m}
}

// IsBroadcast reports whether r carries a message to publish.
func (r Response) IsBroadcast() bool {
	return r.Type == ResponseBroadcast
}
