package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

const (
	mdnsServiceTag = "gossipbft-mdns"
	// mdnsPeerTTL bounds how long a discovered peer is considered live.
	// go-libp2p's mdns service does not itself emit expiry events, so
	// Gossip tracks last-seen time per peer and synthesizes
	// EventPeerExpired once a peer falls silent past this TTL.
	mdnsPeerTTL         = 30 * time.Second
	expiryCheckInterval = 5 * time.Second
)

// Gossip implements Transport with libp2p's gossipsub pub/sub router and
// mDNS local peer discovery.
type Gossip struct {
	host host.Host
	ps   *pubsub.PubSub

	mu       sync.Mutex
	joined   map[string]*joinedTopic
	lastSeen map[peer.ID]time.Time
}

type joinedTopic struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	evts  *pubsub.TopicEventHandler
}

// NewGossip starts a libp2p host on an OS-assigned TCP port and wires up the
// gossipsub router.
func NewGossip(ctx context.Context) (*Gossip, error) {
	h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/0.0.0.0/tcp/0"))
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()

		return nil, fmt.Errorf("create gossipsub router: %w", err)
	}

	return &Gossip{
		host:     h,
		ps:       ps,
		joined:   make(map[string]*joinedTopic),
		lastSeen: make(map[peer.ID]time.Time),
	}, nil
}

// Host exposes the underlying libp2p host, mainly so callers can log its
// local peer id.
func (g *Gossip) Host() host.Host { return g.host }

// Subscribe joins topicName and multiplexes message delivery, topic
// subscription churn, and mDNS discovery/expiry into a single Event channel.
func (g *Gossip) Subscribe(ctx context.Context, topicName string) (<-chan Event, error) {
	topic, err := g.ps.Join(topicName)
	if err != nil {
		return nil, fmt.Errorf("join topic %q: %w", topicName, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("subscribe topic %q: %w", topicName, err)
	}

	evts, err := topic.EventHandler()
	if err != nil {
		return nil, fmt.Errorf("topic event handler for %q: %w", topicName, err)
	}

	g.mu.Lock()
	g.joined[topicName] = &joinedTopic{topic: topic, sub: sub, evts: evts}
	g.mu.Unlock()

	discovered := make(chan peer.ID, 16)
	mdnsService := mdns.NewMdnsService(g.host, mdnsServiceTag, &mdnsNotifee{host: g.host, out: discovered})
	if err := mdnsService.Start(); err != nil {
		return nil, fmt.Errorf("start mdns discovery: %w", err)
	}

	out := make(chan Event, 64)

	go g.pumpMessages(ctx, sub, out)
	go g.pumpTopicEvents(ctx, evts, out)
	go g.pumpDiscovery(ctx, discovered, out)

	go func() {
		<-ctx.Done()
		_ = mdnsService.Close()
	}()

	return out, nil
}

// Publish broadcasts data on topic. Callers (node.Loop) apply the
// bounded-retry policy on top of whatever error this returns.
func (g *Gossip) Publish(ctx context.Context, topicName string, data []byte) error {
	g.mu.Lock()
	jt, ok := g.joined[topicName]
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("publish on unjoined topic %q", topicName)
	}

	return jt.topic.Publish(ctx, data)
}

// Close releases every joined topic/subscription and shuts down the host.
func (g *Gossip) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, jt := range g.joined {
		jt.sub.Cancel()
		jt.evts.Cancel()
		_ = jt.topic.Close()
	}

	return g.host.Close()
}

func (g *Gossip) pumpMessages(ctx context.Context, sub *pubsub.Subscription, out chan<- Event) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}

		// Skip messages this host published itself; the transport never
		// delivers local messages back.
		if msg.ReceivedFrom == g.host.ID() {
			continue
		}

		// MessageID is a local correlation id for logging/telemetry only;
		// it is not carried on the wire and has no bearing on consensus.
		select {
		case out <- Event{
			Kind:      EventMessage,
			Peer:      PeerHandle(msg.ReceivedFrom.String()),
			Data:      msg.Data,
			MessageID: uuid.NewString(),
		}:
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gossip) pumpTopicEvents(ctx context.Context, evts *pubsub.TopicEventHandler, out chan<- Event) {
	for {
		pe, err := evts.NextPeerEvent(ctx)
		if err != nil {
			return
		}

		var kind EventKind
		switch pe.Type {
		case pubsub.PeerJoin:
			kind = EventPeerSubscribed
		case pubsub.PeerLeave:
			kind = EventPeerUnsubscribed
		default:
			continue
		}

		select {
		case out <- Event{Kind: kind, Peer: PeerHandle(pe.Peer.String())}:
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gossip) pumpDiscovery(ctx context.Context, discovered <-chan peer.ID, out chan<- Event) {
	ticker := time.NewTicker(expiryCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case pid := <-discovered:
			g.mu.Lock()
			g.lastSeen[pid] = time.Now()
			g.mu.Unlock()

			select {
			case out <- Event{Kind: EventPeerDiscovered, Peers: []PeerHandle{PeerHandle(pid.String())}}:
			case <-ctx.Done():
				return
			}
		case <-ticker.C:
			g.emitExpiredPeers(ctx, out)
		}
	}
}

func (g *Gossip) emitExpiredPeers(ctx context.Context, out chan<- Event) {
	var expired []PeerHandle

	g.mu.Lock()
	now := time.Now()
	for pid, seen := range g.lastSeen {
		if now.Sub(seen) > mdnsPeerTTL {
			expired = append(expired, PeerHandle(pid.String()))
			delete(g.lastSeen, pid)
		}
	}
	g.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	select {
	case out <- Event{Kind: EventPeerExpired, Peers: expired}:
	case <-ctx.Done():
	}
}

// mdnsNotifee bridges go-libp2p's mdns.Notifee callback into the discovery
// channel, connecting to newly found peers so gossipsub can reach them.
type mdnsNotifee struct {
	host host.Host
	out  chan<- peer.ID
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.host.ID() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.host.Connect(ctx, pi); err != nil {
		return
	}

	select {
	case n.out <- pi.ID:
	default:
	}
}
