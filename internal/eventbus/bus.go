package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/varsync/schema"
)

// AnySession subscribes to events from every session.
const AnySession schema.SessionID = ""

// Bus fans session events out to extension hooks. Slow subscribers lose events
// rather than stall the publishing session.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.SessionID]map[chan schema.SessionEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.SessionID]map[chan schema.SessionEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for sessionID (or AnySession) and returns a
// channel + cancel.
func (b *Bus) Subscribe(sessionID schema.SessionID) (<-chan schema.SessionEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.SessionEvent, b.depth)
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	if sessionSubs == nil {
		sessionSubs = make(map[chan schema.SessionEvent]struct{})
		b.subs[sessionID] = sessionSubs
	}
	sessionSubs[ch] = struct{}{}
	count := len(sessionSubs)
	b.mu.Unlock()
	b.log.With("session", sessionID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[sessionID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, sessionID)
				}
			}
			b.mu.Unlock()
			close(ch)
			b.log.With("session", sessionID).Debug("eventbus unsubscribe")
		})
	}
}

// Publish delivers event to the session's subscribers and to AnySession
// subscribers.
func (b *Bus) Publish(event schema.SessionEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan schema.SessionEvent, 0, len(b.subs[event.SessionID])+len(b.subs[AnySession]))
	for sub := range b.subs[event.SessionID] {
		subs = append(subs, sub)
	}
	if event.SessionID != AnySession {
		for sub := range b.subs[AnySession] {
			subs = append(subs, sub)
		}
	}
	// Sends happen under the lock so a concurrent cancel cannot close a channel
	// mid-send; every send is non-blocking.
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.With("session", event.SessionID).Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}
