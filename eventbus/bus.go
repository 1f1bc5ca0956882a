// Package eventbus implements the domain event bus from spec.md §4.2:
// publish/subscribe of critical and ephemeral domain events with bounded
// history and timestamped replay. Its registration/subscription shape is
// grounded directly on the teacher's runtime/agent/hooks.Bus (fan-out
// registry keyed by subscription pointer, sync.Once-guarded Close), widened
// with the replay log and late-subscriber replay spec.md requires.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/goa-design/agentswarm/domain"
)

type (
	// Subscriber reacts to published domain events. HandleEvent is invoked
	// on the subscription's own goroutine, once per event delivered to it,
	// in publish order, until the subscription is closed. Events that
	// arrive while the subscriber's buffer is full are dropped for it.
	Subscriber interface {
		HandleEvent(ctx context.Context, event domain.Event) error
	}

	// SubscriberFunc adapts a function to the Subscriber interface.
	SubscriberFunc func(ctx context.Context, event domain.Event) error

	// Subscription represents an active registration. Close is idempotent
	// and safe to call from any goroutine.
	Subscription interface {
		Close() error
	}

	// Bus publishes domain events to subscribers and maintains a bounded
	// critical-event replay log (spec.md §4.2).
	//
	// Publish is the "suspending" emit path: it takes the log mutex and
	// blocks until the append (or eviction) completes, then fans out to
	// subscribers. PublishNonSuspending never blocks on the log: if the log
	// mutex cannot be acquired immediately, the append is dropped, though
	// the subscriber broadcast itself always proceeds (and may itself drop
	// slow subscribers whose buffers are full).
	//
	// The bus is workspace-scoped, not process-scoped (spec.md §9): callers
	// construct one Bus per workspace/orchestration session and Reset it
	// (or simply discard it) when the session ends.
	Bus struct {
		replaySize int
		maxLogSize int

		mu          sync.RWMutex
		subscribers map[*subscription]*boundSubscriber

		logMu sync.Mutex
		log   []domain.Event // critical events only, oldest first

		replayMu sync.Mutex
		replay   []domain.Event // most recent replaySize events of any kind
	}

	subscription struct {
		bus  *Bus
		once sync.Once
	}

	// boundSubscriber pairs a Subscriber with a bounded async buffer so a
	// slow subscriber cannot block Publish's caller. Buffer size matches
	// spec.md §4.2's "buffer ≥ 256" floor.
	boundSubscriber struct {
		sub Subscriber
		ch  chan subEvent
		// stopCh closes the subscriber's drain goroutine.
		stopCh chan struct{}
	}

	subEvent struct {
		ctx   context.Context
		event domain.Event
	}
)

const minSubscriberBuffer = 256

// HandleEvent implements Subscriber.
func (f SubscriberFunc) HandleEvent(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

// NewBus constructs a Bus with the given replay and log-size bounds. A
// replaySize or maxLogSize <= 0 falls back to spec.md §4.2's defaults (32
// and 500 respectively).
func NewBus(replaySize, maxLogSize int) *Bus {
	if replaySize <= 0 {
		replaySize = 32
	}
	if maxLogSize <= 0 {
		maxLogSize = 500
	}
	return &Bus{
		replaySize:  replaySize,
		maxLogSize:  maxLogSize,
		subscribers: make(map[*subscription]*boundSubscriber),
	}
}

// Register adds a subscriber and immediately replays the most recent
// replaySize events to it (spec.md §4.2: "Late subscribers that attach
// after emission receive the most recent replaySize events ... regardless
// of event category"), before any new event can be delivered.
func (b *Bus) Register(sub Subscriber) Subscription {
	bs := &boundSubscriber{
		sub:    sub,
		ch:     make(chan subEvent, minSubscriberBuffer),
		stopCh: make(chan struct{}),
	}
	go bs.drain()

	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers[s] = bs
	b.replayMu.Lock()
	backlog := append([]domain.Event(nil), b.replay...)
	b.replayMu.Unlock()
	for _, evt := range backlog {
		bs.offer(context.Background(), evt)
	}
	b.mu.Unlock()
	return s
}

// Publish delivers event to every currently registered subscriber and, if
// event is critical, appends it to the bounded replay log under a mutex
// (the "suspending" path: Publish blocks until the log append completes).
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.appendLog(event, true)
	b.broadcast(ctx, event)
}

// PublishNonSuspending delivers event without blocking the caller on the
// log mutex: if the lock is not immediately available, the log append is
// dropped (spec.md §4.2: "Non-suspending emit is permitted but may drop the
// in-memory log append if a lock cannot be taken synchronously"). The
// subscriber broadcast itself never blocks regardless of which Publish
// variant is used.
func (b *Bus) PublishNonSuspending(ctx context.Context, event domain.Event) {
	b.appendLog(event, false)
	b.broadcast(ctx, event)
}

func (b *Bus) appendLog(event domain.Event, suspend bool) {
	b.replayMu.Lock()
	b.replay = append(b.replay, event)
	if len(b.replay) > b.replaySize {
		b.replay = b.replay[len(b.replay)-b.replaySize:]
	}
	b.replayMu.Unlock()

	if !event.Critical() {
		return
	}
	if suspend {
		b.logMu.Lock()
		b.appendCriticalLocked(event)
		b.logMu.Unlock()
		return
	}
	if b.logMu.TryLock() {
		b.appendCriticalLocked(event)
		b.logMu.Unlock()
	}
}

func (b *Bus) appendCriticalLocked(event domain.Event) {
	b.log = append(b.log, event)
	if len(b.log) > b.maxLogSize {
		b.log = b.log[len(b.log)-b.maxLogSize:]
	}
}

func (b *Bus) broadcast(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := make([]*boundSubscriber, 0, len(b.subscribers))
	for _, bs := range b.subscribers {
		subs = append(subs, bs)
	}
	b.mu.RUnlock()
	for _, bs := range subs {
		bs.offer(ctx, event)
	}
}

// offer enqueues event for asynchronous delivery, dropping it if the
// subscriber's buffer is full rather than blocking the publisher (spec.md
// §4.2: "the subscriber broadcast itself never blocks the caller and may
// drop for subscribers whose buffers are full").
func (bs *boundSubscriber) offer(ctx context.Context, event domain.Event) {
	select {
	case bs.ch <- subEvent{ctx: ctx, event: event}:
	default:
	}
}

func (bs *boundSubscriber) drain() {
	for {
		select {
		case se := <-bs.ch:
			_ = bs.sub.HandleEvent(se.ctx, se.event)
		case <-bs.stopCh:
			return
		}
	}
}

// ReplaySince returns all critical events with timestamp strictly greater
// than t, in chronological order (spec.md §4.2).
func (b *Bus) ReplaySince(t time.Time) []domain.Event {
	b.logMu.Lock()
	defer b.logMu.Unlock()
	out := make([]domain.Event, 0, len(b.log))
	for _, e := range b.log {
		if e.Timestamp.After(t) {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the bus's subscriber registry and logs. Tests use Reset
// between cases instead of constructing a process-wide singleton (spec.md
// §9: "tests instantiate fresh instances").
func (b *Bus) Reset() {
	b.mu.Lock()
	for s, bs := range b.subscribers {
		close(bs.stopCh)
		delete(b.subscribers, s)
	}
	b.mu.Unlock()

	b.logMu.Lock()
	b.log = nil
	b.logMu.Unlock()

	b.replayMu.Lock()
	b.replay = nil
	b.replayMu.Unlock()
}

// Close removes the subscriber from the bus. Idempotent and safe to call
// from any goroutine.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if bs, ok := s.bus.subscribers[s]; ok {
			close(bs.stopCh)
			delete(s.bus.subscribers, s)
		}
		s.bus.mu.Unlock()
	})
	return nil
}
