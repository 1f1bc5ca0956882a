package pipeline

import (
	"context"
	"sync"
	"time"
)

// EventKind tags a pipeline event variant (spec.md §3/§4.7).
type EventKind string

const (
	EventPipelineStarted   EventKind = "pipeline_started"
	EventPipelineCompleted EventKind = "pipeline_completed"
	EventPipelineCancelled EventKind = "pipeline_cancelled"
	EventIterationStarted  EventKind = "iteration_started"
	EventStageStarted      EventKind = "stage_started"
	EventStageCompleted    EventKind = "stage_completed"
	EventStageFailed       EventKind = "stage_failed"
	EventStageSkipped      EventKind = "stage_skipped"
)

// Event is one pipeline-engine event, scoped by PipelineID (spec.md §3).
type Event struct {
	Kind       EventKind
	PipelineID string
	Timestamp  time.Time

	Iteration int    // IterationStarted
	StageName string // StageStarted, StageCompleted, StageFailed, StageSkipped

	Success bool // PipelineCompleted

	ResultKind ResultKind // StageCompleted

	Attempt   int    // StageFailed
	WillRetry bool   // StageFailed
	Error     string // StageFailed

	Reason string // StageSkipped
}

const pipelineReplaySize = 16
const pipelineSubscriberBuffer = 256

// Bus publishes pipeline events to subscribers with a bounded replay
// buffer and a non-suspending emit path (spec.md §4.7: "A published topic
// of pipeline events with replay 16 and non-suspending emit"). It is never
// mixed into the domain event bus (eventbus.Bus); an external bridge may
// forward events between the two.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscription]chan Event

	replayMu sync.Mutex
	replay   []Event
}

type subscription struct {
	bus  *Bus
	once sync.Once
}

// Subscription represents an active registration; Close is idempotent.
type Subscription interface {
	Close()
}

// NewBus constructs an empty pipeline event Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[*subscription]chan Event)}
}

// Register adds a subscriber, replaying the most recent events (bounded by
// pipelineReplaySize) before any newly published event is delivered.
func (b *Bus) Register(handler func(Event)) Subscription {
	ch := make(chan Event, pipelineSubscriberBuffer)
	s := &subscription{bus: b}

	b.mu.Lock()
	b.subscribers[s] = ch
	b.mu.Unlock()

	go func() {
		for e := range ch {
			handler(e)
		}
	}()

	b.replayMu.Lock()
	backlog := append([]Event(nil), b.replay...)
	b.replayMu.Unlock()
	for _, e := range backlog {
		offer(ch, e)
	}
	return s
}

// Publish delivers event to every subscriber without blocking the caller:
// if a subscriber's buffer is full the event is dropped for that
// subscriber only (spec.md §4.7's "non-suspending emit").
func (b *Bus) Publish(event Event) {
	b.replayMu.Lock()
	b.replay = append(b.replay, event)
	if len(b.replay) > pipelineReplaySize {
		b.replay = b.replay[len(b.replay)-pipelineReplaySize:]
	}
	b.replayMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		offer(ch, event)
	}
}

func offer(ch chan Event, e Event) {
	select {
	case ch <- e:
	default:
	}
}

// Close removes the subscription. Idempotent.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if ch, ok := s.bus.subscribers[s]; ok {
			delete(s.bus.subscribers, s)
			close(ch)
		}
		s.bus.mu.Unlock()
	})
}

// ByPipeline returns a handler wrapper that only forwards events whose
// PipelineID matches id (spec.md §4.7: "a filter-by-pipeline-id view").
func ByPipeline(id string, handler func(Event)) func(Event) {
	return func(e Event) {
		if e.PipelineID == id {
			handler(e)
		}
	}
}

// ByKind returns a handler wrapper that only forwards events of the given
// kind (spec.md §4.7: "typed subscriptions for stage completions/
// failures").
func ByKind(kind EventKind, handler func(Event)) func(Event) {
	return func(e Event) {
		if e.Kind == kind {
			handler(e)
		}
	}
}

// TypedStream is a lazy, restartable, blocking-read view of a Bus filtered
// to one event kind, matching the domain event bus's own TypedStream shape
// (eventbus.TypedStream) for API consistency across the two bus types.
type TypedStream struct {
	bus  *Bus
	kind EventKind

	started bool
	sub     Subscription
	events  chan Event
}

// Subscribe constructs a TypedStream for kind. Nothing is delivered until
// Next is first called.
func Subscribe(bus *Bus, kind EventKind) *TypedStream {
	return &TypedStream{bus: bus, kind: kind}
}

func (s *TypedStream) ensureStarted() {
	if s.started {
		return
	}
	s.events = make(chan Event, pipelineSubscriberBuffer)
	s.sub = s.bus.Register(ByKind(s.kind, func(e Event) {
		select {
		case s.events <- e:
		default:
		}
	}))
	s.started = true
}

// Next blocks until an event of the subscribed kind arrives or ctx is done.
func (s *TypedStream) Next(ctx context.Context) (Event, bool) {
	s.ensureStarted()
	select {
	case e, ok := <-s.events:
		return e, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// Close stops the underlying subscription.
func (s *TypedStream) Close() {
	if s.sub != nil {
		s.sub.Close()
	}
}
