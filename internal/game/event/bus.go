package event

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Handler receives published events.
type Handler func(Event)

// DefaultHistory is the number of events retained by a Bus when no
// WithHistory option is given.
const DefaultHistory = 256

type subscription struct {
	id      int
	name    Name // empty matches every event
	handler Handler
}

// Bus is a synchronous, ordered publish/subscribe hub. Publish delivers to
// every matching handler on the publishing goroutine, in subscription order,
// before returning. A handler may publish; nested events are delivered
// depth-first.
type Bus struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entropy io.Reader
	subs    []subscription
	nextID  int
	history []Event
	histCap int
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// WithHistory sets the number of retained events. n <= 0 disables history.
func WithHistory(n int) Option {
	return func(b *Bus) { b.histCap = n }
}

// NewBus creates an empty Bus.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a Bus with no subscribers.
func NewBus(logger *zap.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger:  logger,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
		histCap: DefaultHistory,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events named name.
//
// Precondition: h must be non-nil.
// Postcondition: Returns an idempotent unsubscribe function.
func (b *Bus) Subscribe(name Name, h Handler) (unsubscribe func()) {
	return b.add(name, h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add("", h)
}

func (b *Bus) add(name Name, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish stamps p with a ULID and timestamp and delivers it.
//
// Precondition: p must be non-nil.
// Postcondition: every handler subscribed at the time of the call has been
// invoked exactly once; a panicking handler is logged and skipped.
func (b *Bus) Publish(p Payload) Event {
	b.mu.Lock()
	ts := b.now()
	ev := Event{
		ID:        ulid.MustNew(ulid.Timestamp(ts), b.entropy),
		Name:      p.EventName(),
		Timestamp: ts,
		Payload:   p,
	}
	if b.histCap > 0 {
		b.history = append(b.history, ev)
		if over := len(b.history) - b.histCap; over > 0 {
			b.history = append(b.history[:0:0], b.history[over:]...)
		}
	}
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == "" || s.name == ev.Name {
			targets = append(targets, s.handler)
		}
	}
	b.mu.Unlock()

	b.logger.Debug("event published",
		zap.String("event", string(ev.Name)),
		zap.String("id", ev.ID.String()),
		zap.Int("handlers", len(targets)),
	)
	for _, h := range targets {
		b.deliver(h, ev)
	}
	return ev
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event", string(ev.Name)),
				zap.Any("panic", r),
			)
		}
	}()
	h(ev)
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// Channel adapts the bus to a buffered channel for transports. Delivery never
// blocks the publisher: an event that does not fit in the buffer is dropped
// and logged. When names is empty every event is forwarded.
//
// Precondition: size >= 0.
// Postcondition: cancel unsubscribes and closes the channel; it is idempotent.
func (b *Bus) Channel(size int, names ...Name) (<-chan Event, func()) {
	ch := make(chan Event, size)
	var mu sync.Mutex
	closed := false

	want := make(map[Name]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	unsubscribe := b.SubscribeAll(func(ev Event) {
		if len(want) > 0 && !want[ev.Name] {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event channel full, dropping event",
				zap.String("event", string(ev.Name)),
			)
		}
	})

	cancel := func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
	return ch, cancel
}

// Publisher is the narrow publishing side of a Bus, accepted by components
// that emit events.
type Publisher interface {
	Publish(p Payload) Event
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(p Payload) Event {
	return Event{Name: p.EventName(), Payload: p}
}
