package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/gvf/internal/gesture"
)

// EventType identifies what an Event reports.
type EventType string

const (
	// EventActivation reports a recognized gesture.
	EventActivation EventType = "activation"
	// EventEstimates carries the per-gesture estimates of one tick.
	EventEstimates EventType = "estimates"
	// EventState reports a session state change.
	EventState EventType = "state"
)

// Event is published to subscribers for everything the session does.
type Event struct {
	ID        string                   `json:"id"`
	Type      EventType                `json:"type"`
	Time      time.Time                `json:"time"`
	GestureID int                      `json:"gesture_id,omitempty"`
	Estimate  *gesture.Estimate        `json:"estimate,omitempty"`
	Estimates map[int]gesture.Estimate `json:"estimates,omitempty"`
	State     string                   `json:"state,omitempty"`
}

func newEvent(t EventType, fill func(e *Event)) Event {
	e := Event{
		ID:   uuid.NewString(),
		Type: t,
		Time: time.Now(),
	}
	if fill != nil {
		fill(&e)
	}
	return e
}

// broadcaster fans events out to subscribers synchronously, in
// subscription order.
type broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
	order  []int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]func(Event))}
}

func (b *broadcaster) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
