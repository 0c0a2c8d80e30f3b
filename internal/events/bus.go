package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Bus fans published events out to subscribers. Publishing never blocks the
// game loop: a subscriber whose buffer is full loses the event and the drop
// is logged, the same way a slow websocket client would be dropped.
type Bus struct {
	log *logrus.Entry

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	buffer int
	closed bool
}

// NewBus creates a bus. buffer is the per-subscriber channel depth.
func NewBus(buffer int, log *logrus.Entry) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		log:    log,
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns a receive channel and a cancel function. Cancel is
// idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.WithFields(logrus.Fields{
				"subscriber": id,
				"event":      ev.Type,
				"room_id":    ev.RoomID,
			}).Warn("event bus: subscriber buffer full, dropping event")
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
