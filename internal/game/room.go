package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/ai"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/events"
	"github.com/recallhq/recall/internal/model"
	"github.com/recallhq/recall/internal/state"
)

// Room binds a Round to its update queue and owns the wall-clock side of
// the engine: armed timers whose expiry re-enters the round as a patch.
// The Round itself never touches a time.Timer, so closing a room can cancel
// everything in one place.
type Room struct {
	ID    uuid.UUID
	Round *Round

	log   *logrus.Entry
	queue *state.Queue

	mu        sync.Mutex
	timers    map[uint64]*time.Timer
	nextTimer uint64
	closed    bool
}

// NewRoom creates a room and its round. The queue is shared across rooms;
// patch ordering is per-room regardless.
func NewRoom(id uuid.UUID, cfg config.RoomConfig, profiles map[ai.Tier]ai.Profile,
	bus *events.Bus, queue *state.Queue, rng *rand.Rand, log *logrus.Entry) *Room {
	rm := &Room{
		ID:     id,
		log:    log.WithField("room_id", id),
		queue:  queue,
		timers: make(map[uint64]*time.Timer),
	}
	rm.Round = NewRound(id, cfg, profiles, bus, rm, rng, log)
	return rm
}

// Submit enqueues a player or computer action for this room.
func (rm *Room) Submit(a *model.Action) {
	rm.queue.Enqueue(state.Patch{
		UpdateID: uuid.New(),
		RoomID:   rm.ID,
		At:       time.Now(),
		Action:   a,
	})
}

// Schedule arms a timer that enqueues the expiry as a patch. Implements
// Scheduler for the round.
func (rm *Room) Schedule(d time.Duration, exp state.TimerExpiry) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return
	}
	id := rm.nextTimer
	rm.nextTimer++
	rm.timers[id] = time.AfterFunc(d, func() {
		rm.mu.Lock()
		delete(rm.timers, id)
		closed := rm.closed
		rm.mu.Unlock()
		if closed {
			return
		}
		rm.queue.Enqueue(state.Patch{
			UpdateID: uuid.New(),
			RoomID:   rm.ID,
			At:       time.Now(),
			Timer:    &exp,
		})
	})
}

// CancelAll stops every armed timer. Implements Scheduler.
func (rm *Room) CancelAll() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for id, t := range rm.timers {
		t.Stop()
		delete(rm.timers, id)
	}
}

// Close cancels all timers and shuts the room's queue worker down. Patches
// already queued still apply; later ones are dropped.
func (rm *Room) Close() {
	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return
	}
	rm.closed = true
	for id, t := range rm.timers {
		t.Stop()
		delete(rm.timers, id)
	}
	rm.mu.Unlock()

	rm.queue.CloseRoom(rm.ID)
	rm.log.Info("room closed")
}
