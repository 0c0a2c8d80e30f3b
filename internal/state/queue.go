// Package state implements the per-room update queue: the single
// concurrency boundary through which every room mutation travels. Human
// actions, AI actions, and timer expiries are all normalized into patches;
// one worker per room applies them in strict enqueue order while distinct
// rooms proceed fully in parallel.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/model"
)

// TimerKind names the timers whose expiry is fed back through the queue.
// Expiry is a first-class input, not an error.
type TimerKind string

const (
	TimerInitialPeek TimerKind = "initial_peek"
	TimerSameRank    TimerKind = "same_rank_window"
	TimerSpecialPlay TimerKind = "special_play_window"
	TimerTurn        TimerKind = "turn"
	TimerAIMove      TimerKind = "ai_move"
)

// TimerExpiry is the payload of a timer-driven patch. WindowID and TurnID
// pin the expiry to the window/turn that scheduled it; a stale expiry is
// applied as a no-op.
type TimerExpiry struct {
	Kind     TimerKind `json:"kind"`
	WindowID uint64    `json:"windowId,omitempty"`
	TurnID   int       `json:"turnId,omitempty"`
	PlayerID uuid.UUID `json:"playerId,omitempty"`
}

// Patch is one proposed mutation against a room's state. Exactly one of
// Action or Timer is set. UpdateID deduplicates re-delivered patches.
type Patch struct {
	UpdateID uuid.UUID     `json:"updateId"`
	RoomID   uuid.UUID     `json:"roomId"`
	At       time.Time     `json:"at"`
	Action   *model.Action `json:"action,omitempty"`
	Timer    *TimerExpiry  `json:"timer,omitempty"`
}

// Origin describes where the patch came from, for logs and the historian.
func (p Patch) Origin() string {
	if p.Action != nil {
		return string(p.Action.Type)
	}
	if p.Timer != nil {
		return "timer:" + string(p.Timer.Kind)
	}
	return "unknown"
}

// Result of a successfully applied patch: the full merged room document and
// the fields it changed.
type Result struct {
	Snapshot      any
	ChangedFields []string
}

// ApplyFunc validates a patch against the room's current state, not the
// state at enqueue time, and merges it. A nil Result with nil error is an
// accepted no-op (e.g. a stale timer). An error means the patch is invalid
// against current state and must be dropped without mutating anything.
type ApplyFunc func(p Patch) (*Result, error)

// UpdatedFunc runs after each successful merge with the merged state and
// change-set descriptor.
type UpdatedFunc func(roomID uuid.UUID, res Result)

// RejectedFunc runs for each dropped patch so the orchestrator can report
// the failure to the acting client. The queue keeps draining regardless.
type RejectedFunc func(roomID uuid.UUID, p Patch, err error)

// seenLimit bounds the per-room ring of applied update ids used to drop
// duplicate deliveries.
const seenLimit = 256

// Queue owns one serialized worker per room. All collaborators are
// constructor parameters; there are no late-bound setters.
type Queue struct {
	log        *logrus.Entry
	apply      ApplyFunc
	onUpdated  UpdatedFunc
	onRejected RejectedFunc

	mu     sync.Mutex
	rooms  map[uuid.UUID]*roomWorker
	closed map[uuid.UUID]struct{}
}

// NewQueue builds a queue around the given apply handler and callbacks.
// onRejected may be nil.
func NewQueue(log *logrus.Entry, apply ApplyFunc, onUpdated UpdatedFunc, onRejected RejectedFunc) *Queue {
	return &Queue{
		log:        log,
		apply:      apply,
		onUpdated:  onUpdated,
		onRejected: onRejected,
		rooms:      make(map[uuid.UUID]*roomWorker),
		closed:     make(map[uuid.UUID]struct{}),
	}
}

// roomWorker is an unbounded FIFO drained by a single goroutine.
type roomWorker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Patch
	closed  bool

	seen     map[uuid.UUID]struct{}
	seenFIFO []uuid.UUID
}

// Enqueue appends the patch to its room's queue. It never mutates state
// synchronously; the room worker picks the patch up in order. Enqueues for
// a closed room are dropped silently.
func (q *Queue) Enqueue(p Patch) {
	q.mu.Lock()
	if _, gone := q.closed[p.RoomID]; gone {
		q.mu.Unlock()
		return
	}
	w, ok := q.rooms[p.RoomID]
	if !ok {
		w = &roomWorker{seen: make(map[uuid.UUID]struct{})}
		w.cond = sync.NewCond(&w.mu)
		q.rooms[p.RoomID] = w
		go q.drain(p.RoomID, w)
	}
	q.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = append(w.pending, p)
	w.cond.Signal()
}

// drain applies patches one at a time until the room closes.
func (q *Queue) drain(roomID uuid.UUID, w *roomWorker) {
	for {
		w.mu.Lock()
		for len(w.pending) == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.closed && len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		p := w.pending[0]
		w.pending = w.pending[1:]

		if _, dup := w.seen[p.UpdateID]; dup {
			w.mu.Unlock()
			q.log.WithFields(logrus.Fields{
				"room_id":   roomID,
				"update_id": p.UpdateID,
				"origin":    p.Origin(),
			}).Debug("state queue: duplicate patch dropped")
			continue
		}
		w.remember(p.UpdateID)
		w.mu.Unlock()

		res, err := q.apply(p)
		if err != nil {
			q.log.WithFields(logrus.Fields{
				"room_id":   roomID,
				"update_id": p.UpdateID,
				"origin":    p.Origin(),
			}).WithError(err).Warn("state queue: patch failed validation, dropped")
			if q.onRejected != nil {
				q.onRejected(roomID, p, err)
			}
			continue
		}
		if res != nil {
			q.onUpdated(roomID, *res)
		}
	}
}

// remember records an applied update id, evicting the oldest past the cap.
// Caller holds w.mu.
func (w *roomWorker) remember(id uuid.UUID) {
	w.seen[id] = struct{}{}
	w.seenFIFO = append(w.seenFIFO, id)
	if len(w.seenFIFO) > seenLimit {
		evict := w.seenFIFO[0]
		w.seenFIFO = w.seenFIFO[1:]
		delete(w.seen, evict)
	}
}

// CloseRoom stops the room's worker after it finishes the patches already
// queued. Later enqueues for the room are dropped.
func (q *Queue) CloseRoom(roomID uuid.UUID) {
	q.mu.Lock()
	q.closed[roomID] = struct{}{}
	w, ok := q.rooms[roomID]
	if ok {
		delete(q.rooms, roomID)
	}
	q.mu.Unlock()
	if !ok {
		return
	}
	w.mu.Lock()
	w.closed = true
	w.cond.Signal()
	w.mu.Unlock()
}

// PendingLen reports the queue depth for a room. Test/diagnostic helper.
func (q *Queue) PendingLen(roomID uuid.UUID) int {
	q.mu.Lock()
	w, ok := q.rooms[roomID]
	q.mu.Unlock()
	if !ok {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
