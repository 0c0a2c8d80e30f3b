// Package server owns the room registry and the websocket transport
// adapter. Rooms live in an explicit map on the Server; nothing here is a
// package-level singleton.
package server

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/ai"
	"github.com/recallhq/recall/internal/cache"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/database"
	"github.com/recallhq/recall/internal/events"
	"github.com/recallhq/recall/internal/game"
	"github.com/recallhq/recall/internal/state"
)

// snapshot stages persisted to the store.
const (
	stageInitial = "initial"
	stageFinal   = "final"
)

// ErrUnknownRoom rejects patches addressed to a room that is not live.
var ErrUnknownRoom = errors.New("unknown room")

// Server wires the engine together: one shared update queue, one event
// bus, and the registry of live rooms.
type Server struct {
	log       *logrus.Entry
	roomCfg   config.RoomConfig
	profiles  map[ai.Tier]ai.Profile
	bus       *events.Bus
	queue     *state.Queue
	historian *cache.Historian
	store     *database.Store
	rng       *rand.Rand

	mu    sync.Mutex
	rooms map[uuid.UUID]*game.Room
}

// Options carries the server's collaborators. Historian and Store may wrap
// nil clients; they degrade to no-ops.
type Options struct {
	RoomConfig config.RoomConfig
	Profiles   map[ai.Tier]ai.Profile
	Historian  *cache.Historian
	Store      *database.Store
	Rand       *rand.Rand
}

// New builds a server. All queue collaborators are bound at construction.
func New(opts Options, log *logrus.Entry) *Server {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Profiles == nil {
		opts.Profiles = config.LoadProfiles("", log)
	}
	s := &Server{
		log:       log,
		roomCfg:   opts.RoomConfig.Normalize(),
		profiles:  opts.Profiles,
		bus:       events.NewBus(256, log),
		historian: opts.Historian,
		store:     opts.Store,
		rng:       opts.Rand,
		rooms:     make(map[uuid.UUID]*game.Room),
	}
	s.queue = state.NewQueue(log, s.applyPatch, s.onUpdated, s.onRejected)
	return s
}

// Bus exposes the event bus for transport adapters and tests.
func (s *Server) Bus() *events.Bus { return s.bus }

// CreateRoom registers a new room with the server's default rules.
func (s *Server) CreateRoom() *game.Room {
	id := uuid.New()
	rm := game.NewRoom(id, s.roomCfg, s.profiles, s.bus, s.queue, s.rng, s.log)
	s.mu.Lock()
	s.rooms[id] = rm
	s.mu.Unlock()
	s.log.WithField("room_id", id).Info("room created")
	return rm
}

// Room looks a live room up, or nil.
func (s *Server) Room(id uuid.UUID) *game.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

// CloseRoom disposes a room: timers cancelled, queue worker stopped, seat
// removed from the registry.
func (s *Server) CloseRoom(id uuid.UUID) {
	s.mu.Lock()
	rm, ok := s.rooms[id]
	if ok {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	if ok {
		rm.Close()
	}
}

// Shutdown closes every room and the event bus.
func (s *Server) Shutdown() {
	s.mu.Lock()
	rooms := make([]*game.Room, 0, len(s.rooms))
	for id, rm := range s.rooms {
		rooms = append(rooms, rm)
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	for _, rm := range rooms {
		rm.Close()
	}
	s.bus.Close()
}

// applyPatch is the queue's ApplyFunc: dispatch to the room's round, then
// record the applied update for the historian.
func (s *Server) applyPatch(p state.Patch) (*state.Result, error) {
	rm := s.Room(p.RoomID)
	if rm == nil {
		return nil, ErrUnknownRoom
	}
	res, err := rm.Round.Apply(p)
	if err != nil || res == nil {
		return res, err
	}

	rec := cache.RoundActionRecord{
		RoomID:        p.RoomID,
		Origin:        p.Origin(),
		ChangedFields: res.ChangedFields,
	}
	if p.Action != nil {
		rec.ActorID = p.Action.PlayerID
	}
	s.historian.RecordAsync(rec)
	return res, err
}

// onUpdated fans the merged state out per player, obfuscated to what each
// is allowed to see, and persists snapshots at the deal and at game over.
// Runs on the room's queue worker, so reading the round here is safe.
func (s *Server) onUpdated(roomID uuid.UUID, res state.Result) {
	rm := s.Room(roomID)
	if rm == nil {
		return
	}
	snap, ok := res.Snapshot.(game.RoomState)
	if !ok {
		return
	}

	for _, ps := range snap.Players {
		id := ps.ID
		s.bus.Publish(events.Event{
			Type:      events.TypeGameStateUpdated,
			RoomID:    roomID,
			Recipient: &id,
			At:        time.Now(),
			StateUpdated: &events.StateUpdated{
				State:         rm.Round.PrivateSnapshot(ps.ID),
				ChangedFields: res.ChangedFields,
			},
		})
	}

	if !containsField(res.ChangedFields, "phase") {
		return
	}
	switch snap.Phase {
	case game.PhaseDealing:
		s.store.SaveSnapshotAsync(roomID, stageInitial, snap)
	case game.PhaseGameOver:
		s.store.SaveSnapshotAsync(roomID, stageFinal, snap)
	}
}

// onRejected reports a dropped patch to the acting client.
func (s *Server) onRejected(roomID uuid.UUID, p state.Patch, err error) {
	if p.Action == nil {
		return
	}
	id := p.Action.PlayerID
	s.bus.Publish(events.Event{
		Type:      events.TypeActionError,
		RoomID:    roomID,
		Recipient: &id,
		At:        time.Now(),
		ActionError: &events.ActionError{
			Message: err.Error(),
			Action:  p.Action.Type,
		},
	})
}

func containsField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

// Routes returns the HTTP surface: room creation plus the websocket
// endpoint.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/rooms", s.handleCreateRoom)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rm := s.CreateRoom()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"roomId": rm.ID.String()})
}
