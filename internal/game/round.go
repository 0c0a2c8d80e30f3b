// Package game implements the round orchestrator: phase machine, turn
// order, the same-rank and special-play windows, recall resolution, and
// scoring. A Round is confined to its room's queue worker; every entry
// point is a patch applied through state.Queue, so no locking happens here.
package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/ai"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/deck"
	"github.com/recallhq/recall/internal/events"
	"github.com/recallhq/recall/internal/model"
	"github.com/recallhq/recall/internal/state"
)

// Phase is the round's lifecycle stage. Phase transitions happen only
// inside Apply, driven by actions and timer expiries.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseDealing  Phase = "dealing"
	PhaseTurn     Phase = "player_turn"
	PhaseSameRank Phase = "same_rank_window"
	PhaseSpecial  Phase = "special_play_window"
	PhaseGameOver Phase = "game_over"
)

// Scheduler arms timers whose expiry re-enters the round as a queue patch.
// The Room implementation owns the actual time.Timer handles so they can be
// cancelled in bulk when the room closes.
type Scheduler interface {
	Schedule(d time.Duration, exp state.TimerExpiry)
	CancelAll()
}

// pendingPower is a played power card waiting for its special-play window.
type pendingPower struct {
	playerID uuid.UUID
	power    deck.Power
}

// Round is one game of Recall in one room. All fields are guarded by queue
// confinement: only the room's single worker goroutine touches them.
type Round struct {
	id       uuid.UUID
	cfg      config.RoomConfig
	log      *logrus.Entry
	bus      *events.Bus
	sched    Scheduler
	rng      *rand.Rand
	profiles map[ai.Tier]ai.Profile

	phase   Phase
	players []*model.Player
	deck    *deck.Deck
	powers  deck.PowerTable

	currentIdx  int
	turnNumber  int
	roundNumber int

	// windowID is a generation counter shared by every timed window. A
	// timer expiry carrying an older id is stale and applies as a no-op.
	windowID   uint64
	windowRank deck.Rank
	pending    *pendingPower

	recallCalledBy *uuid.UUID
	finalTurnsLeft int

	protected map[uuid.UUID]bool
	skipNext  map[uuid.UUID]bool

	engines map[uuid.UUID]*ai.Engine

	changed map[string]bool
}

// NewRound creates an empty round in the waiting phase.
func NewRound(id uuid.UUID, cfg config.RoomConfig, profiles map[ai.Tier]ai.Profile,
	bus *events.Bus, sched Scheduler, rng *rand.Rand, log *logrus.Entry) *Round {
	cfg = cfg.Normalize()
	return &Round{
		id:         id,
		cfg:        cfg,
		log:        log.WithField("room_id", id),
		bus:        bus,
		sched:      sched,
		rng:        rng,
		profiles:   profiles,
		phase:      PhaseWaiting,
		powers:     deck.DefaultPowers().WithAdded(cfg.AddedPowers),
		currentIdx: -1,
		protected:  make(map[uuid.UUID]bool),
		skipNext:   make(map[uuid.UUID]bool),
		engines:    make(map[uuid.UUID]*ai.Engine),
		changed:    make(map[string]bool),
	}
}

// CurrentPhase returns the current lifecycle stage.
func (r *Round) CurrentPhase() Phase { return r.phase }

// Players returns the seated players in join order. Test/diagnostic helper;
// callers must respect queue confinement.
func (r *Round) Players() []*model.Player { return r.players }

// Apply validates one patch against current state and merges it. This is
// the queue's ApplyFunc: a returned error drops the patch without any
// mutation, a nil Result is an accepted no-op (stale timer).
func (r *Round) Apply(p state.Patch) (*state.Result, error) {
	r.changed = make(map[string]bool)

	var err error
	switch {
	case p.Action != nil:
		err = r.applyAction(p.Action)
	case p.Timer != nil:
		err = r.applyTimer(p.Timer)
	default:
		err = fmt.Errorf("empty patch %s", p.UpdateID)
	}
	if err != nil {
		return nil, err
	}
	if len(r.changed) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(r.changed))
	for f := range r.changed {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &state.Result{Snapshot: r.Snapshot(), ChangedFields: fields}, nil
}

func (r *Round) touch(fields ...string) {
	for _, f := range fields {
		r.changed[f] = true
	}
}

func (r *Round) applyAction(a *model.Action) error {
	switch a.Type {
	case model.ActionJoinGame:
		return r.join(a)
	case model.ActionStartMatch:
		return r.start(a)
	case model.ActionPeekInitialCard:
		return r.peekInitial(a)
	case model.ActionDrawCard:
		return r.draw(a)
	case model.ActionPlayCard:
		return r.play(a)
	case model.ActionPlayOutOfTurn:
		return r.playOutOfTurn(a)
	case model.ActionUseSpecialPower:
		return r.useSpecialPower(a)
	case model.ActionCallRecall:
		return r.callRecall(a)
	case model.ActionLeaveGame:
		return r.leave(a)
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// ---- seating -------------------------------------------------------------

func (r *Round) join(a *model.Action) error {
	switch r.phase {
	case PhaseWaiting:
		if len(r.players) >= r.cfg.MaxPlayers {
			return ErrRoomFull
		}
		for _, p := range r.players {
			if p.Name == a.Join.PlayerName {
				return ErrNameTaken
			}
		}
		p := model.NewPlayer(a.Join.PlayerName, a.Join.PlayerType)
		if a.PlayerID != uuid.Nil {
			// Transport-assigned identity, stable across reconnects.
			p.ID = a.PlayerID
		}
		if a.Join.PlayerType == model.PlayerComputer {
			profile := r.profiles[ai.Tier(a.Join.Tier)]
			if profile.Tier == "" {
				profile = ai.DefaultProfile(ai.Tier(a.Join.Tier))
			}
			seed := rand.New(rand.NewSource(r.rng.Int63()))
			r.engines[p.ID] = ai.New(profile, seed, r.log.WithField("player_id", p.ID))
		}
		p.Status = model.StatusReady
		r.players = append(r.players, p)
		r.touch("players")
		r.emitStatus(p)
		return nil
	case PhaseGameOver:
		return ErrGameOver
	default:
		// Mid-game join reconnects a disconnected seat, matched by id or name.
		for _, p := range r.players {
			if (p.ID == a.PlayerID || p.Name == a.Join.PlayerName) && !p.Connected {
				return r.reconnect(p)
			}
		}
		return ErrGameInProgress
	}
}

func (r *Round) reconnect(p *model.Player) error {
	p.Connected = true
	if p.Status == model.StatusDisconnected {
		p.Status = model.StatusWaiting
	}
	r.touch("players")
	r.emitStatus(p)
	// Full private sync so the returning client can rebuild its view.
	id := p.ID
	r.emit(events.Event{
		Type:      events.TypeGameStateUpdated,
		Recipient: &id,
		StateUpdated: &events.StateUpdated{
			State:         r.PrivateSnapshot(p.ID),
			ChangedFields: []string{"players", "phase"},
		},
	})
	return nil
}

func (r *Round) leave(a *model.Action) error {
	p := r.player(a.PlayerID)
	if p == nil {
		return ErrUnknownPlayer
	}

	if r.phase == PhaseWaiting {
		for i, q := range r.players {
			if q.ID == p.ID {
				r.players = append(r.players[:i], r.players[i+1:]...)
				break
			}
		}
		delete(r.engines, p.ID)
		r.touch("players")
		return nil
	}
	if r.phase == PhaseGameOver {
		return ErrGameOver
	}

	wasCurrent := r.currentPlayer() == p
	p.Connected = false
	p.Status = model.StatusDisconnected
	r.touch("players")
	r.emitStatus(p)

	if r.activeCount() <= 1 {
		r.finishRound()
		return nil
	}
	if r.pending != nil && r.pending.playerID == p.ID && r.phase == PhaseSpecial {
		r.resolveSkip(p)
		r.pending = nil
		r.advanceTurn()
		return nil
	}
	if wasCurrent && r.phase == PhaseTurn {
		if p.DrawnCard != nil {
			r.deck.Discard(p.DrawnCard)
			p.DrawnCard = nil
			r.touch("discardPile")
		}
		r.advanceTurn()
	}
	return nil
}

// ---- match start and dealing --------------------------------------------

func (r *Round) start(a *model.Action) error {
	if r.phase != PhaseWaiting {
		return ErrGameInProgress
	}
	if r.player(a.PlayerID) == nil {
		return ErrUnknownPlayer
	}
	if len(r.players) < r.cfg.MinPlayers {
		return ErrNotEnoughPlayers
	}

	r.deck = deck.Build(r.cfg.IncludeJokers, r.powers, r.rng)
	for _, p := range r.players {
		for i := 0; i < model.DealSize; i++ {
			p.Hand.Add(r.deck.Draw(), p.ID)
		}
		p.Status = model.StatusInitialPeek
	}
	r.phase = PhaseDealing
	r.turnNumber = 0
	r.roundNumber = 1
	r.touch("phase", "players", "drawPile")

	r.windowID++
	r.sched.Schedule(r.cfg.InitialPeekWindow, state.TimerExpiry{
		Kind:     state.TimerInitialPeek,
		WindowID: r.windowID,
	})
	for _, p := range r.players {
		if p.Type == model.PlayerComputer {
			r.scheduleAI(p, state.TimerExpiry{WindowID: r.windowID})
		}
		r.emitStatus(p)
	}
	return nil
}

func (r *Round) peekInitial(a *model.Action) error {
	if r.phase != PhaseDealing {
		return ErrWrongPhase
	}
	p := r.player(a.PlayerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if p.InitialPeeksRemaining <= 0 {
		return ErrNoPeeksRemaining
	}
	c := p.Hand.At(a.Peek.SlotIndex)
	if c == nil {
		if a.Peek.SlotIndex < 0 || a.Peek.SlotIndex >= p.Hand.Len() {
			return ErrSlotOutOfRange
		}
		return ErrSlotEmpty
	}

	p.MarkSeen(c.ID)
	p.InitialPeeksRemaining--
	if p.InitialPeeksRemaining == 0 {
		p.Status = model.StatusReady
		r.emitStatus(p)
	}
	r.touch("players")
	r.revealTo(p.ID, c, p.ID, a.Peek.SlotIndex)

	if r.allPeeksDone() {
		r.beginFirstTurn()
	}
	return nil
}

func (r *Round) allPeeksDone() bool {
	for _, p := range r.players {
		if p.Connected && p.InitialPeeksRemaining > 0 {
			return false
		}
	}
	return true
}

func (r *Round) beginFirstTurn() {
	for _, p := range r.players {
		p.InitialPeeksRemaining = 0
		if p.Status == model.StatusInitialPeek {
			p.Status = model.StatusReady
		}
	}
	r.advanceTurn()
}

// ---- turn flow -----------------------------------------------------------

// advanceTurn moves currentIdx to the next active seat. It is the only
// place currentIdx, turnNumber, and roundNumber change.
func (r *Round) advanceTurn() {
	if r.recallCalledBy != nil && r.finalTurnsLeft <= 0 {
		r.finishRound()
		return
	}

	n := len(r.players)
	next := -1
	for step := 1; step <= n; step++ {
		idx := ((r.currentIdx + step) % n + n) % n
		p := r.players[idx]
		if !p.Active() || !p.Connected {
			continue
		}
		if r.skipNext[p.ID] {
			delete(r.skipNext, p.ID)
			if r.recallCalledBy != nil {
				r.finalTurnsLeft--
			}
			continue
		}
		next = idx
		break
	}
	if next < 0 {
		r.finishRound()
		return
	}
	if next <= r.currentIdx {
		r.roundNumber++
		r.touch("roundNumber")
	}
	r.currentIdx = next
	r.turnNumber++
	r.phase = PhaseTurn
	if r.recallCalledBy != nil {
		r.finalTurnsLeft--
	}

	cur := r.players[next]
	delete(r.protected, cur.ID)
	for _, p := range r.players {
		if !p.Active() || !p.Connected {
			continue
		}
		if p == cur {
			p.Status = model.StatusPlaying
		} else {
			p.Status = model.StatusWaiting
		}
	}
	r.touch("phase", "currentPlayer", "turnNumber", "players")

	r.emit(events.Event{
		Type:       events.TypePlayerTurn,
		PlayerTurn: &events.PlayerTurn{PlayerID: cur.ID, TurnNumber: r.turnNumber},
	})
	r.sched.Schedule(r.cfg.TurnTimer, state.TimerExpiry{
		Kind:   state.TimerTurn,
		TurnID: r.turnNumber,
	})
	if cur.Type == model.PlayerComputer {
		r.scheduleAI(cur, state.TimerExpiry{TurnID: r.turnNumber})
	}
}

func (r *Round) draw(a *model.Action) error {
	p, err := r.requireTurn(a.PlayerID)
	if err != nil {
		return err
	}
	if p.DrawnCard != nil {
		return ErrAlreadyDrawn
	}

	var c *deck.Card
	switch a.Draw.Source {
	case model.DrawFromDiscardPile:
		c = r.deck.DrawFromDiscard()
		if c == nil {
			return ErrDiscardEmpty
		}
		r.touch("discardPile")
	default:
		c = r.deck.Draw()
		if c == nil {
			// Nothing left anywhere in the piles: the round cannot continue.
			r.finishRound()
			return nil
		}
		r.touch("drawPile")
	}

	p.DrawnCard = c
	p.MarkSeen(c.ID)
	p.Status = model.StatusPlayingCard
	r.touch("players")
	r.emitStatus(p)
	r.revealTo(p.ID, c, p.ID, -1)

	if p.Type == model.PlayerComputer {
		r.scheduleAI(p, state.TimerExpiry{TurnID: r.turnNumber})
	}
	return nil
}

func (r *Round) play(a *model.Action) error {
	p, err := r.requireTurn(a.PlayerID)
	if err != nil {
		return err
	}
	if p.DrawnCard == nil {
		return ErrNoDrawnCard
	}
	if a.Play.CardID != p.DrawnCard.ID {
		return ErrWrongCard
	}

	var played *deck.Card
	if a.Play.ReplaceIndex == nil {
		played = p.DrawnCard
	} else {
		idx := *a.Play.ReplaceIndex
		if idx < 0 || idx >= p.Hand.Len() {
			return ErrSlotOutOfRange
		}
		old := p.Hand.ReplaceAt(idx, p.DrawnCard, p.ID)
		if old == nil {
			return ErrSlotEmpty
		}
		played = old
	}
	p.DrawnCard = nil
	r.discard(played)
	r.touch("players")

	if power := played.Power; power != deck.PowerNone {
		r.pending = &pendingPower{playerID: p.ID, power: power}
	}
	r.openSameRankWindow(played.Rank)
	return nil
}

func (r *Round) callRecall(a *model.Action) error {
	p, err := r.requireTurn(a.PlayerID)
	if err != nil {
		return err
	}
	if p.DrawnCard != nil {
		return ErrAlreadyDrawn
	}
	if r.recallCalledBy != nil {
		return ErrRecallCalled
	}

	id := p.ID
	r.recallCalledBy = &id
	p.HasCalledRecall = true
	p.Status = model.StatusFinished
	r.finalTurnsLeft = 0
	for _, q := range r.players {
		if q != p && q.Active() && q.Connected {
			r.finalTurnsLeft++
		}
	}
	r.touch("players", "recall")
	r.emitStatus(p)
	r.emit(events.Event{
		Type:         events.TypeRecallCalled,
		RecallCalled: &events.RecallCalled{PlayerID: p.ID},
	})
	r.advanceTurn()
	return nil
}

// requireTurn checks the acting player exists and owns the current turn.
func (r *Round) requireTurn(playerID uuid.UUID) (*model.Player, error) {
	if r.phase == PhaseWaiting || r.phase == PhaseDealing {
		return nil, ErrGameNotStarted
	}
	if r.phase == PhaseGameOver {
		return nil, ErrGameOver
	}
	if r.phase != PhaseTurn {
		return nil, ErrWrongPhase
	}
	p := r.player(playerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if cur := r.currentPlayer(); cur == nil || cur.ID != playerID {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

// ---- same-rank window ----------------------------------------------------

// openSameRankWindow arms the out-of-turn window for the rank just played.
// Each play re-arms it, so a claim chain keeps the window alive.
func (r *Round) openSameRankWindow(rank deck.Rank) {
	r.phase = PhaseSameRank
	r.windowID++
	r.windowRank = rank
	deadline := time.Now().Add(r.cfg.SameRankWindow)
	for _, p := range r.players {
		if p.Active() && p.Connected {
			p.Status = model.StatusSameRankWindow
		}
	}
	r.touch("phase", "players")

	r.emit(events.Event{
		Type:     events.TypeSameRankWindow,
		SameRank: &events.SameRank{Rank: rank, Deadline: deadline},
	})
	r.sched.Schedule(r.cfg.SameRankWindow, state.TimerExpiry{
		Kind:     state.TimerSameRank,
		WindowID: r.windowID,
	})
	for _, p := range r.players {
		if p.Type == model.PlayerComputer && p.Active() && p.Connected {
			r.scheduleAI(p, state.TimerExpiry{WindowID: r.windowID})
		}
	}
}

func (r *Round) playOutOfTurn(a *model.Action) error {
	if r.phase != PhaseSameRank {
		return ErrWindowClosed
	}
	p := r.player(a.PlayerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if !p.Active() || !p.Connected {
		return ErrPlayerInactive
	}
	idx := p.Hand.Find(a.OutOfTurn.CardID)
	if idx < 0 {
		return ErrCardNotInHand
	}

	card := p.Hand.At(idx)
	if card.Rank != r.windowRank {
		// Wrong rank during an open window: the claim stands as a mistake
		// and draws penalty cards instead of being rejected.
		r.applyPenalty(p)
		return nil
	}

	card, _ = p.Hand.Remove(a.OutOfTurn.CardID)
	r.discard(card)
	r.touch("players")
	if card.Power != deck.PowerNone {
		// An out-of-turn power card earns its window too. The latest power
		// played supersedes any earlier one in the claim chain.
		r.pending = &pendingPower{playerID: p.ID, power: card.Power}
	}
	// The successful claim is itself a play, so the window re-arms.
	r.openSameRankWindow(card.Rank)
	return nil
}

// applyPenalty deals penalty cards into the offender's hand, filling holes
// first like any non-drawn card.
func (r *Round) applyPenalty(p *model.Player) {
	for i := 0; i < r.cfg.PenaltyDrawCount; i++ {
		c := r.deck.Draw()
		if c == nil {
			break
		}
		p.Hand.Add(c, p.ID)
	}
	r.touch("players", "drawPile")
	r.log.WithFields(logrus.Fields{
		"player_id": p.ID,
		"penalty":   r.cfg.PenaltyDrawCount,
	}).Info("wrong-rank claim penalized")

	id := p.ID
	r.emit(events.Event{
		Type:      events.TypeActionError,
		Recipient: &id,
		ActionError: &events.ActionError{
			Message: "card rank does not match: penalty cards drawn",
			Action:  model.ActionPlayOutOfTurn,
		},
	})
}

// closeSameRankWindow resolves the window: a pending power card opens its
// special-play window, otherwise the turn ends.
func (r *Round) closeSameRankWindow() {
	if r.pending != nil {
		r.openSpecialWindow()
		return
	}
	r.advanceTurn()
}

// ---- helpers -------------------------------------------------------------

func (r *Round) discard(c *deck.Card) {
	r.deck.Discard(c)
	r.touch("discardPile")
	r.emit(events.Event{
		Type:           events.TypeDiscardPileUpdated,
		DiscardUpdated: &events.DiscardUpdated{TopCard: c},
	})
}

func (r *Round) player(id uuid.UUID) *model.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Round) currentPlayer() *model.Player {
	if r.currentIdx < 0 || r.currentIdx >= len(r.players) {
		return nil
	}
	return r.players[r.currentIdx]
}

func (r *Round) activeCount() int {
	n := 0
	for _, p := range r.players {
		if p.Active() && p.Connected {
			n++
		}
	}
	return n
}

func (r *Round) emit(ev events.Event) {
	ev.RoomID = r.id
	ev.At = time.Now()
	r.bus.Publish(ev)
}

func (r *Round) emitStatus(p *model.Player) {
	r.emit(events.Event{
		Type:          events.TypePlayerStatusUpdated,
		StatusUpdated: &events.StatusUpdated{PlayerID: p.ID, Status: p.Status},
	})
}

// revealTo sends a private card reveal. slotIndex -1 means a drawn card not
// yet in any slot.
func (r *Round) revealTo(viewer uuid.UUID, c *deck.Card, owner uuid.UUID, slotIndex int) {
	id := viewer
	r.emit(events.Event{
		Type:      events.TypeCardRevealed,
		Recipient: &id,
		CardRevealed: &events.CardRevealed{
			Card:      c,
			OwnerID:   owner,
			SlotIndex: slotIndex,
		},
	})
}

func (r *Round) scheduleAI(p *model.Player, exp state.TimerExpiry) {
	e := r.engines[p.ID]
	if e == nil {
		return
	}
	exp.Kind = state.TimerAIMove
	exp.PlayerID = p.ID
	r.sched.Schedule(e.Profile().DecisionDelay(), exp)
}
