package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/deck"
	"github.com/recallhq/recall/internal/events"
	"github.com/recallhq/recall/internal/model"
	"github.com/recallhq/recall/internal/state"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// stubSched records armed timers on a virtual clock so tests drive expiry
// deterministically, in wall-clock order, without sleeping.
type stubSched struct {
	mu    sync.Mutex
	now   time.Duration
	items []schedItem
}

type schedItem struct {
	fireAt time.Duration
	exp    state.TimerExpiry
}

func (s *stubSched) Schedule(d time.Duration, exp state.TimerExpiry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, schedItem{fireAt: s.now + d, exp: exp})
}

func (s *stubSched) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// pop removes and returns the earliest armed timer, advancing the clock.
func (s *stubSched) pop() (state.TimerExpiry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return state.TimerExpiry{}, false
	}
	best := 0
	for i, it := range s.items {
		if it.fireAt < s.items[best].fireAt {
			best = i
		}
	}
	it := s.items[best]
	s.items = append(s.items[:best], s.items[best+1:]...)
	s.now = it.fireAt
	return it.exp, true
}

type fixture struct {
	t     *testing.T
	r     *Round
	sched *stubSched
	evs   <-chan events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLog()
	bus := events.NewBus(4096, log)
	t.Cleanup(bus.Close)
	ch, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	sched := &stubSched{}
	cfg := config.RoomConfig{IncludeJokers: false}
	r := NewRound(uuid.New(), cfg, config.LoadProfiles("", log), bus, sched,
		rand.New(rand.NewSource(99)), log)
	return &fixture{t: t, r: r, sched: sched, evs: ch}
}

func (f *fixture) apply(a *model.Action) (*state.Result, error) {
	a.At = time.Now()
	return f.r.Apply(state.Patch{
		UpdateID: uuid.New(),
		RoomID:   f.r.id,
		At:       time.Now(),
		Action:   a,
	})
}

func (f *fixture) mustApply(a *model.Action) *state.Result {
	f.t.Helper()
	res, err := f.apply(a)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) fire(exp state.TimerExpiry) (*state.Result, error) {
	return f.r.Apply(state.Patch{
		UpdateID: uuid.New(),
		RoomID:   f.r.id,
		At:       time.Now(),
		Timer:    &exp,
	})
}

// drain empties the event channel.
func (f *fixture) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-f.evs:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func findEvent(evs []events.Event, typ events.Type) *events.Event {
	for i := range evs {
		if evs[i].Type == typ {
			return &evs[i]
		}
	}
	return nil
}

// seat joins n human players and returns them in join order.
func (f *fixture) seat(n int) []*model.Player {
	f.t.Helper()
	for i := 0; i < n; i++ {
		f.mustApply(&model.Action{
			Type: model.ActionJoinGame,
			Join: &model.JoinGame{PlayerName: string(rune('A' + i)), PlayerType: model.PlayerHuman},
		})
	}
	require.Len(f.t, f.r.players, n)
	return f.r.players
}

// deal starts the match and spends every player's initial peeks so the
// round lands on the first turn.
func (f *fixture) deal(players []*model.Player) {
	f.t.Helper()
	f.mustApply(&model.Action{Type: model.ActionStartMatch, PlayerID: players[0].ID})
	for _, p := range players {
		for _, idx := range []int{0, 1} {
			f.mustApply(&model.Action{
				Type:     model.ActionPeekInitialCard,
				PlayerID: p.ID,
				Peek:     &model.PeekInitialCard{SlotIndex: idx},
			})
		}
	}
	require.Equal(f.t, PhaseTurn, f.r.phase)
}

// resolveWindows drives the round from a post-play window state back to a
// plain turn (or game over), expiring same-rank windows and skipping any
// pending special play.
func (f *fixture) resolveWindows() {
	f.t.Helper()
	for i := 0; i < 20; i++ {
		switch f.r.phase {
		case PhaseSameRank:
			_, err := f.fire(state.TimerExpiry{Kind: state.TimerSameRank, WindowID: f.r.windowID})
			require.NoError(f.t, err)
		case PhaseSpecial:
			require.NotNil(f.t, f.r.pending)
			f.mustApply(&model.Action{
				Type:     model.ActionUseSpecialPower,
				PlayerID: f.r.pending.playerID,
				Power:    &model.UseSpecialPower{Power: f.r.pending.power, Skip: true},
			})
		default:
			return
		}
	}
	f.t.Fatal("windows did not resolve")
}

// takeTurn plays one full turn for the current player: draw from the pile,
// discard the drawn card, resolve windows.
func (f *fixture) takeTurn() {
	f.t.Helper()
	cur := f.r.currentPlayer()
	require.NotNil(f.t, cur)
	f.mustApply(&model.Action{
		Type:     model.ActionDrawCard,
		PlayerID: cur.ID,
		Draw:     &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	f.mustApply(&model.Action{
		Type:     model.ActionPlayCard,
		PlayerID: cur.ID,
		Play:     &model.PlayCard{CardID: cur.DrawnCard.ID},
	})
	f.resolveWindows()
}

// cardsInPlay sums every card currently tracked by the round.
func (f *fixture) cardsInPlay() int {
	total := f.r.deck.DrawLen() + f.r.deck.DiscardLen()
	for _, p := range f.r.players {
		total += p.Hand.Count()
		if p.DrawnCard != nil {
			total++
		}
	}
	return total
}

func TestStartDealsFourToEachPlayer(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)

	f.mustApply(&model.Action{Type: model.ActionStartMatch, PlayerID: players[0].ID})

	assert.Equal(t, PhaseDealing, f.r.phase)
	assert.Equal(t, 44, f.r.deck.DrawLen())
	assert.Equal(t, 0, f.r.deck.DiscardLen())
	for _, p := range players {
		assert.Equal(t, 4, p.Hand.Count())
		assert.Equal(t, model.StatusInitialPeek, p.Status)
		assert.Equal(t, 2, p.InitialPeeksRemaining)
	}
}

func TestStartRequiresEnoughPlayers(t *testing.T) {
	f := newFixture(t)
	players := f.seat(1)
	_, err := f.apply(&model.Action{Type: model.ActionStartMatch, PlayerID: players[0].ID})
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestInitialPeeksRevealAndStartFirstTurn(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.mustApply(&model.Action{Type: model.ActionStartMatch, PlayerID: players[0].ID})
	f.drain()

	p := players[0]
	f.mustApply(&model.Action{
		Type: model.ActionPeekInitialCard, PlayerID: p.ID,
		Peek: &model.PeekInitialCard{SlotIndex: 0},
	})
	evs := f.drain()
	reveal := findEvent(evs, events.TypeCardRevealed)
	require.NotNil(t, reveal)
	require.NotNil(t, reveal.Recipient)
	assert.Equal(t, p.ID, *reveal.Recipient)
	assert.True(t, p.HasSeen(reveal.CardRevealed.Card.ID))

	f.mustApply(&model.Action{
		Type: model.ActionPeekInitialCard, PlayerID: p.ID,
		Peek: &model.PeekInitialCard{SlotIndex: 1},
	})
	_, err := f.apply(&model.Action{
		Type: model.ActionPeekInitialCard, PlayerID: p.ID,
		Peek: &model.PeekInitialCard{SlotIndex: 2},
	})
	assert.ErrorIs(t, err, ErrNoPeeksRemaining)

	// Second player finishes peeking; the first turn begins.
	for _, idx := range []int{0, 1} {
		f.mustApply(&model.Action{
			Type: model.ActionPeekInitialCard, PlayerID: players[1].ID,
			Peek: &model.PeekInitialCard{SlotIndex: idx},
		})
	}
	assert.Equal(t, PhaseTurn, f.r.phase)
	assert.Equal(t, 1, f.r.turnNumber)
	require.NotNil(t, f.r.currentPlayer())
	assert.Equal(t, model.StatusPlaying, f.r.currentPlayer().Status)
}

func TestInitialPeekTimeoutForcesFirstTurn(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.mustApply(&model.Action{Type: model.ActionStartMatch, PlayerID: players[0].ID})

	res, err := f.fire(state.TimerExpiry{Kind: state.TimerInitialPeek, WindowID: f.r.windowID})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, PhaseTurn, f.r.phase)

	// A stale re-delivery is an accepted no-op.
	res, err = f.fire(state.TimerExpiry{Kind: state.TimerInitialPeek, WindowID: f.r.windowID - 1})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDrawAndPlayFlow(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	cur := f.r.currentPlayer()
	other := players[0]
	if other == cur {
		other = players[1]
	}

	_, err := f.apply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: other.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = f.apply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDiscardPile},
	})
	assert.ErrorIs(t, err, ErrDiscardEmpty)

	f.mustApply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	require.NotNil(t, cur.DrawnCard)
	assert.Equal(t, model.StatusPlayingCard, cur.Status)
	assert.True(t, cur.HasSeen(cur.DrawnCard.ID))

	_, err = f.apply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	assert.ErrorIs(t, err, ErrAlreadyDrawn)

	_, err = f.apply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: uuid.New()},
	})
	assert.ErrorIs(t, err, ErrWrongCard)

	drawn := cur.DrawnCard
	f.drain()
	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: drawn.ID},
	})
	assert.Nil(t, cur.DrawnCard)
	assert.Equal(t, drawn.ID, f.r.deck.LastPlayed().ID)
	assert.Equal(t, PhaseSameRank, f.r.phase)
	assert.NotNil(t, findEvent(f.drain(), events.TypeSameRankWindow))

	// Turn actions are rejected while the window is open.
	_, err = f.apply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	assert.ErrorIs(t, err, ErrWrongPhase)

	f.resolveWindows()
	assert.Equal(t, PhaseTurn, f.r.phase)
	assert.NotEqual(t, cur.ID, f.r.currentPlayer().ID)
}

func TestPlayWithReplaceKeepsHandSize(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	cur := f.r.currentPlayer()
	f.mustApply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	drawn := cur.DrawnCard
	old := cur.Hand.At(0)
	require.NotNil(t, old)

	idx := 0
	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: drawn.ID, ReplaceIndex: &idx},
	})

	assert.Equal(t, drawn.ID, cur.Hand.At(0).ID)
	assert.Equal(t, old.ID, f.r.deck.LastPlayed().ID)
	assert.Equal(t, 4, cur.Hand.Count())
	assert.Nil(t, cur.DrawnCard)
}

func TestSameRankClaimRemovesCardAndReArmsWindow(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	cur := f.r.currentPlayer()
	f.mustApply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: cur.DrawnCard.ID},
	})
	require.Equal(t, PhaseSameRank, f.r.phase)
	rank := f.r.windowRank

	// Find any player holding a matching card.
	var claimant *model.Player
	var match *deck.Card
	for _, p := range f.r.players {
		for _, c := range p.Hand.Cards() {
			if c.Rank == rank {
				claimant, match = p, c
				break
			}
		}
		if claimant != nil {
			break
		}
	}
	if claimant == nil {
		t.Skip("no player holds a matching rank in this deal")
	}

	before := claimant.Hand.Count()
	windowBefore := f.r.windowID
	f.mustApply(&model.Action{
		Type:      model.ActionPlayOutOfTurn,
		PlayerID:  claimant.ID,
		OutOfTurn: &model.PlayOutOfTurn{CardID: match.ID},
	})

	assert.Equal(t, before-1, claimant.Hand.Count())
	assert.Equal(t, match.ID, f.r.deck.LastPlayed().ID)
	assert.Equal(t, PhaseSameRank, f.r.phase)
	assert.Greater(t, f.r.windowID, windowBefore)
}

func TestLateClaimAfterWindowClosesIsRejected(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)
	f.takeTurn()
	require.Equal(t, PhaseTurn, f.r.phase)

	victim := f.r.players[0]
	card := victim.Hand.Cards()[0]
	before := victim.Hand.Count()

	_, err := f.apply(&model.Action{
		Type:      model.ActionPlayOutOfTurn,
		PlayerID:  victim.ID,
		OutOfTurn: &model.PlayOutOfTurn{CardID: card.ID},
	})
	assert.ErrorIs(t, err, ErrWindowClosed)
	// Rejected without penalty: a late claim is not a wrong claim.
	assert.Equal(t, before, victim.Hand.Count())
}

func TestWrongRankClaimDrawsPenaltyCards(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	cur := f.r.currentPlayer()
	f.mustApply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: cur.DrawnCard.ID},
	})
	require.Equal(t, PhaseSameRank, f.r.phase)
	rank := f.r.windowRank

	var offender *model.Player
	var wrong *deck.Card
	for _, p := range f.r.players {
		for _, c := range p.Hand.Cards() {
			if c.Rank != rank {
				offender, wrong = p, c
				break
			}
		}
		if offender != nil {
			break
		}
	}
	require.NotNil(t, offender, "every deal holds some non-matching card")

	before := offender.Hand.Count()
	f.drain()
	res := f.mustApply(&model.Action{
		Type:      model.ActionPlayOutOfTurn,
		PlayerID:  offender.ID,
		OutOfTurn: &model.PlayOutOfTurn{CardID: wrong.ID},
	})
	require.NotNil(t, res)

	// The wrong card stays put and two penalty cards arrive.
	assert.Equal(t, before+2, offender.Hand.Count())
	assert.True(t, offender.Hand.Find(wrong.ID) >= 0)

	errEv := findEvent(f.drain(), events.TypeActionError)
	require.NotNil(t, errEv)
	require.NotNil(t, errEv.Recipient)
	assert.Equal(t, offender.ID, *errEv.Recipient)
}

func TestRecallGivesEachOtherPlayerOneFinalTurn(t *testing.T) {
	f := newFixture(t)
	players := f.seat(3)
	f.deal(players)

	caller := f.r.currentPlayer()
	f.drain()
	f.mustApply(&model.Action{Type: model.ActionCallRecall, PlayerID: caller.ID})

	assert.NotNil(t, findEvent(f.drain(), events.TypeRecallCalled))
	assert.True(t, caller.HasCalledRecall)
	assert.Equal(t, model.StatusFinished, caller.Status)

	// Both remaining players act exactly once, then the round scores.
	seen := make(map[uuid.UUID]int)
	for f.r.phase == PhaseTurn {
		cur := f.r.currentPlayer()
		require.NotEqual(t, caller.ID, cur.ID)
		seen[cur.ID]++
		f.takeTurn()
	}
	assert.Equal(t, PhaseGameOver, f.r.phase)
	require.Len(t, seen, 2)
	for _, turns := range seen {
		assert.Equal(t, 1, turns)
	}

	ended := findEvent(f.drain(), events.TypeGameEnded)
	require.NotNil(t, ended)
	require.NotNil(t, ended.GameEnded.CalledBy)
	assert.Equal(t, caller.ID, *ended.GameEnded.CalledBy)
	assert.Len(t, ended.GameEnded.Scores, 3)
	assert.NotEmpty(t, ended.GameEnded.Winners)
}

func TestRecallRejectedMidPlayAndWhenAlreadyCalled(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	cur := f.r.currentPlayer()
	f.mustApply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: cur.ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	_, err := f.apply(&model.Action{Type: model.ActionCallRecall, PlayerID: cur.ID})
	assert.ErrorIs(t, err, ErrAlreadyDrawn)

	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: cur.DrawnCard.ID},
	})
	f.resolveWindows()
	require.Equal(t, PhaseTurn, f.r.phase)

	f.mustApply(&model.Action{Type: model.ActionCallRecall, PlayerID: f.r.currentPlayer().ID})
	if f.r.phase == PhaseTurn {
		_, err = f.apply(&model.Action{Type: model.ActionCallRecall, PlayerID: f.r.currentPlayer().ID})
		assert.ErrorIs(t, err, ErrRecallCalled)
	}
}

func TestTurnTimerAutoPlays(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	discardBefore := f.r.deck.DiscardLen()
	res, err := f.fire(state.TimerExpiry{Kind: state.TimerTurn, TurnID: f.r.turnNumber})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, discardBefore+1, f.r.deck.DiscardLen())
	assert.Equal(t, PhaseSameRank, f.r.phase)

	// A stale turn timer is an accepted no-op.
	res, err = f.fire(state.TimerExpiry{Kind: state.TimerTurn, TurnID: f.r.turnNumber - 1})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCardsAreConservedAcrossTurns(t *testing.T) {
	f := newFixture(t)
	players := f.seat(3)
	f.deal(players)
	require.Equal(t, 52, f.cardsInPlay())

	for i := 0; i < 12 && f.r.phase == PhaseTurn; i++ {
		f.takeTurn()
		assert.Equal(t, 52, f.cardsInPlay())
	}
}

func TestCurrentPlayerOnlyChangesThroughTurnAdvance(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	cur := f.r.currentPlayer()
	turn := f.r.turnNumber

	// Rejected actions leave the turn untouched.
	_, _ = f.apply(&model.Action{Type: model.ActionCallRecall, PlayerID: players[1].ID})
	_, _ = f.apply(&model.Action{
		Type: model.ActionDrawCard, PlayerID: players[1].ID,
		Draw: &model.DrawCard{Source: model.DrawFromDrawPile},
	})
	assert.Equal(t, cur, f.r.currentPlayer())
	assert.Equal(t, turn, f.r.turnNumber)

	f.takeTurn()
	assert.Equal(t, turn+1, f.r.turnNumber)
}

func TestJoinErrors(t *testing.T) {
	f := newFixture(t)
	f.seat(2)

	_, err := f.apply(&model.Action{
		Type: model.ActionJoinGame,
		Join: &model.JoinGame{PlayerName: "A"},
	})
	assert.ErrorIs(t, err, ErrNameTaken)

	for _, name := range []string{"C", "D"} {
		f.mustApply(&model.Action{
			Type: model.ActionJoinGame,
			Join: &model.JoinGame{PlayerName: name},
		})
	}
	_, err = f.apply(&model.Action{
		Type: model.ActionJoinGame,
		Join: &model.JoinGame{PlayerName: "E"},
	})
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestDisconnectSkipsSeatAndReconnectRestores(t *testing.T) {
	f := newFixture(t)
	players := f.seat(3)
	f.deal(players)

	// Disconnect a non-current player.
	gone := players[0]
	if f.r.currentPlayer() == gone {
		gone = players[1]
	}
	f.mustApply(&model.Action{
		Type: model.ActionLeaveGame, PlayerID: gone.ID,
		Leave: &model.LeaveGame{Reason: "connection_lost"},
	})
	assert.Equal(t, model.StatusDisconnected, gone.Status)
	assert.False(t, gone.Connected)

	for i := 0; i < 4 && f.r.phase == PhaseTurn; i++ {
		require.NotEqual(t, gone.ID, f.r.currentPlayer().ID)
		f.takeTurn()
	}

	f.drain()
	f.mustApply(&model.Action{
		Type: model.ActionJoinGame, PlayerID: gone.ID,
		Join: &model.JoinGame{PlayerName: gone.Name},
	})
	assert.True(t, gone.Connected)

	sync := findEvent(f.drain(), events.TypeGameStateUpdated)
	require.NotNil(t, sync)
	require.NotNil(t, sync.Recipient)
	assert.Equal(t, gone.ID, *sync.Recipient)
}

func TestScoringTieBreaks(t *testing.T) {
	add := func(p *model.Player, ranks ...deck.Rank) {
		for _, rank := range ranks {
			p.Hand.Add(&deck.Card{
				ID: uuid.New(), Rank: rank, Suit: deck.SuitClubs,
				Points: deck.PointsFor(rank, deck.SuitClubs),
			}, p.ID)
		}
	}
	newPlayers := func() (*Round, []*model.Player) {
		f := newFixture(t)
		return f.r, f.seat(3)
	}

	t.Run("lowest score wins", func(t *testing.T) {
		r, players := newPlayers()
		add(players[0], deck.RankTwo, deck.RankThree) // 5
		add(players[1], deck.RankFour, deck.RankFive) // 9
		add(players[2], deck.RankNine, deck.RankNine) // 18
		for _, p := range players {
			p.Score = p.CalculatePoints()
		}
		assert.Equal(t, []uuid.UUID{players[0].ID}, r.determineWinners())
	})

	t.Run("tie broken by fewer cards", func(t *testing.T) {
		r, players := newPlayers()
		add(players[0], deck.RankFive)                               // 5, one card
		add(players[1], deck.RankTwo, deck.RankThree)                // 5, two cards
		add(players[2], deck.RankTwo, deck.RankTwo, deck.RankSeven)  // 11
		for _, p := range players {
			p.Score = p.CalculatePoints()
		}
		assert.Equal(t, []uuid.UUID{players[0].ID}, r.determineWinners())
	})

	t.Run("tie broken in favor of recall caller", func(t *testing.T) {
		r, players := newPlayers()
		add(players[0], deck.RankTwo, deck.RankThree)
		add(players[1], deck.RankThree, deck.RankTwo)
		add(players[2], deck.RankNine)
		for _, p := range players {
			p.Score = p.CalculatePoints()
		}
		id := players[1].ID
		r.recallCalledBy = &id
		assert.Equal(t, []uuid.UUID{players[1].ID}, r.determineWinners())
	})

	t.Run("unbroken tie is shared", func(t *testing.T) {
		r, players := newPlayers()
		add(players[0], deck.RankTwo, deck.RankThree)
		add(players[1], deck.RankThree, deck.RankTwo)
		add(players[2], deck.RankNine)
		for _, p := range players {
			p.Score = p.CalculatePoints()
		}
		id := players[2].ID
		r.recallCalledBy = &id
		winners := r.determineWinners()
		assert.ElementsMatch(t, []uuid.UUID{players[0].ID, players[1].ID}, winners)
	})
}

func TestPrivateSnapshotMasksUnseenCards(t *testing.T) {
	f := newFixture(t)
	players := f.seat(2)
	f.deal(players)

	viewer := players[0]
	snap := f.r.PrivateSnapshot(viewer.ID)

	for _, ps := range snap.Players {
		for _, slot := range ps.Slots {
			if !slot.Occupied {
				continue
			}
			if slot.Card != nil {
				assert.True(t, viewer.HasSeen(slot.Card.ID))
			}
		}
		// Scores stay hidden until the game is over.
		assert.Zero(t, ps.Score)
	}

	// The viewer's two peeked cards are visible to them.
	var visible int
	for _, slot := range snap.Players[0].Slots {
		if slot.Card != nil {
			visible++
		}
	}
	assert.Equal(t, 2, visible)
}

func TestComputerPlayersFinishAGame(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"bot-a", "bot-b"} {
		f.mustApply(&model.Action{
			Type: model.ActionJoinGame,
			Join: &model.JoinGame{PlayerName: name, PlayerType: model.PlayerComputer, Tier: "legend"},
		})
	}
	players := f.r.players
	f.mustApply(&model.Action{Type: model.ActionStartMatch, PlayerID: players[0].ID})

	// Drive every armed timer in virtual-clock order until the game ends.
	for i := 0; i < 20000 && f.r.phase != PhaseGameOver; i++ {
		exp, ok := f.sched.pop()
		require.True(t, ok, "round stalled with no timers armed")
		_, err := f.fire(exp)
		require.NoError(t, err)
	}

	require.Equal(t, PhaseGameOver, f.r.phase)
	ended := findEvent(f.drain(), events.TypeGameEnded)
	require.NotNil(t, ended)
	assert.NotEmpty(t, ended.GameEnded.Winners)
	assert.Len(t, ended.GameEnded.Scores, 2)
	assert.Equal(t, 52, f.cardsInPlay())
}

// powerCard fabricates a standalone card for scenarios the shuffled deal
// cannot produce deterministically.
func powerCard(rank deck.Rank, suit deck.Suit, power deck.Power) *deck.Card {
	return &deck.Card{
		ID: uuid.New(), Rank: rank, Suit: suit,
		Points: deck.PointsFor(rank, suit),
		Power:  power,
	}
}

func TestOutOfTurnPowerClaimOpensSpecialWindow(t *testing.T) {
	f := newFixture(t)
	players := f.seat(3)
	f.deal(players)

	cur := f.r.currentPlayer()
	queen := powerCard(deck.RankQueen, deck.SuitHearts, deck.PowerPeek)
	cur.DrawnCard = queen
	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: queen.ID},
	})
	require.Equal(t, PhaseSameRank, f.r.phase)

	var claimant *model.Player
	for _, p := range players {
		if p != cur {
			claimant = p
			break
		}
	}
	second := powerCard(deck.RankQueen, deck.SuitSpades, deck.PowerPeek)
	claimant.Hand.Add(second, claimant.ID)

	f.mustApply(&model.Action{
		Type: model.ActionPlayOutOfTurn, PlayerID: claimant.ID,
		OutOfTurn: &model.PlayOutOfTurn{CardID: second.ID},
	})

	// The claim re-arms the window and the claimant takes over the pending
	// power.
	require.Equal(t, PhaseSameRank, f.r.phase)
	require.NotNil(t, f.r.pending)
	assert.Equal(t, claimant.ID, f.r.pending.playerID)
	assert.Equal(t, deck.PowerPeek, f.r.pending.power)

	_, err := f.fire(state.TimerExpiry{Kind: state.TimerSameRank, WindowID: f.r.windowID})
	require.NoError(t, err)
	require.Equal(t, PhaseSpecial, f.r.phase)
	assert.Equal(t, model.StatusQueenPeek, claimant.Status)

	f.mustApply(&model.Action{
		Type: model.ActionUseSpecialPower, PlayerID: claimant.ID,
		Power: &model.UseSpecialPower{
			Power: deck.PowerPeek,
			Peek:  &model.PeekTarget{PlayerID: cur.ID, SlotIndex: 0},
		},
	})
	assert.Equal(t, PhaseTurn, f.r.phase)
	assert.Nil(t, f.r.pending)
}

func TestDisconnectDuringSpecialWindowClearsPending(t *testing.T) {
	f := newFixture(t)
	players := f.seat(3)
	f.deal(players)

	cur := f.r.currentPlayer()
	queen := powerCard(deck.RankQueen, deck.SuitHearts, deck.PowerPeek)
	cur.DrawnCard = queen
	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: cur.ID,
		Play: &model.PlayCard{CardID: queen.ID},
	})
	_, err := f.fire(state.TimerExpiry{Kind: state.TimerSameRank, WindowID: f.r.windowID})
	require.NoError(t, err)
	require.Equal(t, PhaseSpecial, f.r.phase)
	require.NotNil(t, f.r.pending)

	f.mustApply(&model.Action{
		Type: model.ActionLeaveGame, PlayerID: cur.ID,
		Leave: &model.LeaveGame{Reason: "connection_lost"},
	})
	assert.Nil(t, f.r.pending)
	require.Equal(t, PhaseTurn, f.r.phase)
	next := f.r.currentPlayer()
	require.NotEqual(t, cur.ID, next.ID)

	f.mustApply(&model.Action{
		Type: model.ActionJoinGame, PlayerID: cur.ID,
		Join: &model.JoinGame{PlayerName: cur.Name},
	})

	// A later plain play must end in a turn advance, not a revived special
	// window for the returned player.
	five := powerCard(deck.RankFive, deck.SuitClubs, deck.PowerNone)
	next.DrawnCard = five
	f.mustApply(&model.Action{
		Type: model.ActionPlayCard, PlayerID: next.ID,
		Play: &model.PlayCard{CardID: five.ID},
	})
	_, err = f.fire(state.TimerExpiry{Kind: state.TimerSameRank, WindowID: f.r.windowID})
	require.NoError(t, err)
	assert.Equal(t, PhaseTurn, f.r.phase)
	assert.Nil(t, f.r.pending)
}

func TestComputerInitialPeeksGoThroughPeekActions(t *testing.T) {
	f := newFixture(t)
	f.mustApply(&model.Action{
		Type: model.ActionJoinGame,
		Join: &model.JoinGame{PlayerName: "ada", PlayerType: model.PlayerHuman},
	})
	f.mustApply(&model.Action{
		Type: model.ActionJoinGame,
		Join: &model.JoinGame{PlayerName: "bot", PlayerType: model.PlayerComputer, Tier: "legend"},
	})
	players := f.r.players
	human, bot := players[0], players[1]

	f.mustApply(&model.Action{Type: model.ActionStartMatch, PlayerID: human.ID})
	f.drain()

	// The bot's dealing move is the earliest armed timer: its decision
	// delay is shorter than the peek window.
	exp, ok := f.sched.pop()
	require.True(t, ok)
	require.Equal(t, state.TimerAIMove, exp.Kind)
	_, err := f.fire(exp)
	require.NoError(t, err)

	assert.Zero(t, bot.InitialPeeksRemaining)
	assert.Equal(t, model.StatusReady, bot.Status)
	assert.Equal(t, PhaseDealing, f.r.phase)

	// Peeking through the action path means the bot got the same private
	// reveals a human peeker would.
	reveals := 0
	for _, ev := range f.drain() {
		if ev.Type == events.TypeCardRevealed && ev.Recipient != nil && *ev.Recipient == bot.ID {
			reveals++
		}
	}
	assert.Equal(t, 2, reveals)
}
