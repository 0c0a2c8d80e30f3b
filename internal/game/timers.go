package game

import (
	"time"

	"github.com/recallhq/recall/internal/ai"
	"github.com/recallhq/recall/internal/model"
	"github.com/recallhq/recall/internal/state"
)

// applyTimer handles an expiry patch. Stale expiries, whose WindowID or
// TurnID no longer matches, are accepted no-ops: the timer raced a player
// action that already moved the round on.
func (r *Round) applyTimer(t *state.TimerExpiry) error {
	switch t.Kind {
	case state.TimerInitialPeek:
		if r.phase != PhaseDealing || t.WindowID != r.windowID {
			return nil
		}
		r.log.Debug("initial peek window expired")
		r.touch("players")
		r.beginFirstTurn()
		return nil

	case state.TimerSameRank:
		if r.phase != PhaseSameRank || t.WindowID != r.windowID {
			return nil
		}
		r.closeSameRankWindow()
		return nil

	case state.TimerSpecialPlay:
		if r.phase != PhaseSpecial || t.WindowID != r.windowID || r.pending == nil {
			return nil
		}
		p := r.player(r.pending.playerID)
		if p != nil {
			r.resolveSkip(p)
		}
		r.pending = nil
		r.touch("players")
		r.advanceTurn()
		return nil

	case state.TimerTurn:
		if r.phase != PhaseTurn || t.TurnID != r.turnNumber {
			return nil
		}
		r.autoPlay()
		return nil

	case state.TimerAIMove:
		return r.aiMove(t)
	}
	return nil
}

// autoPlay finishes an overrun turn on the player's behalf: draw if they
// have not, then discard the drawn card. No power triggers on a timeout
// play, but the same-rank window still opens.
func (r *Round) autoPlay() {
	p := r.currentPlayer()
	if p == nil {
		return
	}
	r.log.WithField("player_id", p.ID).Info("turn timer expired, auto-playing")

	if p.DrawnCard == nil {
		c := r.deck.Draw()
		if c == nil {
			r.finishRound()
			return
		}
		p.DrawnCard = c
		p.MarkSeen(c.ID)
		r.touch("drawPile")
	}
	played := p.DrawnCard
	p.DrawnCard = nil
	r.discard(played)
	r.touch("players")
	r.openSameRankWindow(played.Rank)
}

// aiMove runs one scheduled computer decision. The produced action goes
// through the same applyAction path as a human action; a decision that
// fails validation is logged and dropped without breaking the round.
func (r *Round) aiMove(t *state.TimerExpiry) error {
	p := r.player(t.PlayerID)
	e := r.engines[t.PlayerID]
	if p == nil || e == nil {
		return nil
	}

	// Initial peeks: computers spend both allowances on their first slots,
	// as peek actions through the same path a human client takes.
	if r.phase == PhaseDealing {
		if t.WindowID != r.windowID {
			return nil
		}
		for _, idx := range p.Hand.OccupiedIndices() {
			if p.InitialPeeksRemaining == 0 {
				break
			}
			r.applyDecision(&model.Action{
				Type:     model.ActionPeekInitialCard,
				PlayerID: p.ID,
				At:       time.Now(),
				Peek:     &model.PeekInitialCard{SlotIndex: idx},
			})
		}
		return nil
	}

	if t.WindowID != 0 {
		if t.WindowID != r.windowID {
			return nil
		}
		switch r.phase {
		case PhaseSameRank:
			act := e.DecideSameRank(r.viewFor(p), r.windowRank)
			if act == nil {
				return nil
			}
			r.applyDecision(act)
		case PhaseSpecial:
			if r.pending == nil || r.pending.playerID != p.ID {
				return nil
			}
			act := e.DecidePower(r.viewFor(p), r.pending.power)
			r.applyDecision(&act)
		}
		return nil
	}

	if r.phase != PhaseTurn || t.TurnID != r.turnNumber {
		return nil
	}
	if cur := r.currentPlayer(); cur == nil || cur.ID != p.ID {
		return nil
	}
	act := e.DecideTurn(r.viewFor(p))
	r.applyDecision(&act)
	return nil
}

// applyDecision funnels an AI action through normal validation. Rule errors
// only lose the AI its opportunity; the window or turn timer still resolves
// the round.
func (r *Round) applyDecision(a *model.Action) {
	if err := r.applyAction(a); err != nil {
		r.log.WithField("player_id", a.PlayerID).WithField("action", a.Type).
			WithError(err).Debug("computer decision rejected")
	}
}

// viewFor builds the read-only view the decision engine sees: only cards
// the player has legitimately seen carry card detail.
func (r *Round) viewFor(p *model.Player) ai.View {
	v := ai.View{
		SelfID:       p.ID,
		Self:         handViewFor(p, p),
		DrawnCard:    p.DrawnCard,
		DiscardTop:   r.deck.LastPlayed(),
		DrawPileSize: r.deck.DrawLen(),
		DeckSize:     r.deck.Size(),
		TurnNumber:   r.turnNumber,
		RecallCalled: r.recallCalledBy != nil,
	}
	for _, q := range r.players {
		if q.ID == p.ID || q.Status == model.StatusDisconnected {
			continue
		}
		v.Opponents = append(v.Opponents, handViewFor(p, q))
	}
	return v
}

func handViewFor(viewer, owner *model.Player) ai.HandView {
	hv := ai.HandView{PlayerID: owner.ID}
	for i, s := range owner.Hand.Slots() {
		if !s.Occupied {
			continue
		}
		sv := ai.SlotView{Index: i}
		if viewer.HasSeen(s.Card.ID) {
			sv.Known = true
			sv.Card = s.Card
		}
		hv.Slots = append(hv.Slots, sv)
	}
	return hv
}
