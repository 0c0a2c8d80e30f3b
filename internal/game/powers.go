package game

import (
	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/deck"
	"github.com/recallhq/recall/internal/events"
	"github.com/recallhq/recall/internal/model"
	"github.com/recallhq/recall/internal/state"
)

// openSpecialWindow gives the player who played a power card a bounded
// window to resolve it. Expiry resolves the power as a deliberate skip.
func (r *Round) openSpecialWindow() {
	p := r.player(r.pending.playerID)
	if p == nil || !p.Active() || !p.Connected {
		r.pending = nil
		r.advanceTurn()
		return
	}

	r.phase = PhaseSpecial
	r.windowID++
	switch r.pending.power {
	case deck.PowerPeek:
		p.Status = model.StatusQueenPeek
	case deck.PowerSwap:
		p.Status = model.StatusJackSwap
	default:
		p.Status = model.StatusPeeking
	}
	r.touch("phase", "players")
	r.emitStatus(p)

	r.sched.Schedule(r.cfg.SpecialPlayWindow, state.TimerExpiry{
		Kind:     state.TimerSpecialPlay,
		WindowID: r.windowID,
	})
	if p.Type == model.PlayerComputer {
		r.scheduleAI(p, state.TimerExpiry{WindowID: r.windowID})
	}
}

func (r *Round) useSpecialPower(a *model.Action) error {
	if r.phase != PhaseSpecial || r.pending == nil {
		return ErrWrongPhase
	}
	if a.PlayerID != r.pending.playerID {
		return ErrNotYourPower
	}
	if a.Power.Power != r.pending.power {
		return ErrWrongPower
	}
	p := r.player(a.PlayerID)
	if p == nil {
		return ErrUnknownPlayer
	}

	if a.Power.Skip {
		r.resolveSkip(p)
	} else {
		var err error
		switch r.pending.power {
		case deck.PowerPeek:
			err = r.resolvePeek(p, a.Power.Peek)
		case deck.PowerSwap:
			err = r.resolveSwap(p, a.Power.Swap)
		case deck.PowerSteal:
			err = r.resolveSteal(p, a.Power.Steal)
		case deck.PowerExtraDraw:
			r.resolveExtraDraw(p)
		case deck.PowerProtect:
			r.resolveProtect(p)
		case deck.PowerSkipTurn:
			r.resolveSkipTurn(p)
		}
		if err != nil {
			return err
		}
	}

	r.pending = nil
	r.touch("players")
	r.advanceTurn()
	return nil
}

func (r *Round) resolveSkip(p *model.Player) {
	r.emit(events.Event{
		Type:      events.TypePowerCardUsed,
		PowerUsed: &events.PowerUsed{PlayerID: p.ID, Power: r.pending.power, Skipped: true},
	})
}

func (r *Round) resolvePeek(p *model.Player, t *model.PeekTarget) error {
	if t == nil {
		return ErrMissingTarget
	}
	target := r.player(t.PlayerID)
	if target == nil {
		return ErrInvalidTarget
	}
	c := target.Hand.At(t.SlotIndex)
	if c == nil {
		return ErrSlotEmpty
	}

	p.MarkSeen(c.ID)
	r.revealTo(p.ID, c, target.ID, t.SlotIndex)
	r.emit(events.Event{
		Type: events.TypePowerCardUsed,
		PowerUsed: &events.PowerUsed{
			PlayerID: p.ID,
			Power:    deck.PowerPeek,
			Targets:  []events.Target{{PlayerID: target.ID, SlotIndex: t.SlotIndex}},
		},
	})
	return nil
}

func (r *Round) resolveSwap(p *model.Player, t *model.SwapTarget) error {
	if t == nil {
		return ErrMissingTarget
	}
	first := r.player(t.First.PlayerID)
	second := r.player(t.Second.PlayerID)
	if first == nil || second == nil {
		return ErrInvalidTarget
	}
	if r.handProtected(p, first) || r.handProtected(p, second) {
		return ErrProtectedHand
	}
	a := first.Hand.At(t.First.SlotIndex)
	b := second.Hand.At(t.Second.SlotIndex)
	if a == nil || b == nil {
		return ErrSlotEmpty
	}

	first.Hand.SetAt(t.First.SlotIndex, b, first.ID)
	second.Hand.SetAt(t.Second.SlotIndex, a, second.ID)
	r.emit(events.Event{
		Type: events.TypePowerCardUsed,
		PowerUsed: &events.PowerUsed{
			PlayerID: p.ID,
			Power:    deck.PowerSwap,
			Targets: []events.Target{
				{PlayerID: first.ID, SlotIndex: t.First.SlotIndex},
				{PlayerID: second.ID, SlotIndex: t.Second.SlotIndex},
			},
		},
	})
	return nil
}

func (r *Round) resolveSteal(p *model.Player, t *model.PeekTarget) error {
	if t == nil {
		return ErrMissingTarget
	}
	target := r.player(t.PlayerID)
	if target == nil || target.ID == p.ID {
		return ErrInvalidTarget
	}
	if r.handProtected(p, target) {
		return ErrProtectedHand
	}
	c := target.Hand.At(t.SlotIndex)
	if c == nil {
		return ErrSlotEmpty
	}

	target.Hand.Remove(c.ID)
	p.Hand.Add(c, p.ID)
	r.emit(events.Event{
		Type: events.TypePowerCardUsed,
		PowerUsed: &events.PowerUsed{
			PlayerID: p.ID,
			Power:    deck.PowerSteal,
			Targets:  []events.Target{{PlayerID: target.ID, SlotIndex: t.SlotIndex}},
		},
	})
	return nil
}

func (r *Round) resolveExtraDraw(p *model.Player) {
	c := r.deck.Draw()
	if c == nil {
		r.resolveSkip(p)
		return
	}
	idx := p.Hand.Append(c, p.ID)
	p.MarkSeen(c.ID)
	r.touch("drawPile")
	r.revealTo(p.ID, c, p.ID, idx)
	r.emit(events.Event{
		Type:      events.TypePowerCardUsed,
		PowerUsed: &events.PowerUsed{PlayerID: p.ID, Power: deck.PowerExtraDraw},
	})
}

func (r *Round) resolveProtect(p *model.Player) {
	r.protected[p.ID] = true
	r.emit(events.Event{
		Type:      events.TypePowerCardUsed,
		PowerUsed: &events.PowerUsed{PlayerID: p.ID, Power: deck.PowerProtect},
	})
}

func (r *Round) resolveSkipTurn(p *model.Player) {
	var victim uuid.UUID
	n := len(r.players)
	for step := 1; step <= n; step++ {
		q := r.players[((r.currentIdx+step)%n+n)%n]
		if q.ID != p.ID && q.Active() && q.Connected {
			victim = q.ID
			break
		}
	}
	if victim != (uuid.UUID{}) {
		r.skipNext[victim] = true
	}
	r.emit(events.Event{
		Type:      events.TypePowerCardUsed,
		PowerUsed: &events.PowerUsed{PlayerID: p.ID, Power: deck.PowerSkipTurn},
	})
}

// handProtected reports whether someone else's protected hand blocks the
// actor. A player may always touch their own hand.
func (r *Round) handProtected(actor, owner *model.Player) bool {
	return owner.ID != actor.ID && r.protected[owner.ID]
}
