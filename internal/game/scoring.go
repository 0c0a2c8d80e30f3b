package game

import (
	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/events"
	"github.com/recallhq/recall/internal/model"
)

// finishRound scores every hand and declares the winner set. Tie-breaks,
// in order: lowest score, fewest remaining cards, recall caller beats
// non-callers, then the win is shared.
func (r *Round) finishRound() {
	if r.phase == PhaseGameOver {
		return
	}

	scores := make(map[string]int, len(r.players))
	for _, p := range r.players {
		if p.DrawnCard != nil {
			// An uncommitted drawn card goes back on the discard pile so the
			// deck invariant holds through scoring.
			r.deck.Discard(p.DrawnCard)
			p.DrawnCard = nil
		}
		p.Score = p.CalculatePoints()
		scores[p.ID.String()] = p.Score
	}

	winners := r.determineWinners()
	winnerSet := make(map[uuid.UUID]bool, len(winners))
	for _, id := range winners {
		winnerSet[id] = true
	}
	for _, p := range r.players {
		if winnerSet[p.ID] {
			p.Status = model.StatusWinner
		} else if p.Status != model.StatusDisconnected {
			p.Status = model.StatusFinished
		}
	}

	r.phase = PhaseGameOver
	r.pending = nil
	r.windowID++
	r.sched.CancelAll()
	r.touch("phase", "players")

	var calledBy *uuid.UUID
	if r.recallCalledBy != nil {
		id := *r.recallCalledBy
		calledBy = &id
	}
	r.emit(events.Event{
		Type: events.TypeGameEnded,
		GameEnded: &events.GameEnded{
			Winners:  winners,
			Scores:   scores,
			CalledBy: calledBy,
		},
	})
}

// determineWinners ranks the eligible players. Disconnected players keep a
// score but cannot win.
func (r *Round) determineWinners() []uuid.UUID {
	eligible := make([]*model.Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Status != model.StatusDisconnected && p.Hand.Len() > 0 {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	best := eligible[0].Score
	for _, p := range eligible[1:] {
		if p.Score < best {
			best = p.Score
		}
	}
	cands := filterPlayers(eligible, func(p *model.Player) bool { return p.Score == best })

	if len(cands) > 1 {
		fewest := cands[0].Hand.Count()
		for _, p := range cands[1:] {
			if p.Hand.Count() < fewest {
				fewest = p.Hand.Count()
			}
		}
		cands = filterPlayers(cands, func(p *model.Player) bool { return p.Hand.Count() == fewest })
	}
	if len(cands) > 1 && r.recallCalledBy != nil {
		for _, p := range cands {
			if p.ID == *r.recallCalledBy {
				cands = []*model.Player{p}
				break
			}
		}
	}

	winners := make([]uuid.UUID, 0, len(cands))
	for _, p := range cands {
		winners = append(winners, p.ID)
	}
	return winners
}

func filterPlayers(in []*model.Player, keep func(*model.Player) bool) []*model.Player {
	out := in[:0:0]
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
