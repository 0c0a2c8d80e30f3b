package game

import "errors"

// Rule errors returned by Apply when a patch fails validation against the
// room's current state. The queue drops the patch, logs the reason, and
// reports it back to the acting client as an action_error event; the room
// state is untouched.
var (
	ErrRoomFull         = errors.New("room is full")
	ErrNameTaken        = errors.New("player name already taken")
	ErrGameNotStarted   = errors.New("game has not started")
	ErrGameInProgress   = errors.New("game already in progress")
	ErrGameOver         = errors.New("game is over")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrUnknownPlayer    = errors.New("player not in room")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrNoDrawnCard      = errors.New("no drawn card pending")
	ErrAlreadyDrawn     = errors.New("a drawn card is already pending")
	ErrDiscardEmpty     = errors.New("discard pile is empty")
	ErrCardNotInHand    = errors.New("card is not in your hand")
	ErrWrongCard        = errors.New("card does not match the pending drawn card")
	ErrSlotEmpty        = errors.New("hand slot is empty")
	ErrSlotOutOfRange   = errors.New("hand slot index out of range")
	ErrNoPeeksRemaining = errors.New("no initial peeks remaining")
	ErrWindowClosed     = errors.New("same-rank window is closed")
	ErrRecallCalled     = errors.New("recall has already been called")
	ErrWrongPower       = errors.New("power does not match the pending play")
	ErrNotYourPower     = errors.New("special play belongs to another player")
	ErrMissingTarget    = errors.New("power requires a target")
	ErrInvalidTarget    = errors.New("power target is invalid")
	ErrProtectedHand    = errors.New("target hand is protected")
	ErrPlayerInactive   = errors.New("player can no longer act")
)
