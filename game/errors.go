package game

import "errors"

var (
	ErrRoomNotFound     = errors.New("room-not-found")
	ErrRoomNotAccepting = errors.New("room-not-accepting")
	ErrRoomClosed       = errors.New("room-closed")
	ErrNameRequired     = errors.New("name-required")
)

// Error codes delivered to the offending connection as an "error" event.
// None of these ever crash the room.
const (
	ErrCodeUnknownCommand  = "unknown-command"
	ErrCodeInvalidFormat   = "invalid-message-format"
	ErrCodeRateLimited     = "rate-limited"
	ErrCodeNotInRoom       = "not-in-room"
	ErrCodeNotHost         = "not-host"
	ErrCodeWrongPhase      = "wrong-phase"
	ErrCodeAlreadyAnswered = "already-answered"
	ErrCodeAlreadyPaused   = "already-paused"
	ErrCodeNotPaused       = "not-paused"
	ErrCodePaused          = "paused"
	ErrCodeNoHint          = "no-hint"
	ErrCodeHintAlreadyUsed = "hint-already-used"
	ErrCodeNoPlayers       = "no-players"
	ErrCodeNameRequired    = "name-required"
)
