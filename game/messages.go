package game

import "partyquiz/domain"

// Client -> server command types.
const (
	CMD_CREATE_ROOM   = "create_room"
	CMD_JOIN          = "join"
	CMD_START_GAME    = "start_game"
	CMD_PAUSE_GAME    = "pause_game"
	CMD_RESUME_GAME   = "resume_game"
	CMD_SUBMIT_ANSWER = "submit_answer"
	CMD_USE_HINT      = "use_hint"
	CMD_EXTEND_TIMER  = "extend_timer"
	CMD_RESET_GAME    = "reset_game"
	CMD_PING          = "ping"
)

// Server -> client event types.
const (
	EVT_ROOM_CREATED      = "room_created"
	EVT_LOBBY_UPDATE      = "lobby_update"
	EVT_GAME_STATE        = "game_state"
	EVT_PLAYER_ANSWERED   = "player_answered"
	EVT_PLAYER_HINT_USED  = "player_hint_used"
	EVT_ANSWER_RECEIVED   = "answer_received"
	EVT_ROUND_RESULT      = "round_result"
	EVT_FINAL_LEADERBOARD = "final_leaderboard"
	EVT_GAME_PAUSED       = "game_paused"
	EVT_GAME_RESUMED      = "game_resumed"
	EVT_TIMER_UPDATED     = "timer_updated"
	EVT_JOINED            = "joined"
	EVT_HOST_PROMOTED     = "host_promoted"
	EVT_ROOM_CLOSED       = "room_closed"
	EVT_PONG              = "pong"
	EVT_ERROR             = "error"
)

// Command is the closed set of client messages. The Type discriminator
// selects which of the flat payload fields are meaningful.
type Command struct {
	Type      string `json:"type"`
	PackID    string `json:"pack_id,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarKey string `json:"avatar_key,omitempty"`
	Text      string `json:"text,omitempty"`
}

type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarKey string `json:"avatar_key,omitempty"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// QuestionView is the client-safe projection of the current question part.
// It never carries the answer key.
type QuestionView struct {
	Kind       string        `json:"kind"`
	Prompt     domain.Prompt `json:"prompt"`
	PartIndex  int           `json:"part_index"`
	PartsTotal int           `json:"parts_total"`
	Choices    []string      `json:"choices,omitempty"`
	HasHint    bool          `json:"has_hint"`
}

type RoundStart struct {
	RoundIndex  int          `json:"round_index"`
	RoundsTotal int          `json:"rounds_total"`
	Question    QuestionView `json:"question"`
	DeadlineMs  int64        `json:"deadline_ms"`
}

type PlayerResult struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Answered   bool   `json:"answered"`
	Correct    bool   `json:"correct"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Points     int    `json:"points"`
	TotalScore int    `json:"total_score"`

	joinOrder int
}

type RoundResultPayload struct {
	RoundIndex     int            `json:"round_index"`
	Results        []PlayerResult `json:"results"`
	Leaderboard    []PlayerInfo   `json:"leaderboard"`
	NextDeadlineMs int64          `json:"next_deadline_ms"`
}

// RoomSnapshot is the full resume state sent on join and reconnect.
type RoomSnapshot struct {
	Code              string        `json:"code"`
	Phase             string        `json:"phase"`
	HostID            string        `json:"host_id"`
	RoundIndex        int           `json:"round_index"`
	RoundsTotal       int           `json:"rounds_total"`
	Players           []PlayerInfo  `json:"players"`
	Question          *QuestionView `json:"question,omitempty"`
	DeadlineMs        int64         `json:"deadline_ms,omitempty"`
	PausedRemainingMs int64         `json:"paused_remaining_ms,omitempty"`
	YouAnswered       bool          `json:"you_answered"`
	Hint              string        `json:"hint,omitempty"`
	Leaderboard       []PlayerInfo  `json:"leaderboard,omitempty"`
}

// Event is the closed set of server messages.
type Event struct {
	Type        string              `json:"type"`
	RoomCode    string              `json:"room_code,omitempty"`
	PlayerID    string              `json:"player_id,omitempty"`
	HostID      string              `json:"host_id,omitempty"`
	Players     []PlayerInfo        `json:"players,omitempty"`
	Round       *RoundStart         `json:"round,omitempty"`
	Result      *RoundResultPayload `json:"result,omitempty"`
	Leaderboard []PlayerInfo        `json:"leaderboard,omitempty"`
	Snapshot    *RoomSnapshot       `json:"snapshot,omitempty"`
	Hint        string              `json:"hint,omitempty"`
	DeadlineMs  int64               `json:"deadline_ms,omitempty"`
	RemainingMs int64               `json:"remaining_ms,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func MakeEventRoomCreated(code string) Event {
	return Event{Type: EVT_ROOM_CREATED, RoomCode: code}
}

func MakeEventLobbyUpdate(players []PlayerInfo, hostID string) Event {
	return Event{Type: EVT_LOBBY_UPDATE, Players: players, HostID: hostID}
}

func MakeEventGameState(round RoundStart) Event {
	return Event{Type: EVT_GAME_STATE, Round: &round}
}

func MakeEventPlayerAnswered(playerID string) Event {
	return Event{Type: EVT_PLAYER_ANSWERED, PlayerID: playerID}
}

func MakeEventAnswerReceived() Event {
	return Event{Type: EVT_ANSWER_RECEIVED}
}

func MakeEventPlayerHintUsed(playerID, hint string) Event {
	return Event{Type: EVT_PLAYER_HINT_USED, PlayerID: playerID, Hint: hint}
}

func MakeEventRoundResult(payload RoundResultPayload) Event {
	return Event{Type: EVT_ROUND_RESULT, Result: &payload}
}

func MakeEventFinalLeaderboard(leaderboard []PlayerInfo) Event {
	return Event{Type: EVT_FINAL_LEADERBOARD, Leaderboard: leaderboard}
}

func MakeEventGamePaused(remainingMs int64) Event {
	return Event{Type: EVT_GAME_PAUSED, RemainingMs: remainingMs}
}

func MakeEventGameResumed(deadlineMs int64) Event {
	return Event{Type: EVT_GAME_RESUMED, DeadlineMs: deadlineMs}
}

func MakeEventTimerUpdated(deadlineMs int64) Event {
	return Event{Type: EVT_TIMER_UPDATED, DeadlineMs: deadlineMs}
}

func MakeEventJoined(snapshot RoomSnapshot) Event {
	return Event{Type: EVT_JOINED, Snapshot: &snapshot}
}

func MakeEventHostPromoted(hostID string) Event {
	return Event{Type: EVT_HOST_PROMOTED, HostID: hostID}
}

func MakeEventRoomClosed(reason string) Event {
	return Event{Type: EVT_ROOM_CLOSED, Reason: reason}
}

func MakeEventPong() Event {
	return Event{Type: EVT_PONG}
}

func MakeEventError(code string) Event {
	return Event{Type: EVT_ERROR, Error: code}
}
