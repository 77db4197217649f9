package game

import (
	"context"
	"sync"
	"time"

	"partyquiz/domain"
)

type Phase int

const (
	PHASE_LOBBY Phase = iota
	PHASE_PLAYING
	PHASE_ROUND_RESULT
	PHASE_FINISHED
)

func (p Phase) String() string {
	switch p {
	case PHASE_LOBBY:
		return "lobby"
	case PHASE_PLAYING:
		return "playing"
	case PHASE_ROUND_RESULT:
		return "round_result"
	case PHASE_FINISHED:
		return "finished"
	}
	return "unknown"
}

type RoomConfigs struct {
	RoundDuration        time.Duration
	BetweenRoundDuration time.Duration
	ExtendIncrement      time.Duration
	HostGracePeriod      time.Duration
	Scoring              ScoringConfig
}

// playerState is a participant's room-side record. It survives the
// connection: conn is nil while the player is disconnected, score and
// identity stay.
type playerState struct {
	id        string
	name      string
	avatarKey string
	score     int
	conn      *Player
}

func (ps *playerState) connected() bool {
	return ps.conn != nil
}

type submittedAnswer struct {
	text      string
	elapsedMs int64
	hintUsed  bool
}

// roundTally accumulates a player's outcome across the sub-parts of one
// round (a single part for simple questions).
type roundTally struct {
	points    int
	answered  bool
	correct   bool
	elapsedMs int64
}

type commandEnvelope struct {
	cmd  Command
	from *Player
}

type roomJoinRequest struct {
	roomCode string
	player   *Player
	errChan  chan error
}

type timerPurpose int

const (
	timerPartEnd timerPurpose = iota
	timerNextRound
	timerGrace
)

type timerFire struct {
	gen uint64
}

// room is a single-writer resource: every field below the channel block is
// owned exclusively by the GameLoop goroutine.
type room struct {
	code      string
	packID    string
	questions []domain.Question
	configs   RoomConfigs

	phase    Phase
	hostID   string
	hostConn *Player
	players  []*playerState // insertion order = join order

	roundIndex     int
	partIndex      int
	roundStart     time.Time
	roundDeadline  time.Time
	paused         bool
	pausedAt       time.Time
	pauseRemaining time.Duration
	pausedPurpose  timerPurpose // what the timer was doing when the pause froze it
	answers        map[string]submittedAnswer
	hintUsers      map[string]struct{}
	tallies        map[string]*roundTally

	timerGen     uint64
	timer        TimerHandle
	timerPurpose timerPurpose

	closed   bool
	detached bool

	inbox      chan commandEnvelope
	joinReqs   chan roomJoinRequest
	removeMe   chan *Player
	timerFired chan timerFire
	done       chan struct{}
	closeOnce  sync.Once

	parentLobby ParentLobby
	timers      TimerService
	results     ResultSink
	now         func() time.Time
}

func NewRoom(host *Player, packID string, questions []domain.Question, configs RoomConfigs, timers TimerService, results ResultSink) *room {
	return &room{
		packID:     packID,
		questions:  questions,
		configs:    configs,
		phase:      PHASE_LOBBY,
		hostID:     host.ID(),
		hostConn:   host,
		players:    make([]*playerState, 0, 8),
		answers:    make(map[string]submittedAnswer),
		hintUsers:  make(map[string]struct{}),
		tallies:    make(map[string]*roundTally),
		inbox:      make(chan commandEnvelope, 256),
		joinReqs:   make(chan roomJoinRequest, 16),
		removeMe:   make(chan *Player, 16),
		timerFired: make(chan timerFire, 4),
		done:       make(chan struct{}),
		timers:     timers,
		results:    results,
		now:        time.Now,
	}
}

func (r *room) Code() string {
	return r.code
}

// SetCode and SetParentLobby are called by the lobby actor before GameLoop
// starts; they must not be called afterwards.
func (r *room) SetCode(code string) {
	r.code = code
}

func (r *room) SetParentLobby(l ParentLobby) {
	r.parentLobby = l
}

// Send delivers a parsed command into the room's serialized context.
func (r *room) Send(ctx context.Context, env commandEnvelope) {
	select {
	case r.inbox <- env:
	case <-r.done:
	case <-ctx.Done():
	}
}

func (r *room) RequestJoin(req roomJoinRequest) {
	select {
	case r.joinReqs <- req:
	case <-r.done:
		req.errChan <- ErrRoomClosed
	}
}

// RemoveMe reports a dropped connection. Safe to call more than once for
// the same player.
func (r *room) RemoveMe(ctx context.Context, p *Player) {
	select {
	case r.removeMe <- p:
	case <-r.done:
	case <-ctx.Done():
	}
}

func (r *room) postTimer(gen uint64) {
	select {
	case r.timerFired <- timerFire{gen}:
	case <-r.done:
	}
}

// CloseAndRelease asks the GameLoop to exit. Idempotent.
func (r *room) CloseAndRelease() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}
