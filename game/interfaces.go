package game

import (
	"context"
	"time"

	"partyquiz/domain"
)

type WebsocketConnection interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

// QuestionSource supplies the ordered, immutable question list for a pack.
// It is read exactly once, at room creation.
type QuestionSource interface {
	GetQuestionsForPack(ctx context.Context, packID string) ([]domain.Question, error)
}

// ResultSink receives the final leaderboard of a finished game. Optional.
type ResultSink interface {
	SaveGameResults(ctx context.Context, roomCode, packID string, results []domain.GameResult) error
}

type TimerHandle interface {
	Stop() bool
}

// TimerService schedules single-shot callbacks. Injected so tests can fire
// deadlines by hand.
type TimerService interface {
	AfterFunc(d time.Duration, f func()) TimerHandle
}

type RoomCodeGenerator interface {
	Generate() string
	Dispose(code string)
}

type ParentLobby interface {
	RemoveRoom(code string)
	ReplaceRoom(r *room)
}
