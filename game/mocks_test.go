package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"partyquiz/domain"
)

// --- WebsocketConnection ---

type MockWebsocketConnection struct {
	mock.Mock
}

func (m *MockWebsocketConnection) Close(errCode string) {
	m.Called(errCode)
}

func (m *MockWebsocketConnection) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockWebsocketConnection) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockWebsocketConnection) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- ParentLobby ---

type MockLobby struct {
	mock.Mock
}

func (m *MockLobby) RemoveRoom(code string) {
	m.Called(code)
}

func (m *MockLobby) ReplaceRoom(r *room) {
	m.Called(r)
}

// --- QuestionSource ---

type MockQuestionSource struct {
	mock.Mock
}

func (m *MockQuestionSource) GetQuestionsForPack(ctx context.Context, packID string) ([]domain.Question, error) {
	args := m.Called(ctx, packID)
	return args.Get(0).([]domain.Question), args.Error(1)
}

// --- RoomCodeGenerator ---

type MockCodeGenerator struct {
	mock.Mock
}

func (m *MockCodeGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCodeGenerator) Dispose(code string) {
	m.Called(code)
}

// --- ResultSink ---

type savedResults struct {
	roomCode string
	packID   string
	results  []domain.GameResult
}

// recordingSink captures SaveGameResults calls on a channel so tests can
// wait for the asynchronous save.
type recordingSink struct {
	saves chan savedResults
}

func newRecordingSink() *recordingSink {
	return &recordingSink{saves: make(chan savedResults, 4)}
}

func (s *recordingSink) SaveGameResults(ctx context.Context, roomCode, packID string, results []domain.GameResult) error {
	s.saves <- savedResults{roomCode: roomCode, packID: packID, results: results}
	return nil
}

// --- timers ---

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (ft *fakeTimer) Stop() bool {
	active := !ft.stopped
	ft.stopped = true
	return active
}

// fakeTimerService records scheduled callbacks; tests fire them by hand.
type fakeTimerService struct {
	scheduled []*fakeTimer
}

func (s *fakeTimerService) AfterFunc(d time.Duration, f func()) TimerHandle {
	ft := &fakeTimer{d: d, f: f}
	s.scheduled = append(s.scheduled, ft)
	return ft
}

func (s *fakeTimerService) last() *fakeTimer {
	if len(s.scheduled) == 0 {
		return nil
	}
	return s.scheduled[len(s.scheduled)-1]
}

// fireLast invokes the most recently scheduled callback, whether or not it
// was stopped, so stale-fire races can be reproduced at will.
func (s *fakeTimerService) fireLast() {
	s.last().f()
}

// --- clock ---

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// --- room test harness ---

var testConfigs = RoomConfigs{
	RoundDuration:        30 * time.Second,
	BetweenRoundDuration: 8 * time.Second,
	ExtendIncrement:      15 * time.Second,
	HostGracePeriod:      60 * time.Second,
	Scoring:              ScoringConfig{BasePoints: 100, MaxTimeBonus: 900},
}

func newTestPlayer(id, name string) *Player {
	return NewPlayer(id, name, "", nil)
}

type roomFixture struct {
	room   *room
	host   *Player
	timers *fakeTimerService
	clock  *fakeClock
	lobby  *MockLobby
	sink   *recordingSink
}

func newRoomFixture(t *testing.T, questions []domain.Question) *roomFixture {
	t.Helper()

	f := &roomFixture{
		host:   newTestPlayer("host-id", "hostess"),
		timers: &fakeTimerService{},
		clock:  newFakeClock(),
		lobby:  &MockLobby{},
		sink:   newRecordingSink(),
	}
	f.room = NewRoom(f.host, "pack-1", questions, testConfigs, f.timers, f.sink)
	f.room.SetCode("GAME")
	f.room.SetParentLobby(f.lobby)
	f.room.now = f.clock.Now
	f.host.setRoom(f.room)
	return f
}

// join runs a fresh-join or reconnect through the room's handler and
// fails the test if the room rejects it.
func (f *roomFixture) join(t *testing.T, p *Player) {
	t.Helper()
	errChan := make(chan error, 1)
	f.room.handleJoinRequest(roomJoinRequest{player: p, errChan: errChan})
	require.NoError(t, <-errChan)
}

func (f *roomFixture) joinErr(p *Player) error {
	errChan := make(chan error, 1)
	f.room.handleJoinRequest(roomJoinRequest{player: p, errChan: errChan})
	return <-errChan
}

func (f *roomFixture) command(p *Player, cmd Command) {
	f.room.dispatch(commandEnvelope{cmd: cmd, from: p})
}

// fireTimer simulates the scheduled deadline arriving: the callback posts
// into timerFired and the fixture delivers it like GameLoop would.
func (f *roomFixture) fireTimer() {
	f.timers.fireLast()
	f.pumpFires()
}

func (f *roomFixture) pumpFires() {
	for {
		select {
		case fire := <-f.room.timerFired:
			f.room.handleDeadline(fire.gen)
		default:
			return
		}
	}
}

// waitEvent blocks until the player receives an event of the given type,
// discarding everything before it. For tests that cross goroutines.
func waitEvent(t *testing.T, p *Player, evType string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-p.outbox:
			var ev Event
			require.NoError(t, json.Unmarshal(data, &ev))
			if ev.Type == evType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", evType)
			return Event{}
		}
	}
}

// drainEvents empties a player's outbox into decoded events.
func drainEvents(t *testing.T, p *Player) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case data := <-p.outbox:
			var ev Event
			require.NoError(t, json.Unmarshal(data, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventTypes(events []Event) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func findEvent(t *testing.T, events []Event, evType string) Event {
	t.Helper()
	for _, ev := range events {
		if ev.Type == evType {
			return ev
		}
	}
	require.Failf(t, "event not found", "no %q among %v", evType, eventTypes(events))
	return Event{}
}

func hasEvent(events []Event, evType string) bool {
	for _, ev := range events {
		if ev.Type == evType {
			return true
		}
	}
	return false
}

// --- question fixtures ---

func openEndedQuestion(answer, hint string) domain.Question {
	return domain.Question{
		Kind:            domain.KindOpenEnded,
		Prompts:         []domain.Prompt{{Text: "capital of France?"}},
		AcceptedAnswers: [][]string{{answer}},
		Hint:            hint,
	}
}

func choiceQuestion() domain.Question {
	return domain.Question{
		Kind:          domain.KindMultipleChoice,
		Prompts:       []domain.Prompt{{Text: "largest planet?"}},
		Choices:       []string{"Mars", "Jupiter", "Venus"},
		CorrectChoice: 1,
	}
}

func multiPartQuestion() domain.Question {
	return domain.Question{
		Kind: domain.KindMultiPart,
		Prompts: []domain.Prompt{
			{Text: "name the author"},
			{Text: "name the year"},
		},
		AcceptedAnswers: [][]string{{"orwell"}, {"1949"}},
	}
}
