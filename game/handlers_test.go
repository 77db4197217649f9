package game

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"partyquiz/domain"
)

func newHandlerServer(t *testing.T, questions QuestionSource) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := NewLobby(NewCodeGen())
	started := make(chan struct{})
	go l.LobbyActor(started)
	<-started

	h := NewGameHandler(l, questions, NewTimerService(), nil, testConfigs, nil)

	r := gin.New()
	// stand-in for the identity middleware: the player id rides a query param
	r.Use(func(ctx *gin.Context) {
		ctx.Set("playerID", ctx.Query("pid"))
	})
	r.GET("/game/create", h.CreateRoomHandler)
	r.GET("/game/join/:code", h.JoinRoomHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeCommand(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// awaitEvent reads frames until one decodes to the wanted event type.
func awaitEvent(t *testing.T, conn *websocket.Conn, evType string) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoErrorf(t, err, "waiting for %q", evType)

		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == evType {
			return ev
		}
	}
}

func TestGameHandlers_CreateAndJoin(t *testing.T) {
	t.Parallel()
	source := &MockQuestionSource{}
	source.On("GetQuestionsForPack", mock.Anything, "pack-1").
		Return([]domain.Question{openEndedQuestion("paris", "")}, nil)
	srv := newHandlerServer(t, source)

	hostConn := dialWS(t, srv, "/game/create?pid=host-1")
	writeCommand(t, hostConn, Command{Type: CMD_CREATE_ROOM, PackID: "pack-1", Name: "hostess"})

	created := awaitEvent(t, hostConn, EVT_ROOM_CREATED)
	require.Len(t, created.RoomCode, codeLength)
	awaitEvent(t, hostConn, EVT_JOINED)

	playerConn := dialWS(t, srv, "/game/join/"+created.RoomCode+"?pid=player-1")
	writeCommand(t, playerConn, Command{Type: CMD_JOIN, Name: "alice"})

	joined := awaitEvent(t, playerConn, EVT_JOINED)
	require.NotNil(t, joined.Snapshot)
	assert.Equal(t, created.RoomCode, joined.Snapshot.Code)

	update := awaitEvent(t, hostConn, EVT_LOBBY_UPDATE)
	require.Len(t, update.Players, 1)
	assert.Equal(t, "alice", update.Players[0].Name)

	// the whole pipeline: host command in, broadcast out to both sockets
	writeCommand(t, hostConn, Command{Type: CMD_START_GAME})
	hostState := awaitEvent(t, hostConn, EVT_GAME_STATE)
	joinerState := awaitEvent(t, playerConn, EVT_GAME_STATE)
	assert.Equal(t, hostState.Round.DeadlineMs, joinerState.Round.DeadlineMs)

	writeCommand(t, playerConn, Command{Type: CMD_SUBMIT_ANSWER, Text: "paris"})
	awaitEvent(t, playerConn, EVT_ANSWER_RECEIVED)
	result := awaitEvent(t, hostConn, EVT_ROUND_RESULT)
	require.Len(t, result.Result.Results, 1)
	assert.Equal(t, "player-1", result.Result.Results[0].PlayerID)

	source.AssertExpectations(t)
}

func TestGameHandlers_CreateUnknownPack(t *testing.T) {
	t.Parallel()
	source := &MockQuestionSource{}
	source.On("GetQuestionsForPack", mock.Anything, "nope").
		Return([]domain.Question(nil), domain.ErrPackNotFound)
	srv := newHandlerServer(t, source)

	conn := dialWS(t, srv, "/game/create?pid=host-1")
	writeCommand(t, conn, Command{Type: CMD_CREATE_ROOM, PackID: "nope", Name: "hostess"})

	ev := awaitEvent(t, conn, EVT_ERROR)
	assert.Equal(t, "pack-not-found", ev.Error)
}

func TestGameHandlers_CreateBadOpeningFrame(t *testing.T) {
	t.Parallel()
	srv := newHandlerServer(t, &MockQuestionSource{})

	conn := dialWS(t, srv, "/game/create?pid=host-1")
	writeCommand(t, conn, Command{Type: CMD_JOIN, Name: "wrong opener"})

	ev := awaitEvent(t, conn, EVT_ERROR)
	assert.Equal(t, ErrCodeInvalidFormat, ev.Error)
}

func TestGameHandlers_JoinUnknownCode(t *testing.T) {
	t.Parallel()
	srv := newHandlerServer(t, &MockQuestionSource{})

	conn := dialWS(t, srv, "/game/join/ZZZZ?pid=player-1")
	writeCommand(t, conn, Command{Type: CMD_JOIN, Name: "alice"})

	ev := awaitEvent(t, conn, EVT_ERROR)
	assert.Equal(t, "room-not-found", ev.Error)
}

func TestGameHandlers_MissingIdentity(t *testing.T) {
	t.Parallel()
	srv := newHandlerServer(t, &MockQuestionSource{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/create"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
