package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"partyquiz/domain"
)

type websocketConnection struct {
	socket *websocket.Conn
}

func (wc *websocketConnection) Write(data []byte) error {
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Close(errCode string) {
	wc.socket.SetWriteDeadline(time.Now().Add(time.Second * 20))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, errCode))
	wc.socket.Close()
}

func NewWebsocketConnection(conn *websocket.Conn) *websocketConnection {
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})
	return &websocketConnection{conn}
}

type GameHandler struct {
	lobby     *lobby
	questions QuestionSource
	timers    TimerService
	results   ResultSink
	configs   RoomConfigs
	upgrader  websocket.Upgrader
}

func NewGameHandler(l *lobby, questions QuestionSource, timers TimerService, results ResultSink, configs RoomConfigs, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		lobby:     l,
		questions: questions,
		timers:    timers,
		results:   results,
		configs:   configs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == origin || a == "*" {
				return true
			}
		}
		return false
	}
}

// CreateRoomHandler upgrades the connection, waits for the opening
// create_room command, and hands the new room to the lobby actor. The
// caller becomes the room's host.
func (h *GameHandler) CreateRoomHandler(ctx *gin.Context) {
	playerID := ctx.GetString("playerID")

	if playerID == "" {
		slog.Error("unexpected error, player id not found. What is the middleware doing?",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)

		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err.Error())
		return
	}
	socket := NewWebsocketConnection(conn)

	cmd, ok := readOpeningCommand(socket, CMD_CREATE_ROOM)
	if !ok {
		return
	}
	if cmd.PackID == "" {
		rejectSocket(socket, ErrCodeInvalidFormat)
		return
	}

	fetchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	questions, err := h.questions.GetQuestionsForPack(fetchCtx, cmd.PackID)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrPackNotFound) {
			rejectSocket(socket, domain.ErrPackNotFound.Error())
		} else {
			slog.Error("failed to load pack", "pack", cmd.PackID, "error", err.Error())
			rejectSocket(socket, "unknown-error")
		}
		return
	}

	host := NewPlayer(playerID, cmd.Name, cmd.AvatarKey, socket)
	room := NewRoom(host, cmd.PackID, questions, h.configs, h.timers, h.results)
	host.setRoom(room)

	addCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.lobby.RequestAddAndRunRoom(addCtx, room)
	cancel()

	go host.ReadPump()
	go host.WritePump()
}

// JoinRoomHandler upgrades the connection, waits for the opening join
// command and forwards the join to the room behind the code. The same
// path serves fresh joins and reconnects.
func (h *GameHandler) JoinRoomHandler(ctx *gin.Context) {
	playerID := ctx.GetString("playerID")
	code := strings.ToUpper(ctx.Param("code"))

	if playerID == "" {
		slog.Error("unexpected error, player id not found. What is the middleware doing?",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
		)

		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err.Error())
		return
	}
	socket := NewWebsocketConnection(conn)

	cmd, ok := readOpeningCommand(socket, CMD_JOIN)
	if !ok {
		return
	}

	player := NewPlayer(playerID, cmd.Name, cmd.AvatarKey, socket)
	errChan := make(chan error, 1)

	fwdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.lobby.ForwardPlayerJoinRequestToRoom(fwdCtx, roomJoinRequest{
		roomCode: code,
		player:   player,
		errChan:  errChan,
	})
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			rejectSocket(socket, err.Error())
			return
		}
	case <-time.After(5 * time.Second):
		rejectSocket(socket, "unknown-error")
		return
	}

	go player.ReadPump()
	go player.WritePump()
}

// readOpeningCommand blocks on the socket's first frame and checks it is
// the expected handshake command. Anything else rejects the connection.
func readOpeningCommand(socket *websocketConnection, wantType string) (Command, bool) {
	socket.socket.SetReadDeadline(time.Now().Add(10 * time.Second))

	data, err := socket.Read()
	if err != nil {
		socket.Close("")
		return Command{}, false
	}
	socket.socket.SetReadDeadline(time.Time{})

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type != wantType {
		rejectSocket(socket, ErrCodeInvalidFormat)
		return Command{}, false
	}
	return cmd, true
}

func rejectSocket(socket *websocketConnection, code string) {
	if data, err := json.Marshal(MakeEventError(code)); err == nil {
		socket.Write(data)
	}
	socket.Close(code)
}
