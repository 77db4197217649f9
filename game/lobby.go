package game

import (
	"context"
	"log/slog"
)

// lobby owns the code-to-room map. Nothing outside LobbyActor touches it;
// the exported methods are channel endpoints.
type lobby struct {
	rooms map[string]*room

	addAndRunRoomChan chan *room
	replaceRoomChan   chan *room
	removeRoomChan    chan string
	roomJoinReqs      chan roomJoinRequest

	codes RoomCodeGenerator
}

func NewLobby(codes RoomCodeGenerator) *lobby {
	return &lobby{
		rooms:             map[string]*room{},
		addAndRunRoomChan: make(chan *room, 32),
		replaceRoomChan:   make(chan *room, 32),
		removeRoomChan:    make(chan string, 32),
		roomJoinReqs:      make(chan roomJoinRequest, 256),
		codes:             codes,
	}
}

func (l *lobby) RequestAddAndRunRoom(ctx context.Context, r *room) {
	select {
	case l.addAndRunRoomChan <- r:
	case <-ctx.Done():
	}
}

func (l *lobby) ForwardPlayerJoinRequestToRoom(ctx context.Context, jreq roomJoinRequest) {
	select {
	case l.roomJoinReqs <- jreq:
	case <-ctx.Done():
	}
}

// RemoveRoom and ReplaceRoom are called from inside a room's GameLoop.
// Both channels are buffered so the room never blocks on its parent.
func (l *lobby) RemoveRoom(code string) {
	l.removeRoomChan <- code
}

func (l *lobby) ReplaceRoom(r *room) {
	l.replaceRoomChan <- r
}

func (l *lobby) LobbyActor(started chan struct{}) {
	close(started)

	for {
		select {
		case room := <-l.addAndRunRoomChan:
			l.handleAddAndRunRoom(room)

		case room := <-l.replaceRoomChan:
			l.handleReplaceRoom(room)

		case code := <-l.removeRoomChan:
			l.handleRemoveRoom(code)

		case joinReq := <-l.roomJoinReqs:
			l.handleJoinReq(joinReq)
		}
	}
}

func (l *lobby) handleAddAndRunRoom(r *room) {
	code := l.codes.Generate()
	r.SetCode(code)
	r.SetParentLobby(l)
	l.rooms[code] = r

	r.Announce()
	go r.GameLoop()
	slog.Info("room created", "room", code, "pack", r.packID)
}

// handleReplaceRoom swaps in the successor room built by reset_game. The
// predecessor detaches itself; only the map entry changes hands here.
func (l *lobby) handleReplaceRoom(r *room) {
	r.SetParentLobby(l)
	l.rooms[r.Code()] = r

	r.Announce()
	go r.GameLoop()
}

func (l *lobby) handleRemoveRoom(code string) {
	room, ok := l.rooms[code]
	if !ok {
		return
	}
	delete(l.rooms, code)
	room.CloseAndRelease()
	l.codes.Dispose(code)
}

func (l *lobby) handleJoinReq(joinReq roomJoinRequest) {
	room, ok := l.rooms[joinReq.roomCode]
	if !ok {
		joinReq.errChan <- ErrRoomNotFound
		close(joinReq.errChan)
		return
	}
	room.RequestJoin(joinReq)
}
