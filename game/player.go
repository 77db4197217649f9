package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	outboxSize   = 256
	pingInterval = 30 * time.Second
)

// Player is one live websocket connection. Identity (id, name, avatar) is
// fixed at upgrade time; the room pointer changes on reset and is the only
// field touched from more than one goroutine.
type Player struct {
	id        string
	name      string
	avatarKey string

	socket      WebsocketConnection
	rateLimiter *rate.Limiter

	outbox chan []byte
	done   chan struct{}

	mu        sync.Mutex
	room      *room
	closeOnce sync.Once
}

func NewPlayer(id, name, avatarKey string, socket WebsocketConnection) *Player {
	return &Player{
		id:          id,
		name:        name,
		avatarKey:   avatarKey,
		socket:      socket,
		rateLimiter: rate.NewLimiter(rate.Limit(10), 20),
		outbox:      make(chan []byte, outboxSize),
		done:        make(chan struct{}),
	}
}

func (p *Player) ID() string {
	return p.id
}

func (p *Player) Name() string {
	return p.name
}

func (p *Player) AvatarKey() string {
	return p.avatarKey
}

func (p *Player) Room() *room {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

func (p *Player) setRoom(r *room) {
	p.mu.Lock()
	p.room = r
	p.mu.Unlock()
}

// Send queues an already-marshaled event. A full outbox means the client
// stopped draining; the connection is cut instead of blocking the room.
func (p *Player) Send(data []byte) {
	select {
	case <-p.done:
	case p.outbox <- data:
	default:
		slog.Warn("dropping slow client", "player", p.id)
		p.CloseAndRelease()
	}
}

func (p *Player) SendEvent(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "player", p.id, "type", ev.Type, "error", err.Error())
		return
	}
	p.Send(data)
}

// CloseAndRelease shuts down both pumps. Idempotent; the room learns about
// the departure through ReadPump's RemoveMe, not from here.
func (p *Player) CloseAndRelease() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// ReadPump parses inbound frames and forwards them to whichever room the
// player currently belongs to. It owns the disconnect notification: when
// the socket dies, exactly one RemoveMe reaches the room.
func (p *Player) ReadPump() {
	defer func() {
		p.CloseAndRelease()
		if room := p.Room(); room != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			room.RemoveMe(ctx, p)
			cancel()
		}
	}()

	for {
		data, err := p.socket.Read()
		if err != nil {
			return
		}

		if !p.rateLimiter.Allow() {
			p.SendEvent(MakeEventError(ErrCodeRateLimited))
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type == "" {
			p.SendEvent(MakeEventError(ErrCodeInvalidFormat))
			continue
		}

		room := p.Room()
		if room == nil {
			p.SendEvent(MakeEventError(ErrCodeNotInRoom))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		room.Send(ctx, commandEnvelope{cmd: cmd, from: p})
		cancel()
	}
}

// WritePump drains the outbox onto the socket and keeps the connection
// alive with periodic pings.
func (p *Player) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.socket.Close("")
	}()

	for {
		select {
		case <-p.done:
			return
		case data := <-p.outbox:
			if err := p.socket.Write(data); err != nil {
				p.CloseAndRelease()
				return
			}
		case <-ticker.C:
			if err := p.socket.Ping(); err != nil {
				p.CloseAndRelease()
				return
			}
		}
	}
}
