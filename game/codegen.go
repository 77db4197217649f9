package game

import (
	"math/rand"
	"sync"
)

// Ambiguous glyphs (0/O, 1/I) are excluded so codes survive being read out
// loud across a living room.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const codeLength = 4

type codeGen struct {
	live   map[string]struct{}
	locker sync.Mutex
}

func NewCodeGen() *codeGen {
	return &codeGen{live: make(map[string]struct{})}
}

// Generate returns a code unique among live rooms, retrying on collision.
func (g *codeGen) Generate() string {
	g.locker.Lock()
	defer g.locker.Unlock()

	for {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := g.live[code]; taken {
			continue
		}
		g.live[code] = struct{}{}
		return code
	}
}

func (g *codeGen) Dispose(code string) {
	g.locker.Lock()
	defer g.locker.Unlock()
	delete(g.live, code)
}
