package websocket

import (
	"math/rand"
	"sync"
)

// presencePalette is the fixed set of cursor colors handed out to room
// members. Collisions across members are acceptable.
var presencePalette = []string{
	"#E53E3E", // red
	"#DD6B20", // orange
	"#D69E2E", // yellow
	"#38A169", // green
	"#319795", // teal
	"#3182CE", // blue
	"#5A67D8", // indigo
	"#805AD5", // purple
	"#D53F8C", // pink
}

// ColorAssigner picks presence colors from the fixed palette.
type ColorAssigner struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewColorAssigner seeds an assigner with the given source seed.
func NewColorAssigner(seed int64) *ColorAssigner {
	return &ColorAssigner{rnd: rand.New(rand.NewSource(seed))}
}

// Assign returns a color from the palette.
func (a *ColorAssigner) Assign() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return presencePalette[a.rnd.Intn(len(presencePalette))]
}
