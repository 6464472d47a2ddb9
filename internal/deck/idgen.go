package deck

import (
	"github.com/google/uuid"
	"sync"
	"time"
)

// IdentifierGenerator hands out millisecond-based ids that never repeat within
// one generator, even when thousands are requested inside the same millisecond.
type IdentifierGenerator struct {
	mu    sync.Mutex
	clock func() time.Time
	last  int64
}

func NewIdentifierGenerator(clock func() time.Time) *IdentifierGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &IdentifierGenerator{clock: clock}
}

func (g *IdentifierGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.clock().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// NextGUID returns a random version 4 uuid string.
func (g *IdentifierGenerator) NextGUID() string {
	return uuid.NewString()
}
