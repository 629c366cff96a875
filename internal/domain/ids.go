package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for new entities.
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a fresh UUIDv7. Panics if the random source fails.
func (UUIDv7Generator) NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// Clock supplies wall time for created/updated timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// SequenceGenerator hands out a predetermined list of identifiers.
// It falls back to UUIDv7 once the list is exhausted.
type SequenceGenerator struct {
	mu  sync.Mutex
	ids []uuid.UUID
	idx int
}

// NewSequenceGenerator creates a generator that returns ids in order.
func NewSequenceGenerator(ids ...uuid.UUID) *SequenceGenerator {
	return &SequenceGenerator{ids: ids}
}

// NewID returns the next predetermined id.
func (g *SequenceGenerator) NewID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		return UUIDv7Generator{}.NewID()
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
