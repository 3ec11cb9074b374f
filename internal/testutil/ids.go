package testutil

import "fmt"

// SequentialIDs hands out "<prefix>-1", "<prefix>-2", ... so tests that key
// things by id see the same ids on every run.
//
// Safe for concurrent use.
type SequentialIDs struct {
	prefix string
	clock  *TickClock
}

// NewSequentialIDs creates a generator. An empty prefix becomes "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix, clock: NewTickClock()}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.clock.Next())
}
