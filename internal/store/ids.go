package store

import "github.com/google/uuid"

// UUIDv7Generator generates time-sortable UUIDv7 keys, so outstanding effects
// list in the order they started when inspected.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. Panics if the system random
// source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
