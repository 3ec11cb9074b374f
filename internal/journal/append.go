package journal

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind says whether an entry records a reduced mutation or an emitted event.
type Kind string

const (
	KindMutation Kind = "mutation"
	KindEvent    Kind = "event"
)

// Entry is one journal row.
type Entry struct {
	ID      int64
	Store   string
	Step    int64
	Kind    Kind
	Type    string
	Payload json.RawMessage
}

// Append writes e and returns its id. An empty payload is stored as null.
func (j *Journal) Append(ctx context.Context, e Entry) (int64, error) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO entries (store, step, kind, type, payload)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.Store,
		e.Step,
		string(e.Kind),
		e.Type,
		string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	return id, nil
}

// Record marshals value as the payload of a new entry. The entry type is
// the Go type name of value.
func (j *Journal) Record(ctx context.Context, store string, step int64, kind Kind, value any) (int64, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	return j.Append(ctx, Entry{
		Store:   store,
		Step:    step,
		Kind:    kind,
		Type:    fmt.Sprintf("%T", value),
		Payload: payload,
	})
}
