package merge

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/model"
)

// EventType mirrors model.EventType for typed events.
type EventType = model.EventType

const (
	Insert = model.EventInsert
	Update = model.EventUpdate
	Delete = model.EventDelete
)

// Event is a decoded change for one collection. Record is zero for deletes.
type Event[T Entity] struct {
	Type   EventType
	ID     uuid.UUID
	Record T
}

// Decode turns a raw change into a typed event. Deletes only need the id from Old.
func Decode[T Entity](ch model.Change) (Event[T], error) {
	ev := Event[T]{Type: ch.Type}
	switch ch.Type {
	case Insert, Update:
		if err := json.Unmarshal(ch.New, &ev.Record); err != nil {
			return Event[T]{}, fmt.Errorf("decode %s %s: %w", ch.Entity, ch.Type, err)
		}
		ev.ID = ev.Record.Key()
	case Delete:
		var ref model.Ref
		if err := json.Unmarshal(ch.Old, &ref); err != nil {
			return Event[T]{}, fmt.Errorf("decode %s delete: %w", ch.Entity, err)
		}
		ev.ID = ref.ID
	default:
		return Event[T]{}, fmt.Errorf("unknown event type %q", ch.Type)
	}
	if ev.ID == uuid.Nil {
		return Event[T]{}, fmt.Errorf("%s %s without id", ch.Entity, ch.Type)
	}
	return ev, nil
}

// Status is the soft error flag of a subscription. Failures are recorded, never retried here.
type Status struct {
	mu  sync.RWMutex
	err error
}

// Fail records err; nil is ignored.
func (s *Status) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err returns the last recorded failure.
func (s *Status) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Clear resets the flag, e.g. after the caller resubscribed.
func (s *Status) Clear() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}
