package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// EventType is the kind of row change carried by the realtime feed.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// EntityKind names the collection a change belongs to.
type EntityKind string

const (
	EntityNode          EntityKind = "node"
	EntityEdge          EntityKind = "edge"
	EntityDrawing       EntityKind = "drawing"
	EntityChecklistItem EntityKind = "checklist_item"
	EntityCursor        EntityKind = "cursor"
)

// Change is a single realtime notification. New is empty for DELETE, Old is empty for INSERT.
// NodeID scopes node-owned rows (checklist items) and is Nil otherwise.
type Change struct {
	ID      string          `json:"id"`
	BoardID uuid.UUID       `json:"board_id"`
	NodeID  uuid.UUID       `json:"node_id"`
	Entity  EntityKind      `json:"entity"`
	Type    EventType       `json:"event_type"`
	New     json.RawMessage `json:"new,omitempty"`
	Old     json.RawMessage `json:"old,omitempty"`
	At      time.Time       `json:"at"`
}

// NewChange encodes the new and old records of an entity. Nil records are left empty.
func NewChange(boardID uuid.UUID, entity EntityKind, typ EventType, newRec, oldRec any) (Change, error) {
	ch := Change{BoardID: boardID, Entity: entity, Type: typ, At: time.Now().UTC()}
	if newRec != nil {
		b, err := json.Marshal(newRec)
		if err != nil {
			return Change{}, err
		}
		ch.New = b
	}
	if oldRec != nil {
		b, err := json.Marshal(oldRec)
		if err != nil {
			return Change{}, err
		}
		ch.Old = b
	}
	return ch, nil
}

// Ref is the minimal record sent as Old on deletes.
type Ref struct {
	ID uuid.UUID `json:"id"`
}

func (r Ref) Key() uuid.UUID { return r.ID }
