package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/errs"
)

// NodeKind is the discriminator of a node's payload.
type NodeKind string

const (
	KindNote      NodeKind = "note"
	KindImage     NodeKind = "image"
	KindLink      NodeKind = "link"
	KindChecklist NodeKind = "checklist"
	KindVideo     NodeKind = "video"
	KindPomodoro  NodeKind = "pomodoro"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindNote, KindImage, KindLink, KindChecklist, KindVideo, KindPomodoro:
		return true
	}
	return false
}

// Size is a node's width and height in logical canvas units.
type Size struct {
	Width  float64
	Height float64
}

// DefaultSize is injected when a node is created without an explicit size.
func DefaultSize(k NodeKind) Size {
	switch k {
	case KindImage:
		return Size{Width: 320, Height: 240}
	case KindLink:
		return Size{Width: 280, Height: 120}
	case KindChecklist:
		return Size{Width: 300, Height: 360}
	case KindVideo:
		return Size{Width: 480, Height: 300}
	case KindPomodoro:
		return Size{Width: 260, Height: 340}
	default:
		return Size{Width: 250, Height: 200}
	}
}

// Payload is the kind-specific part of a node.
type Payload interface {
	Kind() NodeKind
	Validate() error
}

// NotePayload is rich text plus the results of the analyze function.
type NotePayload struct {
	HTML    string   `json:"html"`
	Summary string   `json:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

func (NotePayload) Kind() NodeKind  { return KindNote }
func (NotePayload) Validate() error { return nil }

// ImagePayload points at an uploaded object.
type ImagePayload struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

func (ImagePayload) Kind() NodeKind { return KindImage }
func (p ImagePayload) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("%w: image url is empty", errs.ErrInvalidArgument)
	}
	return nil
}

// LinkPayload is a bookmarked URL.
type LinkPayload struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

func (LinkPayload) Kind() NodeKind { return KindLink }
func (p LinkPayload) Validate() error {
	u, err := url.Parse(strings.TrimSpace(p.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: bad link url %q", errs.ErrInvalidArgument, p.URL)
	}
	return nil
}

// ChecklistPayload is the header of a checklist node; items live in their own table.
type ChecklistPayload struct {
	Title string `json:"title"`
}

func (ChecklistPayload) Kind() NodeKind  { return KindChecklist }
func (ChecklistPayload) Validate() error { return nil }

// VideoPayload is an embedded video with its playback position.
type VideoPayload struct {
	VideoID     string  `json:"video_id"`
	PositionSec float64 `json:"position_sec"`
}

func (VideoPayload) Kind() NodeKind { return KindVideo }
func (p VideoPayload) Validate() error {
	if strings.TrimSpace(p.VideoID) == "" {
		return fmt.Errorf("%w: video id is empty", errs.ErrInvalidArgument)
	}
	if p.PositionSec < 0 {
		return fmt.Errorf("%w: negative video position", errs.ErrInvalidArgument)
	}
	return nil
}

// PomodoroPayload holds a focus-timer widget state.
type PomodoroPayload struct {
	State FocusState `json:"state"`
}

func (PomodoroPayload) Kind() NodeKind    { return KindPomodoro }
func (p PomodoroPayload) Validate() error { return p.State.Validate() }

// Node is a placed visual entity on the canvas.
type Node struct {
	ID        uuid.UUID
	BoardID   uuid.UUID
	OwnerID   uuid.UUID
	Kind      NodeKind
	X, Y      float64
	Width     float64
	Height    float64
	Color     string
	Payload   Payload
	Ver       int64
	UpdatedAt time.Time
}

// NewNode builds a node with a fresh id and the default size of the payload's kind.
func NewNode(boardID, ownerID uuid.UUID, p Payload, x, y float64) (Node, error) {
	if p == nil {
		return Node{}, fmt.Errorf("%w: nil payload", errs.ErrInvalidArgument)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return Node{}, err
	}
	sz := DefaultSize(p.Kind())
	n := Node{
		ID:      id,
		BoardID: boardID,
		OwnerID: ownerID,
		Kind:    p.Kind(),
		X:       x,
		Y:       y,
		Width:   sz.Width,
		Height:  sz.Height,
		Payload: p,
	}
	return n, n.Validate()
}

func (n Node) Key() uuid.UUID  { return n.ID }
func (n Node) Version() int64  { return n.Ver }
func (n Node) Position() Point { return Point{X: n.X, Y: n.Y} }

// Validate enforces the tagged-union invariant and geometry.
func (n Node) Validate() error {
	if n.ID == uuid.Nil || n.BoardID == uuid.Nil {
		return fmt.Errorf("%w: node id/board id", errs.ErrInvalidArgument)
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("%w: unknown node kind %q", errs.ErrInvalidArgument, n.Kind)
	}
	if n.Payload == nil {
		return fmt.Errorf("%w: node %s has no payload", errs.ErrInvalidArgument, n.ID)
	}
	if n.Payload.Kind() != n.Kind {
		return fmt.Errorf("%w: payload kind %q != node kind %q", errs.ErrInvalidArgument, n.Payload.Kind(), n.Kind)
	}
	if n.Width <= 0 || n.Height <= 0 {
		return fmt.Errorf("%w: node size must be positive", errs.ErrInvalidArgument)
	}
	return n.Payload.Validate()
}

// EncodePayload serializes a payload for jsonb storage and the wire.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", errs.ErrInvalidArgument)
	}
	return json.Marshal(p)
}

// DecodePayload restores the payload variant selected by kind.
func DecodePayload(kind NodeKind, raw []byte) (Payload, error) {
	var p Payload
	switch kind {
	case KindNote:
		p = &NotePayload{}
	case KindImage:
		p = &ImagePayload{}
	case KindLink:
		p = &LinkPayload{}
	case KindChecklist:
		p = &ChecklistPayload{}
	case KindVideo:
		p = &VideoPayload{}
	case KindPomodoro:
		p = &PomodoroPayload{State: NewFocusState()}
	default:
		return nil, fmt.Errorf("%w: unknown node kind %q", errs.ErrInvalidArgument, kind)
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
	}
	return deref(p), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *NotePayload:
		return *v
	case *ImagePayload:
		return *v
	case *LinkPayload:
		return *v
	case *ChecklistPayload:
		return *v
	case *VideoPayload:
		return *v
	case *PomodoroPayload:
		return *v
	}
	return p
}

type nodeJSON struct {
	ID        uuid.UUID       `json:"id"`
	BoardID   uuid.UUID       `json:"board_id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Kind      NodeKind        `json:"kind"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Width     float64         `json:"width"`
	Height    float64         `json:"height"`
	Color     string          `json:"color,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Ver       int64           `json:"ver"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarshalJSON writes the payload inline next to its kind tag.
func (n Node) MarshalJSON() ([]byte, error) {
	var raw []byte
	if n.Payload != nil {
		var err error
		if raw, err = EncodePayload(n.Payload); err != nil {
			return nil, err
		}
	}
	return json.Marshal(nodeJSON{
		ID: n.ID, BoardID: n.BoardID, OwnerID: n.OwnerID, Kind: n.Kind,
		X: n.X, Y: n.Y, Width: n.Width, Height: n.Height, Color: n.Color,
		Payload: raw, Ver: n.Ver, UpdatedAt: n.UpdatedAt,
	})
}

// UnmarshalJSON decodes the payload variant named by the kind tag.
func (n *Node) UnmarshalJSON(b []byte) error {
	var j nodeJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	p, err := DecodePayload(j.Kind, j.Payload)
	if err != nil {
		return err
	}
	*n = Node{
		ID: j.ID, BoardID: j.BoardID, OwnerID: j.OwnerID, Kind: j.Kind,
		X: j.X, Y: j.Y, Width: j.Width, Height: j.Height, Color: j.Color,
		Payload: p, Ver: j.Ver, UpdatedAt: j.UpdatedAt,
	}
	return nil
}
