// Package boardv1 defines the BrainBoard gRPC API: messages, the service descriptor,
// the client stub and the CBOR codec the messages travel in.
package boardv1

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/model"
)

// Node is the wire form of model.Node. Payload holds the JSON encoding of the kind's variant.
type Node struct {
	ID        uuid.UUID `cbor:"id"`
	BoardID   uuid.UUID `cbor:"board_id"`
	OwnerID   uuid.UUID `cbor:"owner_id"`
	Kind      string    `cbor:"kind"`
	X         float64   `cbor:"x"`
	Y         float64   `cbor:"y"`
	Width     float64   `cbor:"width"`
	Height    float64   `cbor:"height"`
	Color     string    `cbor:"color,omitempty"`
	Payload   []byte    `cbor:"payload"`
	Ver       int64     `cbor:"ver"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Invite is the wire form of model.Invite.
type Invite struct {
	ID        uuid.UUID  `cbor:"id"`
	BoardID   uuid.UUID  `cbor:"board_id"`
	Token     string     `cbor:"token"`
	Role      string     `cbor:"role"`
	ExpiresAt *time.Time `cbor:"expires_at,omitempty"`
	CreatedAt time.Time  `cbor:"created_at"`
}

// Empty is the response of calls without a result.
type Empty struct{}

// --- auth ---

type RegisterRequest struct {
	Username string `cbor:"username"`
	Password string `cbor:"password"`
}

type RegisterResponse struct {
	UserID uuid.UUID `cbor:"user_id"`
}

type LoginRequest struct {
	Username string `cbor:"username"`
	Password string `cbor:"password"`
}

type LoginResponse struct {
	AccessToken string    `cbor:"access_token"`
	ExpiresAt   time.Time `cbor:"expires_at"`
	UserID      uuid.UUID `cbor:"user_id"`
	Username    string    `cbor:"username"`
}

// --- boards and invites ---

type CreateBoardRequest struct {
	Title string `cbor:"title"`
}

type BoardResponse struct {
	Board model.Board `cbor:"board"`
}

type GetBoardRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
}

type GetBoardResponse struct {
	Board    model.Board     `cbor:"board"`
	Role     string          `cbor:"role"`
	Nodes    []Node          `cbor:"nodes"`
	Edges    []model.Edge    `cbor:"edges"`
	Drawings []model.Drawing `cbor:"drawings"`
}

type ListBoardsResponse struct {
	Boards []model.Board `cbor:"boards"`
}

type CreateInviteRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
	Role    string    `cbor:"role"`
	// TTLSeconds 0 creates an invite that never expires.
	TTLSeconds int64 `cbor:"ttl_seconds"`
}

type InviteResponse struct {
	Invite Invite `cbor:"invite"`
}

type ListInvitesRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
}

type ListInvitesResponse struct {
	Invites []Invite `cbor:"invites"`
}

type RevokeInviteRequest struct {
	InviteID uuid.UUID `cbor:"invite_id"`
}

type AcceptInviteRequest struct {
	Token string `cbor:"token"`
}

type AcceptInviteResponse struct {
	BoardID uuid.UUID `cbor:"board_id"`
	Role    string    `cbor:"role"`
}

// --- canvas ---

type UpsertNodeRequest struct {
	Node    Node  `cbor:"node"`
	BaseVer int64 `cbor:"base_ver"`
}

type NodeResponse struct {
	Node Node `cbor:"node"`
}

// EntityRequest addresses a board entity by id.
type EntityRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
	ID      uuid.UUID `cbor:"id"`
}

type UpsertEdgeRequest struct {
	Edge model.Edge `cbor:"edge"`
}

type EdgeResponse struct {
	Edge model.Edge `cbor:"edge"`
}

type CreateDrawingRequest struct {
	Drawing model.Drawing `cbor:"drawing"`
}

type DrawingResponse struct {
	Drawing model.Drawing `cbor:"drawing"`
}

type AnalyzeNodeRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
	NodeID  uuid.UUID `cbor:"node_id"`
	Action  string    `cbor:"action"`
}

// --- checklists ---

type UpsertItemsRequest struct {
	BoardID uuid.UUID             `cbor:"board_id"`
	NodeID  uuid.UUID             `cbor:"node_id"`
	Items   []model.ChecklistItem `cbor:"items"`
}

type ItemsResponse struct {
	Items []model.ChecklistItem `cbor:"items"`
}

type DeleteItemRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
	NodeID  uuid.UUID `cbor:"node_id"`
	ID      uuid.UUID `cbor:"id"`
}

type ListItemsRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
	NodeID  uuid.UUID `cbor:"node_id"`
}

// --- focus ---

type SaveFocusRequest struct {
	BoardID uuid.UUID        `cbor:"board_id"`
	NodeID  uuid.UUID        `cbor:"node_id"`
	State   model.FocusState `cbor:"state"`
}

type CollectibleResponse struct {
	Collectible model.Collectible `cbor:"collectible"`
	XP          int64             `cbor:"xp"`
}

type ListCollectiblesResponse struct {
	Collectibles []model.Collectible `cbor:"collectibles"`
}

// --- realtime ---

// SubscribeRequest opens the change feed of a board. Empty Entities means all kinds;
// a non-nil NodeID narrows node-scoped rows to one node.
type SubscribeRequest struct {
	BoardID  uuid.UUID `cbor:"board_id"`
	Entities []string  `cbor:"entities,omitempty"`
	NodeID   uuid.UUID `cbor:"node_id"`
}

type PublishCursorRequest struct {
	BoardID uuid.UUID `cbor:"board_id"`
	Name    string    `cbor:"name,omitempty"`
	X       float64   `cbor:"x"`
	Y       float64   `cbor:"y"`
}
