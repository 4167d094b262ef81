// Package model defines domain entities used by services, repositories and the client view-models.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// Profile carries gamification counters of a user.
type Profile struct {
	UserID uuid.UUID
	XP     int64
}

// Role is a board membership level.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Rank orders roles; unknown roles rank below viewer.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// CanEdit reports whether the role may mutate board content.
func (r Role) CanEdit() bool { return r.Rank() >= RoleEditor.Rank() }

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.Rank() > 0 }

// Board is a shared canvas containing nodes, edges and drawings.
type Board struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Member binds a user to a board with a role.
type Member struct {
	BoardID uuid.UUID
	UserID  uuid.UUID
	Role    Role
}

// Invite is a shareable access token for a board. ExpiresAt nil means it never expires.
type Invite struct {
	ID        uuid.UUID
	BoardID   uuid.UUID
	Token     string
	Role      Role
	ExpiresAt *time.Time
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// Expired reports whether the invite can no longer be redeemed at now.
func (i Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// BoardSnapshot is the initial load of a board before subscribing to its feed.
type BoardSnapshot struct {
	Board    Board
	Role     Role
	Nodes    []Node
	Edges    []Edge
	Drawings []Drawing
}
