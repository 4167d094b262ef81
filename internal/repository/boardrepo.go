package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/model"
)

// BoardRepository stores boards, memberships and invites.
type BoardRepository interface {
	// Create inserts the board and the owner membership atomically.
	Create(ctx context.Context, b *model.Board) error
	Get(ctx context.Context, id uuid.UUID) (*model.Board, error)
	// ListForUser returns boards the user is a member of, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Board, error)

	// Role returns the membership role or errs.ErrNotFound.
	Role(ctx context.Context, boardID, userID uuid.UUID) (model.Role, error)
	// AddMember inserts a membership; an existing one keeps the higher role.
	AddMember(ctx context.Context, m model.Member) (model.Role, error)

	CreateInvite(ctx context.Context, inv *model.Invite) error
	GetInvite(ctx context.Context, id uuid.UUID) (*model.Invite, error)
	GetInviteByToken(ctx context.Context, token string) (*model.Invite, error)
	ListInvites(ctx context.Context, boardID uuid.UUID) ([]model.Invite, error)
	// DeleteInvite is idempotent.
	DeleteInvite(ctx context.Context, id uuid.UUID) error
}
