package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

// BoardRepo implements BoardRepository using PostgreSQL.
type BoardRepo struct{ db *DB }

// NewBoardRepo constructs a board repository.
func NewBoardRepo(db *DB) *BoardRepo { return &BoardRepo{db: db} }

// Create inserts the board and its owner membership.
func (r *BoardRepo) Create(ctx context.Context, b *model.Board) error {
	const ins = `INSERT INTO boards (id, owner_id, title) VALUES ($1,$2,$3) RETURNING created_at`
	const mem = `INSERT INTO board_members (board_id, user_id, role) VALUES ($1,$2,$3)`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, ins, b.ID, b.OwnerID, b.Title).Scan(&b.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}
		_, err := tx.Exec(ctx, mem, b.ID, b.OwnerID, string(model.RoleOwner))
		return err
	})
}

// Get selects a board by id.
func (r *BoardRepo) Get(ctx context.Context, id uuid.UUID) (*model.Board, error) {
	const q = `SELECT id, owner_id, title, created_at FROM boards WHERE id=$1`
	var b model.Board
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.OwnerID, &b.Title, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListForUser returns the boards of a member, newest first.
func (r *BoardRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Board, error) {
	const q = `
SELECT b.id, b.owner_id, b.title, b.created_at
FROM boards b JOIN board_members m ON m.board_id = b.id
WHERE m.user_id=$1
ORDER BY b.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Board{}
	for rows.Next() {
		var b model.Board
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Role returns the member's role.
func (r *BoardRepo) Role(ctx context.Context, boardID, userID uuid.UUID) (model.Role, error) {
	const q = `SELECT role FROM board_members WHERE board_id=$1 AND user_id=$2`
	var role string
	if err := r.db.Pool.QueryRow(ctx, q, boardID, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return model.Role(role), nil
}

// AddMember upserts a membership without ever lowering an existing role.
func (r *BoardRepo) AddMember(ctx context.Context, m model.Member) (model.Role, error) {
	const q = `
INSERT INTO board_members (board_id, user_id, role) VALUES ($1,$2,$3)
ON CONFLICT (board_id, user_id) DO UPDATE SET role = CASE
  WHEN board_members.role = 'owner' THEN board_members.role
  WHEN board_members.role = 'editor' AND EXCLUDED.role = 'viewer' THEN board_members.role
  ELSE EXCLUDED.role
END
RETURNING role`
	var role string
	if err := r.db.Pool.QueryRow(ctx, q, m.BoardID, m.UserID, string(m.Role)).Scan(&role); err != nil {
		return "", err
	}
	return model.Role(role), nil
}

const inviteCols = `id, board_id, token, role, expires_at, created_by, created_at`

func scanInvite(s scanner) (*model.Invite, error) {
	var (
		inv  model.Invite
		role string
	)
	if err := s.Scan(&inv.ID, &inv.BoardID, &inv.Token, &role, &inv.ExpiresAt, &inv.CreatedBy, &inv.CreatedAt); err != nil {
		return nil, err
	}
	inv.Role = model.Role(role)
	return &inv, nil
}

// CreateInvite inserts an invite and fills CreatedAt.
func (r *BoardRepo) CreateInvite(ctx context.Context, inv *model.Invite) error {
	const q = `
INSERT INTO board_invites (id, board_id, token, role, expires_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, inv.ID, inv.BoardID, inv.Token, string(inv.Role), inv.ExpiresAt, inv.CreatedBy).
		Scan(&inv.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

func (r *BoardRepo) GetInvite(ctx context.Context, id uuid.UUID) (*model.Invite, error) {
	q := `SELECT ` + inviteCols + ` FROM board_invites WHERE id=$1`
	inv, err := scanInvite(r.db.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return inv, err
}

func (r *BoardRepo) GetInviteByToken(ctx context.Context, token string) (*model.Invite, error) {
	q := `SELECT ` + inviteCols + ` FROM board_invites WHERE token=$1`
	inv, err := scanInvite(r.db.Pool.QueryRow(ctx, q, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return inv, err
}

// ListInvites returns the invites of a board, oldest first.
func (r *BoardRepo) ListInvites(ctx context.Context, boardID uuid.UUID) ([]model.Invite, error) {
	q := `SELECT ` + inviteCols + ` FROM board_invites WHERE board_id=$1 ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, q, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// DeleteInvite removes an invite if present.
func (r *BoardRepo) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM board_invites WHERE id=$1`, id)
	return err
}
