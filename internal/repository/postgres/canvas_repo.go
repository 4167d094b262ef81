package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

// CanvasRepo implements CanvasRepository using PostgreSQL.
type CanvasRepo struct{ db *DB }

// NewCanvasRepo constructs a canvas repository.
func NewCanvasRepo(db *DB) *CanvasRepo { return &CanvasRepo{db: db} }

// --- nodes ---

const nodeCols = `id, board_id, owner_id, kind, x, y, width, height, color, payload, ver, updated_at`

func scanNode(s scanner) (model.Node, error) {
	var (
		n    model.Node
		kind string
		raw  []byte
	)
	if err := s.Scan(&n.ID, &n.BoardID, &n.OwnerID, &kind, &n.X, &n.Y, &n.Width, &n.Height,
		&n.Color, &raw, &n.Ver, &n.UpdatedAt); err != nil {
		return model.Node{}, err
	}
	n.Kind = model.NodeKind(kind)
	p, err := model.DecodePayload(n.Kind, raw)
	if err != nil {
		return model.Node{}, err
	}
	n.Payload = p
	return n, nil
}

// ListNodes returns the nodes of a board.
func (r *CanvasRepo) ListNodes(ctx context.Context, boardID uuid.UUID) ([]model.Node, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+nodeCols+` FROM nodes WHERE board_id=$1 ORDER BY updated_at`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNode selects a node of a board.
func (r *CanvasRepo) GetNode(ctx context.Context, boardID, id uuid.UUID) (*model.Node, error) {
	n, err := scanNode(r.db.Pool.QueryRow(ctx, `SELECT `+nodeCols+` FROM nodes WHERE id=$1 AND board_id=$2`, id, boardID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// UpsertNode inserts or updates a node with optimistic concurrency.
func (r *CanvasRepo) UpsertNode(ctx context.Context, n model.Node, baseVer int64) (stored model.Node, created bool, err error) {
	raw, err := model.EncodePayload(n.Payload)
	if err != nil {
		return model.Node{}, false, err
	}

	const sel = `SELECT ver FROM nodes WHERE id=$1 AND board_id=$2 FOR UPDATE`
	const ins = `
INSERT INTO nodes (id, board_id, owner_id, kind, x, y, width, height, color, payload, ver)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1)
RETURNING updated_at`
	const upd = `
UPDATE nodes SET kind=$3, x=$4, y=$5, width=$6, height=$7, color=$8, payload=$9, ver=$10, updated_at=now()
WHERE id=$1 AND board_id=$2
RETURNING owner_id, updated_at`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		var curVer int64
		scanErr := tx.QueryRow(ctx, sel, n.ID, n.BoardID).Scan(&curVer)
		switch {
		case scanErr == nil:
			if curVer != baseVer {
				return fmt.Errorf("node %s at ver %d, base %d: %w", n.ID, curVer, baseVer, errs.ErrVersionConflict)
			}
			n.Ver = curVer + 1
			return tx.QueryRow(ctx, upd, n.ID, n.BoardID, string(n.Kind), n.X, n.Y, n.Width, n.Height, n.Color, raw, n.Ver).
				Scan(&n.OwnerID, &n.UpdatedAt)
		case errors.Is(scanErr, pgx.ErrNoRows):
			if baseVer != 0 {
				return fmt.Errorf("node %s is gone: %w", n.ID, errs.ErrVersionConflict)
			}
			n.Ver = 1
			created = true
			err := tx.QueryRow(ctx, ins, n.ID, n.BoardID, n.OwnerID, string(n.Kind), n.X, n.Y, n.Width, n.Height, n.Color, raw).
				Scan(&n.UpdatedAt)
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		default:
			return scanErr
		}
	})
	if err != nil {
		return model.Node{}, false, err
	}
	return n, created, nil
}

// UpdatePayload rewrites a node payload under a row lock and bumps its version.
func (r *CanvasRepo) UpdatePayload(
	ctx context.Context, boardID, id uuid.UUID, kind model.NodeKind, fn func(model.Payload) (model.Payload, error),
) (model.Node, error) {
	const upd = `UPDATE nodes SET payload=$3, ver=ver+1, updated_at=now() WHERE id=$1 AND board_id=$2 RETURNING ver, updated_at`

	var n model.Node
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = scanNode(tx.QueryRow(ctx, `SELECT `+nodeCols+` FROM nodes WHERE id=$1 AND board_id=$2 FOR UPDATE`, id, boardID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if n.Kind != kind {
			return fmt.Errorf("%w: node %s is %s, want %s", errs.ErrInvalidArgument, id, n.Kind, kind)
		}
		p, err := fn(n.Payload)
		if err != nil {
			return err
		}
		n.Payload = p
		if err := n.Validate(); err != nil {
			return err
		}
		raw, err := model.EncodePayload(p)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, upd, id, boardID, raw).Scan(&n.Ver, &n.UpdatedAt)
	})
	if err != nil {
		return model.Node{}, err
	}
	return n, nil
}

// DeleteNode removes a node together with its edges and checklist items.
func (r *CanvasRepo) DeleteNode(ctx context.Context, boardID, id uuid.UUID) ([]model.Edge, error) {
	const delEdges = `
DELETE FROM edges WHERE board_id=$1 AND (source=$2 OR target=$2)
RETURNING ` + edgeCols
	const delItems = `DELETE FROM checklist_items WHERE node_id=$1`
	const delNode = `DELETE FROM nodes WHERE id=$1 AND board_id=$2`

	var pruned []model.Edge
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, delEdges, boardID, id)
		if err != nil {
			return err
		}
		for rows.Next() {
			e, err := scanEdge(rows)
			if err != nil {
				rows.Close()
				return err
			}
			pruned = append(pruned, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, delItems, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, delNode, id, boardID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pruned, nil
}

// --- edges ---

const edgeCols = `id, board_id, source, source_handle, target, target_handle, ver, updated_at`

func scanEdge(s scanner) (model.Edge, error) {
	var e model.Edge
	err := s.Scan(&e.ID, &e.BoardID, &e.Source, &e.SourceHandle, &e.Target, &e.TargetHandle, &e.Ver, &e.UpdatedAt)
	return e, err
}

// ListEdges returns the edges of a board.
func (r *CanvasRepo) ListEdges(ctx context.Context, boardID uuid.UUID) ([]model.Edge, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+edgeCols+` FROM edges WHERE board_id=$1 ORDER BY updated_at`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertEdge writes an edge whose endpoints are nodes of the same board. Later writes win.
func (r *CanvasRepo) UpsertEdge(ctx context.Context, e model.Edge) (model.Edge, bool, error) {
	const check = `SELECT count(*) FROM nodes WHERE board_id=$1 AND id IN ($2, $3)`
	const up = `
INSERT INTO edges (id, board_id, source, source_handle, target, target_handle, ver)
VALUES ($1,$2,$3,$4,$5,$6,1)
ON CONFLICT (id) DO UPDATE SET
  source=EXCLUDED.source, source_handle=EXCLUDED.source_handle,
  target=EXCLUDED.target, target_handle=EXCLUDED.target_handle,
  ver=edges.ver+1, updated_at=now()
WHERE edges.board_id = EXCLUDED.board_id
RETURNING ver, updated_at, (xmax = 0) AS inserted`

	want := int64(2)
	if e.Source == e.Target {
		want = 1
	}
	var have int64
	if err := r.db.Pool.QueryRow(ctx, check, e.BoardID, e.Source, e.Target).Scan(&have); err != nil {
		return model.Edge{}, false, err
	}
	if have != want {
		return model.Edge{}, false, errs.ErrDanglingEdge
	}

	var created bool
	err := r.db.Pool.QueryRow(ctx, up, e.ID, e.BoardID, e.Source, e.SourceHandle, e.Target, e.TargetHandle).
		Scan(&e.Ver, &e.UpdatedAt, &created)
	switch {
	case err == nil:
		return e, created, nil
	case errors.Is(err, pgx.ErrNoRows):
		// the id belongs to an edge of another board
		return model.Edge{}, false, errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return model.Edge{}, false, errs.ErrDanglingEdge
	default:
		return model.Edge{}, false, err
	}
}

// DeleteEdge removes an edge of a board.
func (r *CanvasRepo) DeleteEdge(ctx context.Context, boardID, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM edges WHERE id=$1 AND board_id=$2`, id, boardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- drawings ---

// ListDrawings returns the strokes of a board in creation order.
func (r *CanvasRepo) ListDrawings(ctx context.Context, boardID uuid.UUID) ([]model.Drawing, error) {
	const q = `SELECT id, board_id, owner_id, points, color, width, created_at FROM drawings WHERE board_id=$1 ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, q, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Drawing{}
	for rows.Next() {
		var (
			d   model.Drawing
			raw []byte
		)
		if err := rows.Scan(&d.ID, &d.BoardID, &d.OwnerID, &raw, &d.Color, &d.Width, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &d.Points); err != nil {
			return nil, fmt.Errorf("drawing %s points: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDrawing inserts a stroke and fills CreatedAt.
func (r *CanvasRepo) CreateDrawing(ctx context.Context, d model.Drawing) (model.Drawing, error) {
	const q = `
INSERT INTO drawings (id, board_id, owner_id, points, color, width)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING created_at`
	raw, err := json.Marshal(d.Points)
	if err != nil {
		return model.Drawing{}, err
	}
	if err := r.db.Pool.QueryRow(ctx, q, d.ID, d.BoardID, d.OwnerID, raw, d.Color, d.Width).Scan(&d.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.Drawing{}, errs.ErrAlreadyExists
		}
		return model.Drawing{}, err
	}
	return d, nil
}

// DeleteDrawing removes a stroke of a board.
func (r *CanvasRepo) DeleteDrawing(ctx context.Context, boardID, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM drawings WHERE id=$1 AND board_id=$2`, id, boardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
