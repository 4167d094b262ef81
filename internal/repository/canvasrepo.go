package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/model"
)

// CanvasRepository stores nodes, edges and drawings of boards.
type CanvasRepository interface {
	ListNodes(ctx context.Context, boardID uuid.UUID) ([]model.Node, error)
	GetNode(ctx context.Context, boardID, id uuid.UUID) (*model.Node, error)
	// UpsertNode inserts when baseVer is 0 and the row is absent, otherwise updates under a
	// version check. The stored node carries the new version; created reports an insert.
	UpsertNode(ctx context.Context, n model.Node, baseVer int64) (stored model.Node, created bool, err error)
	// UpdatePayload rewrites the payload of a node of the given kind without a version check.
	UpdatePayload(ctx context.Context, boardID, id uuid.UUID, kind model.NodeKind, fn func(model.Payload) (model.Payload, error)) (model.Node, error)
	// DeleteNode removes the node, its edges and its checklist items. It returns the
	// removed edges.
	DeleteNode(ctx context.Context, boardID, id uuid.UUID) ([]model.Edge, error)

	ListEdges(ctx context.Context, boardID uuid.UUID) ([]model.Edge, error)
	// UpsertEdge fails with errs.ErrDanglingEdge when an endpoint is not a node of the board.
	UpsertEdge(ctx context.Context, e model.Edge) (stored model.Edge, created bool, err error)
	DeleteEdge(ctx context.Context, boardID, id uuid.UUID) error

	ListDrawings(ctx context.Context, boardID uuid.UUID) ([]model.Drawing, error)
	CreateDrawing(ctx context.Context, d model.Drawing) (model.Drawing, error)
	DeleteDrawing(ctx context.Context, boardID, id uuid.UUID) error
}

// ChecklistRepository stores checklist items of checklist nodes.
type ChecklistRepository interface {
	// UpsertItems writes the batch in one transaction. created[i] reports an insert of items[i].
	UpsertItems(ctx context.Context, nodeID uuid.UUID, items []model.ChecklistItem) (stored []model.ChecklistItem, created []bool, err error)
	DeleteItem(ctx context.Context, nodeID, id uuid.UUID) error
	// ListItems returns items ordered by sort order.
	ListItems(ctx context.Context, nodeID uuid.UUID) ([]model.ChecklistItem, error)
}

// CollectibleRepository stores the reward catalog, ownership and XP.
type CollectibleRepository interface {
	Catalog(ctx context.Context) ([]model.Collectible, error)
	// Grant records ownership and adds xp to the profile in one transaction. It returns the
	// new XP total.
	Grant(ctx context.Context, userID uuid.UUID, c model.Collectible, xp int64) (int64, error)
	ListOwned(ctx context.Context, userID uuid.UUID) ([]model.Collectible, error)
}
