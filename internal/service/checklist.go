package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/realtime"
	"github.com/and161185/brainboard/internal/repository"
)

// ChecklistService manages items of checklist nodes.
type ChecklistService interface {
	// UpsertItems writes a batch of items keyed by id.
	UpsertItems(ctx context.Context, userID, boardID, nodeID uuid.UUID, items []model.ChecklistItem) ([]model.ChecklistItem, error)
	DeleteItem(ctx context.Context, userID, boardID, nodeID, id uuid.UUID) error
	// ListItems returns the items ordered by sort order.
	ListItems(ctx context.Context, userID, boardID, nodeID uuid.UUID) ([]model.ChecklistItem, error)
}

type ChecklistServiceImpl struct {
	items    repository.ChecklistRepository
	canvas   repository.CanvasRepository
	access   Access
	pub      realtime.Publisher
	log      *zap.Logger
	maxBatch int
}

// NewChecklistService constructs ChecklistService with batch limits.
func NewChecklistService(items repository.ChecklistRepository, canvas repository.CanvasRepository, boards repository.BoardRepository, pub realtime.Publisher, maxBatch int, log *zap.Logger) *ChecklistServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChecklistServiceImpl{items: items, canvas: canvas, access: NewAccess(boards), pub: pub, log: log, maxBatch: maxBatch}
}

// UpsertItems validates the batch and publishes one change per item.
// Validation rules:
// - 0 < len(items) <= maxBatch
// - every item belongs to nodeID (an empty NodeID is filled in)
// - item.Validate passes
func (s *ChecklistServiceImpl) UpsertItems(ctx context.Context, userID, boardID, nodeID uuid.UUID, items []model.ChecklistItem) ([]model.ChecklistItem, error) {
	if len(items) == 0 {
		return []model.ChecklistItem{}, nil
	}
	if len(items) > s.maxBatch {
		return nil, fmt.Errorf("%w: batch too large (%d > %d)", errs.ErrInvalidArgument, len(items), s.maxBatch)
	}
	batch := make([]model.ChecklistItem, len(items))
	for i, it := range items {
		if it.NodeID == uuid.Nil {
			it.NodeID = nodeID
		}
		if it.NodeID != nodeID {
			return nil, fmt.Errorf("%w: item[%d] belongs to another node", errs.ErrInvalidArgument, i)
		}
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		batch[i] = it
	}
	if err := s.checkNode(ctx, userID, boardID, nodeID, model.RoleEditor); err != nil {
		return nil, err
	}

	stored, created, err := s.items.UpsertItems(ctx, nodeID, batch)
	if err != nil {
		return nil, err
	}
	for i, it := range stored {
		typ := model.EventUpdate
		if created[i] {
			typ = model.EventInsert
		}
		publish(s.pub, s.log, boardID, nodeID, model.EntityChecklistItem, typ, it, nil)
	}
	return stored, nil
}

func (s *ChecklistServiceImpl) DeleteItem(ctx context.Context, userID, boardID, nodeID, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: empty item id", errs.ErrInvalidArgument)
	}
	if err := s.checkNode(ctx, userID, boardID, nodeID, model.RoleEditor); err != nil {
		return err
	}
	if err := s.items.DeleteItem(ctx, nodeID, id); err != nil {
		return err
	}
	publish(s.pub, s.log, boardID, nodeID, model.EntityChecklistItem, model.EventDelete, nil, model.Ref{ID: id})
	return nil
}

func (s *ChecklistServiceImpl) ListItems(ctx context.Context, userID, boardID, nodeID uuid.UUID) ([]model.ChecklistItem, error) {
	if err := s.checkNode(ctx, userID, boardID, nodeID, model.RoleViewer); err != nil {
		return nil, err
	}
	return s.items.ListItems(ctx, nodeID)
}

// checkNode verifies the caller's role and that nodeID is a checklist of boardID.
func (s *ChecklistServiceImpl) checkNode(ctx context.Context, userID, boardID, nodeID uuid.UUID, min model.Role) error {
	if nodeID == uuid.Nil {
		return fmt.Errorf("%w: empty node id", errs.ErrInvalidArgument)
	}
	if _, err := s.access.Require(ctx, userID, boardID, min); err != nil {
		return err
	}
	n, err := s.canvas.GetNode(ctx, boardID, nodeID)
	if err != nil {
		return err
	}
	if n.Kind != model.KindChecklist {
		return fmt.Errorf("%w: node %s is %s, not a checklist", errs.ErrInvalidArgument, nodeID, n.Kind)
	}
	return nil
}
