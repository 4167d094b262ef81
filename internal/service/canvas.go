package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/analyze"
	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/realtime"
	"github.com/and161185/brainboard/internal/repository"
)

// Analyzer runs the analyze-node function.
type Analyzer interface {
	Analyze(ctx context.Context, req analyze.Request) (analyze.Result, error)
}

// CanvasService mutates nodes, edges and drawings and announces every change on the
// board feed.
type CanvasService interface {
	// UpsertNode creates the node when baseVer is 0, otherwise updates it under a version check.
	UpsertNode(ctx context.Context, userID uuid.UUID, n model.Node, baseVer int64) (model.Node, error)
	// DeleteNode also prunes the node's edges and checklist items.
	DeleteNode(ctx context.Context, userID, boardID, id uuid.UUID) error
	UpsertEdge(ctx context.Context, userID uuid.UUID, e model.Edge) (model.Edge, error)
	DeleteEdge(ctx context.Context, userID, boardID, id uuid.UUID) error
	CreateDrawing(ctx context.Context, userID uuid.UUID, d model.Drawing) (model.Drawing, error)
	DeleteDrawing(ctx context.Context, userID, boardID, id uuid.UUID) error
	// AnalyzeNode rewrites (reorganize) or summarizes (summarize) a note in place.
	AnalyzeNode(ctx context.Context, userID, boardID, nodeID uuid.UUID, action analyze.Action) (model.Node, error)
	// PublishCursor fans a cursor position out to the board without storing it.
	PublishCursor(ctx context.Context, userID uuid.UUID, c model.Cursor) error
}

type CanvasServiceImpl struct {
	repo     repository.CanvasRepository
	access   Access
	pub      realtime.Publisher
	analyzer Analyzer
	log      *zap.Logger
}

// NewCanvasService constructs CanvasService. analyzer may be nil, in which case
// AnalyzeNode reports errs.ErrUnavailable.
func NewCanvasService(repo repository.CanvasRepository, boards repository.BoardRepository, pub realtime.Publisher, analyzer Analyzer, log *zap.Logger) *CanvasServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CanvasServiceImpl{repo: repo, access: NewAccess(boards), pub: pub, analyzer: analyzer, log: log}
}

func (s *CanvasServiceImpl) UpsertNode(ctx context.Context, userID uuid.UUID, n model.Node, baseVer int64) (model.Node, error) {
	if baseVer < 0 {
		return model.Node{}, fmt.Errorf("%w: negative base_ver", errs.ErrInvalidArgument)
	}
	if err := n.Validate(); err != nil {
		return model.Node{}, err
	}
	if _, err := s.access.Require(ctx, userID, n.BoardID, model.RoleEditor); err != nil {
		return model.Node{}, err
	}
	if n.OwnerID == uuid.Nil {
		n.OwnerID = userID
	}
	stored, created, err := s.repo.UpsertNode(ctx, n, baseVer)
	if err != nil {
		return model.Node{}, err
	}
	typ := model.EventUpdate
	if created {
		typ = model.EventInsert
	}
	publish(s.pub, s.log, stored.BoardID, uuid.Nil, model.EntityNode, typ, stored, nil)
	return stored, nil
}

func (s *CanvasServiceImpl) DeleteNode(ctx context.Context, userID, boardID, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: empty node id", errs.ErrInvalidArgument)
	}
	if _, err := s.access.Require(ctx, userID, boardID, model.RoleEditor); err != nil {
		return err
	}
	pruned, err := s.repo.DeleteNode(ctx, boardID, id)
	if err != nil {
		return err
	}
	// edges go first so no subscriber ever holds an edge to a missing node
	for _, e := range pruned {
		publish(s.pub, s.log, boardID, uuid.Nil, model.EntityEdge, model.EventDelete, nil, model.Ref{ID: e.ID})
	}
	publish(s.pub, s.log, boardID, uuid.Nil, model.EntityNode, model.EventDelete, nil, model.Ref{ID: id})
	return nil
}

func (s *CanvasServiceImpl) UpsertEdge(ctx context.Context, userID uuid.UUID, e model.Edge) (model.Edge, error) {
	if err := e.Validate(); err != nil {
		return model.Edge{}, err
	}
	if _, err := s.access.Require(ctx, userID, e.BoardID, model.RoleEditor); err != nil {
		return model.Edge{}, err
	}
	stored, created, err := s.repo.UpsertEdge(ctx, e)
	if err != nil {
		return model.Edge{}, err
	}
	typ := model.EventUpdate
	if created {
		typ = model.EventInsert
	}
	publish(s.pub, s.log, stored.BoardID, uuid.Nil, model.EntityEdge, typ, stored, nil)
	return stored, nil
}

func (s *CanvasServiceImpl) DeleteEdge(ctx context.Context, userID, boardID, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: empty edge id", errs.ErrInvalidArgument)
	}
	if _, err := s.access.Require(ctx, userID, boardID, model.RoleEditor); err != nil {
		return err
	}
	if err := s.repo.DeleteEdge(ctx, boardID, id); err != nil {
		return err
	}
	publish(s.pub, s.log, boardID, uuid.Nil, model.EntityEdge, model.EventDelete, nil, model.Ref{ID: id})
	return nil
}

func (s *CanvasServiceImpl) CreateDrawing(ctx context.Context, userID uuid.UUID, d model.Drawing) (model.Drawing, error) {
	if err := d.Validate(); err != nil {
		return model.Drawing{}, err
	}
	if _, err := s.access.Require(ctx, userID, d.BoardID, model.RoleEditor); err != nil {
		return model.Drawing{}, err
	}
	d.OwnerID = userID
	stored, err := s.repo.CreateDrawing(ctx, d)
	if err != nil {
		return model.Drawing{}, err
	}
	publish(s.pub, s.log, stored.BoardID, uuid.Nil, model.EntityDrawing, model.EventInsert, stored, nil)
	return stored, nil
}

func (s *CanvasServiceImpl) DeleteDrawing(ctx context.Context, userID, boardID, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: empty drawing id", errs.ErrInvalidArgument)
	}
	if _, err := s.access.Require(ctx, userID, boardID, model.RoleEditor); err != nil {
		return err
	}
	if err := s.repo.DeleteDrawing(ctx, boardID, id); err != nil {
		return err
	}
	publish(s.pub, s.log, boardID, uuid.Nil, model.EntityDrawing, model.EventDelete, nil, model.Ref{ID: id})
	return nil
}

// AnalyzeNode sends the note's HTML to the analyzer and writes the answer back.
// The function is called outside any transaction; the write itself does not check versions.
func (s *CanvasServiceImpl) AnalyzeNode(ctx context.Context, userID, boardID, nodeID uuid.UUID, action analyze.Action) (model.Node, error) {
	if !action.Valid() {
		return model.Node{}, fmt.Errorf("%w: analyze action %q", errs.ErrInvalidArgument, action)
	}
	if _, err := s.access.Require(ctx, userID, boardID, model.RoleEditor); err != nil {
		return model.Node{}, err
	}
	if s.analyzer == nil {
		return model.Node{}, fmt.Errorf("analyze: %w", errs.ErrUnavailable)
	}
	n, err := s.repo.GetNode(ctx, boardID, nodeID)
	if err != nil {
		return model.Node{}, err
	}
	note, ok := n.Payload.(model.NotePayload)
	if !ok {
		return model.Node{}, fmt.Errorf("%w: node %s is %s, not a note", errs.ErrInvalidArgument, nodeID, n.Kind)
	}
	res, err := s.analyzer.Analyze(ctx, analyze.Request{NodeID: nodeID, Content: note.HTML, Action: action})
	if err != nil {
		return model.Node{}, err
	}

	stored, err := s.repo.UpdatePayload(ctx, boardID, nodeID, model.KindNote, func(p model.Payload) (model.Payload, error) {
		cur, ok := p.(model.NotePayload)
		if !ok {
			return nil, errors.New("payload is not a note")
		}
		switch action {
		case analyze.ActionReorganize:
			cur.HTML = res.Content
		case analyze.ActionSummarize:
			cur.Summary = res.Summary
			cur.Tags = res.Tags
		}
		return cur, nil
	})
	if err != nil {
		return model.Node{}, err
	}
	publish(s.pub, s.log, boardID, uuid.Nil, model.EntityNode, model.EventUpdate, stored, nil)
	return stored, nil
}

// PublishCursor requires membership only: viewers are visible to collaborators too.
func (s *CanvasServiceImpl) PublishCursor(ctx context.Context, userID uuid.UUID, c model.Cursor) error {
	if _, err := s.access.Require(ctx, userID, c.BoardID, model.RoleViewer); err != nil {
		return err
	}
	c.UserID = userID
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	publish(s.pub, s.log, c.BoardID, uuid.Nil, model.EntityCursor, model.EventUpdate, c, nil)
	return nil
}

// publish announces a committed change. Encoding failures are logged; the write already
// happened and subscribers catch up on their next load.
func publish(pub realtime.Publisher, log *zap.Logger, boardID, nodeID uuid.UUID, entity model.EntityKind, typ model.EventType, newRec, oldRec any) {
	if pub == nil {
		return
	}
	ch, err := model.NewChange(boardID, entity, typ, newRec, oldRec)
	if err != nil {
		log.Error("encode change",
			zap.Stringer("board", boardID),
			zap.String("entity", string(entity)),
			zap.Error(err),
		)
		return
	}
	ch.NodeID = nodeID
	pub.Publish(ch)
}
