package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/and161185/brainboard/internal/crypto"
	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/limiter"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/repository"
)

// MaxTitleLen bounds board titles.
const MaxTitleLen = 200

// BoardService manages boards, memberships and invite links.
type BoardService interface {
	CreateBoard(ctx context.Context, ownerID uuid.UUID, title string) (model.Board, error)
	// ListBoards returns the boards userID is a member of, newest first.
	ListBoards(ctx context.Context, userID uuid.UUID) ([]model.Board, error)
	// GetBoard returns the initial load of a board for a member.
	GetBoard(ctx context.Context, userID, boardID uuid.UUID) (model.BoardSnapshot, error)
	// CreateInvite issues an invite; ttl nil means the invite never expires.
	CreateInvite(ctx context.Context, userID, boardID uuid.UUID, role model.Role, ttl *time.Duration) (model.Invite, error)
	ListInvites(ctx context.Context, userID, boardID uuid.UUID) ([]model.Invite, error)
	RevokeInvite(ctx context.Context, userID, inviteID uuid.UUID) error
	// AcceptInvite redeems a token and returns the board and the resulting role.
	AcceptInvite(ctx context.Context, userID uuid.UUID, token, ip string) (uuid.UUID, model.Role, error)
}

// Access resolves board roles for the other services.
type Access struct {
	boards repository.BoardRepository
}

func NewAccess(boards repository.BoardRepository) Access { return Access{boards: boards} }

// Require returns the caller's role when it ranks at least min. Non-members get
// errs.ErrNotFound so board ids cannot be probed.
func (a Access) Require(ctx context.Context, userID, boardID uuid.UUID, min model.Role) (model.Role, error) {
	if userID == uuid.Nil || boardID == uuid.Nil {
		return "", fmt.Errorf("%w: empty user/board id", errs.ErrInvalidArgument)
	}
	role, err := a.boards.Role(ctx, boardID, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", fmt.Errorf("board %s: %w", boardID, errs.ErrNotFound)
		}
		return "", err
	}
	if role.Rank() < min.Rank() {
		return role, fmt.Errorf("%w: %s role required", errs.ErrForbidden, min)
	}
	return role, nil
}

type BoardServiceImpl struct {
	boards repository.BoardRepository
	canvas repository.CanvasRepository
	access Access
	lim    limiter.Limiter
	now    func() time.Time
}

// NewBoardService constructs BoardService.
func NewBoardService(boards repository.BoardRepository, canvas repository.CanvasRepository, lim limiter.Limiter) *BoardServiceImpl {
	return &BoardServiceImpl{boards: boards, canvas: canvas, access: NewAccess(boards), lim: lim, now: time.Now}
}

// CreateBoard makes ownerID the owner of a new board.
func (s *BoardServiceImpl) CreateBoard(ctx context.Context, ownerID uuid.UUID, title string) (model.Board, error) {
	title = strings.TrimSpace(title)
	if ownerID == uuid.Nil {
		return model.Board{}, fmt.Errorf("%w: empty owner", errs.ErrInvalidArgument)
	}
	if title == "" || len(title) > MaxTitleLen {
		return model.Board{}, fmt.Errorf("%w: title must be 1..%d bytes", errs.ErrInvalidArgument, MaxTitleLen)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Board{}, err
	}
	b := &model.Board{ID: id, OwnerID: ownerID, Title: title}
	if err := s.boards.Create(ctx, b); err != nil {
		return model.Board{}, err
	}
	return *b, nil
}

func (s *BoardServiceImpl) ListBoards(ctx context.Context, userID uuid.UUID) ([]model.Board, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrInvalidArgument)
	}
	return s.boards.ListForUser(ctx, userID)
}

// GetBoard loads the board header and its nodes, edges and drawings.
func (s *BoardServiceImpl) GetBoard(ctx context.Context, userID, boardID uuid.UUID) (model.BoardSnapshot, error) {
	role, err := s.access.Require(ctx, userID, boardID, model.RoleViewer)
	if err != nil {
		return model.BoardSnapshot{}, err
	}
	b, err := s.boards.Get(ctx, boardID)
	if err != nil {
		return model.BoardSnapshot{}, err
	}
	nodes, err := s.canvas.ListNodes(ctx, boardID)
	if err != nil {
		return model.BoardSnapshot{}, fmt.Errorf("list nodes: %w", err)
	}
	edges, err := s.canvas.ListEdges(ctx, boardID)
	if err != nil {
		return model.BoardSnapshot{}, fmt.Errorf("list edges: %w", err)
	}
	drawings, err := s.canvas.ListDrawings(ctx, boardID)
	if err != nil {
		return model.BoardSnapshot{}, fmt.Errorf("list drawings: %w", err)
	}
	return model.BoardSnapshot{Board: *b, Role: role, Nodes: nodes, Edges: edges, Drawings: drawings}, nil
}

// CreateInvite is owner only. Invites grant editor or viewer, never owner.
func (s *BoardServiceImpl) CreateInvite(ctx context.Context, userID, boardID uuid.UUID, role model.Role, ttl *time.Duration) (model.Invite, error) {
	if _, err := s.access.Require(ctx, userID, boardID, model.RoleOwner); err != nil {
		return model.Invite{}, err
	}
	if role != model.RoleEditor && role != model.RoleViewer {
		return model.Invite{}, fmt.Errorf("%w: invite role %q", errs.ErrInvalidArgument, role)
	}
	if ttl != nil && *ttl <= 0 {
		return model.Invite{}, fmt.Errorf("%w: invite ttl must be positive", errs.ErrInvalidArgument)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Invite{}, err
	}
	tok, err := pkgcrypto.NewToken(pkgcrypto.InviteTokenBytes)
	if err != nil {
		return model.Invite{}, err
	}
	inv := &model.Invite{ID: id, BoardID: boardID, Token: tok, Role: role, CreatedBy: userID}
	if ttl != nil {
		exp := s.now().Add(*ttl).UTC()
		inv.ExpiresAt = &exp
	}
	if err := s.boards.CreateInvite(ctx, inv); err != nil {
		return model.Invite{}, err
	}
	return *inv, nil
}

// ListInvites is owner only.
func (s *BoardServiceImpl) ListInvites(ctx context.Context, userID, boardID uuid.UUID) ([]model.Invite, error) {
	if _, err := s.access.Require(ctx, userID, boardID, model.RoleOwner); err != nil {
		return nil, err
	}
	return s.boards.ListInvites(ctx, boardID)
}

// RevokeInvite deletes an invite of a board the caller owns. A missing invite is not an error.
func (s *BoardServiceImpl) RevokeInvite(ctx context.Context, userID, inviteID uuid.UUID) error {
	if inviteID == uuid.Nil {
		return fmt.Errorf("%w: empty invite id", errs.ErrInvalidArgument)
	}
	inv, err := s.boards.GetInvite(ctx, inviteID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.access.Require(ctx, userID, inv.BoardID, model.RoleOwner); err != nil {
		return err
	}
	return s.boards.DeleteInvite(ctx, inviteID)
}

// AcceptInvite grants the invite's role. Attempts are limited per (token prefix, ip) so
// tokens cannot be brute forced.
func (s *BoardServiceImpl) AcceptInvite(ctx context.Context, userID uuid.UUID, token, ip string) (uuid.UUID, model.Role, error) {
	token = strings.TrimSpace(token)
	if userID == uuid.Nil || token == "" {
		return uuid.Nil, "", fmt.Errorf("%w: empty user/token", errs.ErrInvalidArgument)
	}
	key := limiter.Key{Scope: limiter.ScopeInvite, Subject: pkgcrypto.TokenPrefix(token), IPHash: limiter.HashIP(ip)}
	allowed, _, err := s.lim.Allow(ctx, key)
	if err != nil {
		return uuid.Nil, "", err
	}
	if !allowed {
		return uuid.Nil, "", errs.ErrRateLimited
	}

	inv, err := s.boards.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			if blocked, _, ferr := s.lim.Failure(ctx, key); ferr == nil && blocked {
				return uuid.Nil, "", errs.ErrRateLimited
			}
			return uuid.Nil, "", fmt.Errorf("invite: %w", errs.ErrNotFound)
		}
		return uuid.Nil, "", err
	}
	if inv.Expired(s.now()) {
		return uuid.Nil, "", errs.ErrInviteExpired
	}
	_ = s.lim.Success(ctx, key)

	role, err := s.boards.AddMember(ctx, model.Member{BoardID: inv.BoardID, UserID: userID, Role: inv.Role})
	if err != nil {
		return uuid.Nil, "", err
	}
	return inv.BoardID, role, nil
}
