// Package grpcserver exposes the BrainBoard gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/brainboard/internal/analyze"
	"github.com/and161185/brainboard/internal/api/boardv1"
	"github.com/and161185/brainboard/internal/convert"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/realtime"
	"github.com/and161185/brainboard/internal/service"
)

// Feed is the read side of the realtime hub.
type Feed interface {
	Subscribe(boardID uuid.UUID, f realtime.Filter) *realtime.Subscription
}

// Members checks board roles.
type Members interface {
	Require(ctx context.Context, userID, boardID uuid.UUID, min model.Role) (model.Role, error)
}

// Deps are the services the handlers delegate to.
type Deps struct {
	Auth      service.AuthService
	Boards    service.BoardService
	Canvas    service.CanvasService
	Checklist service.ChecklistService
	Focus     service.FocusService
	Members   Members
	Feed      Feed
	Logger    *zap.Logger
}

// Server wires services into gRPC handlers.
type Server struct {
	boardv1.UnimplementedBrainBoardServer
	d   Deps
	log *zap.Logger
}

var _ boardv1.BrainBoardServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{d: d, log: log}
}

func (s *Server) caller(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserIDFromCtx(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no auth")
	}
	return id, nil
}

// remoteIP strips the port so rate limits apply per host.
func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		return addr
	}
	return ""
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *boardv1.RegisterRequest) (*boardv1.RegisterResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty username/password")
	}
	id, err := s.d.Auth.Register(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus("register", err)
	}
	return &boardv1.RegisterResponse{UserID: id}, nil
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *boardv1.LoginRequest) (*boardv1.LoginResponse, error) {
	tok, u, err := s.d.Auth.LoginWithIP(ctx, req.Username, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, toStatus("login", err)
	}
	return &boardv1.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		UserID:      u.ID,
		Username:    u.Username,
	}, nil
}

// --- Boards and invites ---

func (s *Server) CreateBoard(ctx context.Context, req *boardv1.CreateBoardRequest) (*boardv1.BoardResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.d.Boards.CreateBoard(ctx, uid, req.Title)
	if err != nil {
		return nil, toStatus("create board", err)
	}
	return &boardv1.BoardResponse{Board: b}, nil
}

func (s *Server) GetBoard(ctx context.Context, req *boardv1.GetBoardRequest) (*boardv1.GetBoardResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.d.Boards.GetBoard(ctx, uid, req.BoardID)
	if err != nil {
		return nil, toStatus("get board", err)
	}
	resp, err := convert.ToWireSnapshot(snap)
	if err != nil {
		return nil, toStatus("get board", err)
	}
	return resp, nil
}

func (s *Server) ListBoards(ctx context.Context, _ *boardv1.Empty) (*boardv1.ListBoardsResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	bs, err := s.d.Boards.ListBoards(ctx, uid)
	if err != nil {
		return nil, toStatus("list boards", err)
	}
	return &boardv1.ListBoardsResponse{Boards: bs}, nil
}

func (s *Server) CreateInvite(ctx context.Context, req *boardv1.CreateInviteRequest) (*boardv1.InviteResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.TTLSeconds < 0 {
		return nil, status.Error(codes.InvalidArgument, "negative ttl")
	}
	var ttl *time.Duration
	if req.TTLSeconds > 0 {
		d := time.Duration(req.TTLSeconds) * time.Second
		ttl = &d
	}
	inv, err := s.d.Boards.CreateInvite(ctx, uid, req.BoardID, model.Role(req.Role), ttl)
	if err != nil {
		return nil, toStatus("create invite", err)
	}
	return &boardv1.InviteResponse{Invite: convert.ToWireInvite(inv)}, nil
}

func (s *Server) ListInvites(ctx context.Context, req *boardv1.ListInvitesRequest) (*boardv1.ListInvitesResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	invs, err := s.d.Boards.ListInvites(ctx, uid, req.BoardID)
	if err != nil {
		return nil, toStatus("list invites", err)
	}
	return &boardv1.ListInvitesResponse{Invites: convert.ToWireInvites(invs)}, nil
}

func (s *Server) RevokeInvite(ctx context.Context, req *boardv1.RevokeInviteRequest) (*boardv1.Empty, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.d.Boards.RevokeInvite(ctx, uid, req.InviteID); err != nil {
		return nil, toStatus("revoke invite", err)
	}
	return &boardv1.Empty{}, nil
}

func (s *Server) AcceptInvite(ctx context.Context, req *boardv1.AcceptInviteRequest) (*boardv1.AcceptInviteResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	boardID, role, err := s.d.Boards.AcceptInvite(ctx, uid, req.Token, remoteIP(ctx))
	if err != nil {
		return nil, toStatus("accept invite", err)
	}
	return &boardv1.AcceptInviteResponse{BoardID: boardID, Role: string(role)}, nil
}

// --- Canvas ---

func (s *Server) UpsertNode(ctx context.Context, req *boardv1.UpsertNodeRequest) (*boardv1.NodeResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := convert.FromWireNode(req.Node)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad node: %v", err)
	}
	stored, err := s.d.Canvas.UpsertNode(ctx, uid, n, req.BaseVer)
	if err != nil {
		return nil, toStatus("upsert node", err)
	}
	return s.nodeResponse(stored)
}

func (s *Server) nodeResponse(n model.Node) (*boardv1.NodeResponse, error) {
	w, err := convert.ToWireNode(n)
	if err != nil {
		return nil, toStatus("encode node", err)
	}
	return &boardv1.NodeResponse{Node: w}, nil
}

func (s *Server) DeleteNode(ctx context.Context, req *boardv1.EntityRequest) (*boardv1.Empty, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.d.Canvas.DeleteNode(ctx, uid, req.BoardID, req.ID); err != nil {
		return nil, toStatus("delete node", err)
	}
	return &boardv1.Empty{}, nil
}

func (s *Server) UpsertEdge(ctx context.Context, req *boardv1.UpsertEdgeRequest) (*boardv1.EdgeResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := s.d.Canvas.UpsertEdge(ctx, uid, req.Edge)
	if err != nil {
		return nil, toStatus("upsert edge", err)
	}
	return &boardv1.EdgeResponse{Edge: e}, nil
}

func (s *Server) DeleteEdge(ctx context.Context, req *boardv1.EntityRequest) (*boardv1.Empty, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.d.Canvas.DeleteEdge(ctx, uid, req.BoardID, req.ID); err != nil {
		return nil, toStatus("delete edge", err)
	}
	return &boardv1.Empty{}, nil
}

func (s *Server) CreateDrawing(ctx context.Context, req *boardv1.CreateDrawingRequest) (*boardv1.DrawingResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.d.Canvas.CreateDrawing(ctx, uid, req.Drawing)
	if err != nil {
		return nil, toStatus("create drawing", err)
	}
	return &boardv1.DrawingResponse{Drawing: d}, nil
}

func (s *Server) DeleteDrawing(ctx context.Context, req *boardv1.EntityRequest) (*boardv1.Empty, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.d.Canvas.DeleteDrawing(ctx, uid, req.BoardID, req.ID); err != nil {
		return nil, toStatus("delete drawing", err)
	}
	return &boardv1.Empty{}, nil
}

func (s *Server) AnalyzeNode(ctx context.Context, req *boardv1.AnalyzeNodeRequest) (*boardv1.NodeResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.d.Canvas.AnalyzeNode(ctx, uid, req.BoardID, req.NodeID, analyze.Action(req.Action))
	if err != nil {
		return nil, toStatus("analyze node", err)
	}
	return s.nodeResponse(n)
}

func (s *Server) PublishCursor(ctx context.Context, req *boardv1.PublishCursorRequest) (*boardv1.Empty, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	c := model.Cursor{BoardID: req.BoardID, Name: req.Name, X: req.X, Y: req.Y}
	if err := s.d.Canvas.PublishCursor(ctx, uid, c); err != nil {
		return nil, toStatus("publish cursor", err)
	}
	return &boardv1.Empty{}, nil
}

// --- Checklists ---

func (s *Server) UpsertItems(ctx context.Context, req *boardv1.UpsertItemsRequest) (*boardv1.ItemsResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.d.Checklist.UpsertItems(ctx, uid, req.BoardID, req.NodeID, req.Items)
	if err != nil {
		return nil, toStatus("upsert items", err)
	}
	return &boardv1.ItemsResponse{Items: items}, nil
}

func (s *Server) DeleteItem(ctx context.Context, req *boardv1.DeleteItemRequest) (*boardv1.Empty, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.d.Checklist.DeleteItem(ctx, uid, req.BoardID, req.NodeID, req.ID); err != nil {
		return nil, toStatus("delete item", err)
	}
	return &boardv1.Empty{}, nil
}

func (s *Server) ListItems(ctx context.Context, req *boardv1.ListItemsRequest) (*boardv1.ItemsResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.d.Checklist.ListItems(ctx, uid, req.BoardID, req.NodeID)
	if err != nil {
		return nil, toStatus("list items", err)
	}
	return &boardv1.ItemsResponse{Items: items}, nil
}

// --- Focus ---

func (s *Server) SaveFocus(ctx context.Context, req *boardv1.SaveFocusRequest) (*boardv1.NodeResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.d.Focus.SaveState(ctx, uid, req.BoardID, req.NodeID, req.State)
	if err != nil {
		return nil, toStatus("save focus", err)
	}
	return s.nodeResponse(n)
}

func (s *Server) RollReward(ctx context.Context, _ *boardv1.Empty) (*boardv1.CollectibleResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	c, xp, err := s.d.Focus.RollReward(ctx, uid)
	if err != nil {
		return nil, toStatus("roll reward", err)
	}
	return &boardv1.CollectibleResponse{Collectible: c, XP: xp}, nil
}

func (s *Server) ListCollectibles(ctx context.Context, _ *boardv1.Empty) (*boardv1.ListCollectiblesResponse, error) {
	uid, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	cs, err := s.d.Focus.ListCollectibles(ctx, uid)
	if err != nil {
		return nil, toStatus("list collectibles", err)
	}
	return &boardv1.ListCollectiblesResponse{Collectibles: cs}, nil
}

// --- Realtime ---

// Subscribe streams board changes until the client leaves. Headers are sent once the hub
// subscription is attached, which tells the client it is safe to load the snapshot.
// A dropped slow consumer ends with Aborted, a hub shutdown with Unavailable.
func (s *Server) Subscribe(req *boardv1.SubscribeRequest, stream boardv1.BrainBoard_SubscribeServer) error {
	ctx := stream.Context()
	uid, err := s.caller(ctx)
	if err != nil {
		return err
	}
	if _, err := s.d.Members.Require(ctx, uid, req.BoardID, model.RoleViewer); err != nil {
		return toStatus("subscribe", err)
	}
	filter, err := realtime.ParseFilter(req.Entities, req.NodeID)
	if err != nil {
		return toStatus("subscribe", err)
	}

	sub := s.d.Feed.Subscribe(req.BoardID, filter)
	defer sub.Close()
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-sub.C:
			if !ok {
				err := sub.Err()
				switch {
				case errors.Is(err, realtime.ErrSlowConsumer):
					s.log.Warn("feed dropped", zap.Stringer("board", req.BoardID), zap.Stringer("user", uid))
					return status.Error(codes.Aborted, err.Error())
				case errors.Is(err, realtime.ErrHubClosed):
					return status.Error(codes.Unavailable, err.Error())
				}
				return nil
			}
			if err := stream.Send(&ch); err != nil {
				return err
			}
		}
	}
}
