// Package client adapts the BrainBoard gRPC API to the domain types used by the board
// session, the outbox and the CLI.
package client

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"

	"github.com/and161185/brainboard/internal/api/boardv1"
	"github.com/and161185/brainboard/internal/convert"
	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/session"
)

// Client implements session.Backend over a gRPC connection. Errors wrap errs sentinels.
type Client struct {
	rpc *boardv1.Client
}

var _ session.Backend = (*Client)(nil)

// New wraps an established connection.
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{rpc: boardv1.NewClient(cc)}
}

// Session is the result of a successful login.
type Session struct {
	UserID      uuid.UUID
	Username    string
	AccessToken string
	ExpiresAt   time.Time
}

// --- auth ---

func (c *Client) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	resp, err := c.rpc.Register(ctx, &boardv1.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return uuid.Nil, mapErr(err)
	}
	return resp.UserID, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	resp, err := c.rpc.Login(ctx, &boardv1.LoginRequest{Username: username, Password: password})
	if err != nil {
		return Session{}, mapErr(err)
	}
	return Session{
		UserID:      resp.UserID,
		Username:    resp.Username,
		AccessToken: resp.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
	}, nil
}

// --- boards ---

func (c *Client) CreateBoard(ctx context.Context, title string) (model.Board, error) {
	resp, err := c.rpc.CreateBoard(ctx, &boardv1.CreateBoardRequest{Title: title})
	if err != nil {
		return model.Board{}, mapErr(err)
	}
	return resp.Board, nil
}

func (c *Client) GetBoard(ctx context.Context, boardID uuid.UUID) (model.BoardSnapshot, error) {
	resp, err := c.rpc.GetBoard(ctx, &boardv1.GetBoardRequest{BoardID: boardID})
	if err != nil {
		return model.BoardSnapshot{}, mapErr(err)
	}
	return convert.FromWireSnapshot(resp)
}

// ListBoards returns the boards the caller is a member of, newest first.
func (c *Client) ListBoards(ctx context.Context) ([]model.Board, error) {
	resp, err := c.rpc.ListBoards(ctx, &boardv1.Empty{})
	if err != nil {
		return nil, mapErr(err)
	}
	if resp.Boards == nil {
		return []model.Board{}, nil
	}
	return resp.Boards, nil
}

// CreateInvite issues a token; ttl 0 never expires.
func (c *Client) CreateInvite(ctx context.Context, boardID uuid.UUID, role model.Role, ttl time.Duration) (model.Invite, error) {
	resp, err := c.rpc.CreateInvite(ctx, &boardv1.CreateInviteRequest{
		BoardID:    boardID,
		Role:       string(role),
		TTLSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return model.Invite{}, mapErr(err)
	}
	return convert.FromWireInvite(resp.Invite), nil
}

func (c *Client) ListInvites(ctx context.Context, boardID uuid.UUID) ([]model.Invite, error) {
	resp, err := c.rpc.ListInvites(ctx, &boardv1.ListInvitesRequest{BoardID: boardID})
	if err != nil {
		return nil, mapErr(err)
	}
	return convert.FromWireInvites(resp.Invites), nil
}

func (c *Client) RevokeInvite(ctx context.Context, inviteID uuid.UUID) error {
	_, err := c.rpc.RevokeInvite(ctx, &boardv1.RevokeInviteRequest{InviteID: inviteID})
	return mapErr(err)
}

func (c *Client) AcceptInvite(ctx context.Context, token string) (uuid.UUID, model.Role, error) {
	resp, err := c.rpc.AcceptInvite(ctx, &boardv1.AcceptInviteRequest{Token: token})
	if err != nil {
		return uuid.Nil, "", mapErr(err)
	}
	return resp.BoardID, model.Role(resp.Role), nil
}

// --- canvas ---

func (c *Client) UpsertNode(ctx context.Context, n model.Node, baseVer int64) (model.Node, error) {
	w, err := convert.ToWireNode(n)
	if err != nil {
		return model.Node{}, err
	}
	resp, err := c.rpc.UpsertNode(ctx, &boardv1.UpsertNodeRequest{Node: w, BaseVer: baseVer})
	if err != nil {
		return model.Node{}, mapErr(err)
	}
	return convert.FromWireNode(resp.Node)
}

func (c *Client) DeleteNode(ctx context.Context, boardID, id uuid.UUID) error {
	_, err := c.rpc.DeleteNode(ctx, &boardv1.EntityRequest{BoardID: boardID, ID: id})
	return mapErr(err)
}

func (c *Client) UpsertEdge(ctx context.Context, e model.Edge) (model.Edge, error) {
	resp, err := c.rpc.UpsertEdge(ctx, &boardv1.UpsertEdgeRequest{Edge: e})
	if err != nil {
		return model.Edge{}, mapErr(err)
	}
	return resp.Edge, nil
}

func (c *Client) DeleteEdge(ctx context.Context, boardID, id uuid.UUID) error {
	_, err := c.rpc.DeleteEdge(ctx, &boardv1.EntityRequest{BoardID: boardID, ID: id})
	return mapErr(err)
}

func (c *Client) CreateDrawing(ctx context.Context, d model.Drawing) (model.Drawing, error) {
	resp, err := c.rpc.CreateDrawing(ctx, &boardv1.CreateDrawingRequest{Drawing: d})
	if err != nil {
		return model.Drawing{}, mapErr(err)
	}
	return resp.Drawing, nil
}

func (c *Client) DeleteDrawing(ctx context.Context, boardID, id uuid.UUID) error {
	_, err := c.rpc.DeleteDrawing(ctx, &boardv1.EntityRequest{BoardID: boardID, ID: id})
	return mapErr(err)
}

// AnalyzeNode runs the analyze function on a note and returns the updated node.
func (c *Client) AnalyzeNode(ctx context.Context, boardID, nodeID uuid.UUID, action string) (model.Node, error) {
	resp, err := c.rpc.AnalyzeNode(ctx, &boardv1.AnalyzeNodeRequest{BoardID: boardID, NodeID: nodeID, Action: action})
	if err != nil {
		return model.Node{}, mapErr(err)
	}
	return convert.FromWireNode(resp.Node)
}

// --- checklists ---

func (c *Client) UpsertItems(ctx context.Context, boardID, nodeID uuid.UUID, items []model.ChecklistItem) ([]model.ChecklistItem, error) {
	resp, err := c.rpc.UpsertItems(ctx, &boardv1.UpsertItemsRequest{BoardID: boardID, NodeID: nodeID, Items: items})
	if err != nil {
		return nil, mapErr(err)
	}
	return resp.Items, nil
}

func (c *Client) DeleteItem(ctx context.Context, boardID, nodeID, id uuid.UUID) error {
	_, err := c.rpc.DeleteItem(ctx, &boardv1.DeleteItemRequest{BoardID: boardID, NodeID: nodeID, ID: id})
	return mapErr(err)
}

func (c *Client) ListItems(ctx context.Context, boardID, nodeID uuid.UUID) ([]model.ChecklistItem, error) {
	resp, err := c.rpc.ListItems(ctx, &boardv1.ListItemsRequest{BoardID: boardID, NodeID: nodeID})
	if err != nil {
		return nil, mapErr(err)
	}
	if resp.Items == nil {
		return []model.ChecklistItem{}, nil
	}
	return resp.Items, nil
}

// --- focus ---

// SaveFocus stores a pomodoro state directly, bypassing node versioning.
func (c *Client) SaveFocus(ctx context.Context, boardID, nodeID uuid.UUID, st model.FocusState) (model.Node, error) {
	resp, err := c.rpc.SaveFocus(ctx, &boardv1.SaveFocusRequest{BoardID: boardID, NodeID: nodeID, State: st})
	if err != nil {
		return model.Node{}, mapErr(err)
	}
	return convert.FromWireNode(resp.Node)
}

func (c *Client) RollReward(ctx context.Context) (model.Collectible, error) {
	resp, err := c.rpc.RollReward(ctx, &boardv1.Empty{})
	if err != nil {
		return model.Collectible{}, mapErr(err)
	}
	return resp.Collectible, nil
}

func (c *Client) ListCollectibles(ctx context.Context) ([]model.Collectible, error) {
	resp, err := c.rpc.ListCollectibles(ctx, &boardv1.Empty{})
	if err != nil {
		return nil, mapErr(err)
	}
	return resp.Collectibles, nil
}

// --- realtime ---

func (c *Client) PublishCursor(ctx context.Context, cur model.Cursor) error {
	_, err := c.rpc.PublishCursor(ctx, &boardv1.PublishCursorRequest{BoardID: cur.BoardID, Name: cur.Name, X: cur.X, Y: cur.Y})
	return mapErr(err)
}

// Subscribe opens the full change feed of a board.
func (c *Client) Subscribe(ctx context.Context, boardID uuid.UUID) (session.Stream, error) {
	return c.SubscribeFiltered(ctx, boardID, nil, uuid.Nil)
}

// SubscribeFiltered opens a feed limited to entities (all when empty) and, for node-scoped
// rows, to one node.
func (c *Client) SubscribeFiltered(ctx context.Context, boardID uuid.UUID, entities []model.EntityKind, nodeID uuid.UUID) (session.Stream, error) {
	req := &boardv1.SubscribeRequest{BoardID: boardID, NodeID: nodeID}
	for _, e := range entities {
		req.Entities = append(req.Entities, string(e))
	}
	s, err := c.rpc.Subscribe(ctx, req)
	if err != nil {
		return nil, mapErr(err)
	}
	// The server sends headers once the subscription is attached; until then changes
	// could be missed.
	md, err := s.Header()
	if err != nil {
		return nil, mapErr(err)
	}
	if md == nil {
		// The call ended before headers; Recv carries its status.
		if _, err := s.Recv(); err != nil {
			return nil, mapErr(err)
		}
		return nil, errs.ErrUnavailable
	}
	return feed{s}, nil
}

type feed struct{ s boardv1.BrainBoard_SubscribeClient }

func (f feed) Recv() (model.Change, error) {
	ch, err := f.s.Recv()
	if err != nil {
		return model.Change{}, mapErr(err)
	}
	return *ch, nil
}
