package boardv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/brainboard/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "brainboard.v1.BrainBoard"

// FullMethod returns "/brainboard.v1.BrainBoard/<name>".
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// BrainBoardServer is implemented by the server.
type BrainBoardServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)

	CreateBoard(context.Context, *CreateBoardRequest) (*BoardResponse, error)
	GetBoard(context.Context, *GetBoardRequest) (*GetBoardResponse, error)
	ListBoards(context.Context, *Empty) (*ListBoardsResponse, error)
	CreateInvite(context.Context, *CreateInviteRequest) (*InviteResponse, error)
	ListInvites(context.Context, *ListInvitesRequest) (*ListInvitesResponse, error)
	RevokeInvite(context.Context, *RevokeInviteRequest) (*Empty, error)
	AcceptInvite(context.Context, *AcceptInviteRequest) (*AcceptInviteResponse, error)

	UpsertNode(context.Context, *UpsertNodeRequest) (*NodeResponse, error)
	DeleteNode(context.Context, *EntityRequest) (*Empty, error)
	UpsertEdge(context.Context, *UpsertEdgeRequest) (*EdgeResponse, error)
	DeleteEdge(context.Context, *EntityRequest) (*Empty, error)
	CreateDrawing(context.Context, *CreateDrawingRequest) (*DrawingResponse, error)
	DeleteDrawing(context.Context, *EntityRequest) (*Empty, error)
	AnalyzeNode(context.Context, *AnalyzeNodeRequest) (*NodeResponse, error)

	UpsertItems(context.Context, *UpsertItemsRequest) (*ItemsResponse, error)
	DeleteItem(context.Context, *DeleteItemRequest) (*Empty, error)
	ListItems(context.Context, *ListItemsRequest) (*ItemsResponse, error)

	SaveFocus(context.Context, *SaveFocusRequest) (*NodeResponse, error)
	RollReward(context.Context, *Empty) (*CollectibleResponse, error)
	ListCollectibles(context.Context, *Empty) (*ListCollectiblesResponse, error)

	PublishCursor(context.Context, *PublishCursorRequest) (*Empty, error)
	Subscribe(*SubscribeRequest, BrainBoard_SubscribeServer) error
}

// UnimplementedBrainBoardServer answers every call with codes.Unimplemented. Embed it to
// implement a subset of the service.
type UnimplementedBrainBoardServer struct{}

func (UnimplementedBrainBoardServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedBrainBoardServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedBrainBoardServer) CreateBoard(context.Context, *CreateBoardRequest) (*BoardResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateBoard not implemented")
}
func (UnimplementedBrainBoardServer) GetBoard(context.Context, *GetBoardRequest) (*GetBoardResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBoard not implemented")
}
func (UnimplementedBrainBoardServer) ListBoards(context.Context, *Empty) (*ListBoardsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListBoards not implemented")
}
func (UnimplementedBrainBoardServer) CreateInvite(context.Context, *CreateInviteRequest) (*InviteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateInvite not implemented")
}
func (UnimplementedBrainBoardServer) ListInvites(context.Context, *ListInvitesRequest) (*ListInvitesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListInvites not implemented")
}
func (UnimplementedBrainBoardServer) RevokeInvite(context.Context, *RevokeInviteRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method RevokeInvite not implemented")
}
func (UnimplementedBrainBoardServer) AcceptInvite(context.Context, *AcceptInviteRequest) (*AcceptInviteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AcceptInvite not implemented")
}
func (UnimplementedBrainBoardServer) UpsertNode(context.Context, *UpsertNodeRequest) (*NodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpsertNode not implemented")
}
func (UnimplementedBrainBoardServer) DeleteNode(context.Context, *EntityRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteNode not implemented")
}
func (UnimplementedBrainBoardServer) UpsertEdge(context.Context, *UpsertEdgeRequest) (*EdgeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpsertEdge not implemented")
}
func (UnimplementedBrainBoardServer) DeleteEdge(context.Context, *EntityRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteEdge not implemented")
}
func (UnimplementedBrainBoardServer) CreateDrawing(context.Context, *CreateDrawingRequest) (*DrawingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateDrawing not implemented")
}
func (UnimplementedBrainBoardServer) DeleteDrawing(context.Context, *EntityRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteDrawing not implemented")
}
func (UnimplementedBrainBoardServer) AnalyzeNode(context.Context, *AnalyzeNodeRequest) (*NodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AnalyzeNode not implemented")
}
func (UnimplementedBrainBoardServer) UpsertItems(context.Context, *UpsertItemsRequest) (*ItemsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpsertItems not implemented")
}
func (UnimplementedBrainBoardServer) DeleteItem(context.Context, *DeleteItemRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteItem not implemented")
}
func (UnimplementedBrainBoardServer) ListItems(context.Context, *ListItemsRequest) (*ItemsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListItems not implemented")
}
func (UnimplementedBrainBoardServer) SaveFocus(context.Context, *SaveFocusRequest) (*NodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SaveFocus not implemented")
}
func (UnimplementedBrainBoardServer) RollReward(context.Context, *Empty) (*CollectibleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RollReward not implemented")
}
func (UnimplementedBrainBoardServer) ListCollectibles(context.Context, *Empty) (*ListCollectiblesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListCollectibles not implemented")
}
func (UnimplementedBrainBoardServer) PublishCursor(context.Context, *PublishCursorRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method PublishCursor not implemented")
}
func (UnimplementedBrainBoardServer) Subscribe(*SubscribeRequest, BrainBoard_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}

// BrainBoard_SubscribeServer is the server side of the change feed.
type BrainBoard_SubscribeServer interface {
	Send(*model.Change) error
	grpc.ServerStream
}

type subscribeServer struct{ grpc.ServerStream }

func (s *subscribeServer) Send(ch *model.Change) error { return s.ServerStream.SendMsg(ch) }

// unary builds a method descriptor that decodes Req and dispatches through the interceptor chain.
func unary[Req, Resp any](name string, call func(BrainBoardServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BrainBoardServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BrainBoardServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BrainBoardServer).Subscribe(in, &subscribeServer{stream})
}

// ServiceDesc describes the BrainBoard service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BrainBoardServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", BrainBoardServer.Register),
		unary("Login", BrainBoardServer.Login),
		unary("CreateBoard", BrainBoardServer.CreateBoard),
		unary("GetBoard", BrainBoardServer.GetBoard),
		unary("ListBoards", BrainBoardServer.ListBoards),
		unary("CreateInvite", BrainBoardServer.CreateInvite),
		unary("ListInvites", BrainBoardServer.ListInvites),
		unary("RevokeInvite", BrainBoardServer.RevokeInvite),
		unary("AcceptInvite", BrainBoardServer.AcceptInvite),
		unary("UpsertNode", BrainBoardServer.UpsertNode),
		unary("DeleteNode", BrainBoardServer.DeleteNode),
		unary("UpsertEdge", BrainBoardServer.UpsertEdge),
		unary("DeleteEdge", BrainBoardServer.DeleteEdge),
		unary("CreateDrawing", BrainBoardServer.CreateDrawing),
		unary("DeleteDrawing", BrainBoardServer.DeleteDrawing),
		unary("AnalyzeNode", BrainBoardServer.AnalyzeNode),
		unary("UpsertItems", BrainBoardServer.UpsertItems),
		unary("DeleteItem", BrainBoardServer.DeleteItem),
		unary("ListItems", BrainBoardServer.ListItems),
		unary("SaveFocus", BrainBoardServer.SaveFocus),
		unary("RollReward", BrainBoardServer.RollReward),
		unary("ListCollectibles", BrainBoardServer.ListCollectibles),
		unary("PublishCursor", BrainBoardServer.PublishCursor),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
	Metadata: "brainboard/v1/brainboard.cbor",
}

// RegisterBrainBoardServer registers srv on s.
func RegisterBrainBoardServer(s grpc.ServiceRegistrar, srv BrainBoardServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client is the stub of the BrainBoard service. Every call uses the CBOR codec.
type Client struct {
	cc   grpc.ClientConnInterface
	opts []grpc.CallOption
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, opts: []grpc.CallOption{grpc.CallContentSubtype(CodecName)}}
}

func invoke[Resp any](ctx context.Context, c *Client, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := c.cc.Invoke(ctx, FullMethod(name), in, out, append(c.opts, opts...)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c, "Register", in, opts)
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c, "Login", in, opts)
}

func (c *Client) CreateBoard(ctx context.Context, in *CreateBoardRequest, opts ...grpc.CallOption) (*BoardResponse, error) {
	return invoke[BoardResponse](ctx, c, "CreateBoard", in, opts)
}

func (c *Client) GetBoard(ctx context.Context, in *GetBoardRequest, opts ...grpc.CallOption) (*GetBoardResponse, error) {
	return invoke[GetBoardResponse](ctx, c, "GetBoard", in, opts)
}

func (c *Client) ListBoards(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListBoardsResponse, error) {
	return invoke[ListBoardsResponse](ctx, c, "ListBoards", in, opts)
}

func (c *Client) CreateInvite(ctx context.Context, in *CreateInviteRequest, opts ...grpc.CallOption) (*InviteResponse, error) {
	return invoke[InviteResponse](ctx, c, "CreateInvite", in, opts)
}

func (c *Client) ListInvites(ctx context.Context, in *ListInvitesRequest, opts ...grpc.CallOption) (*ListInvitesResponse, error) {
	return invoke[ListInvitesResponse](ctx, c, "ListInvites", in, opts)
}

func (c *Client) RevokeInvite(ctx context.Context, in *RevokeInviteRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "RevokeInvite", in, opts)
}

func (c *Client) AcceptInvite(ctx context.Context, in *AcceptInviteRequest, opts ...grpc.CallOption) (*AcceptInviteResponse, error) {
	return invoke[AcceptInviteResponse](ctx, c, "AcceptInvite", in, opts)
}

func (c *Client) UpsertNode(ctx context.Context, in *UpsertNodeRequest, opts ...grpc.CallOption) (*NodeResponse, error) {
	return invoke[NodeResponse](ctx, c, "UpsertNode", in, opts)
}

func (c *Client) DeleteNode(ctx context.Context, in *EntityRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteNode", in, opts)
}

func (c *Client) UpsertEdge(ctx context.Context, in *UpsertEdgeRequest, opts ...grpc.CallOption) (*EdgeResponse, error) {
	return invoke[EdgeResponse](ctx, c, "UpsertEdge", in, opts)
}

func (c *Client) DeleteEdge(ctx context.Context, in *EntityRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteEdge", in, opts)
}

func (c *Client) CreateDrawing(ctx context.Context, in *CreateDrawingRequest, opts ...grpc.CallOption) (*DrawingResponse, error) {
	return invoke[DrawingResponse](ctx, c, "CreateDrawing", in, opts)
}

func (c *Client) DeleteDrawing(ctx context.Context, in *EntityRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteDrawing", in, opts)
}

func (c *Client) AnalyzeNode(ctx context.Context, in *AnalyzeNodeRequest, opts ...grpc.CallOption) (*NodeResponse, error) {
	return invoke[NodeResponse](ctx, c, "AnalyzeNode", in, opts)
}

func (c *Client) UpsertItems(ctx context.Context, in *UpsertItemsRequest, opts ...grpc.CallOption) (*ItemsResponse, error) {
	return invoke[ItemsResponse](ctx, c, "UpsertItems", in, opts)
}

func (c *Client) DeleteItem(ctx context.Context, in *DeleteItemRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteItem", in, opts)
}

func (c *Client) ListItems(ctx context.Context, in *ListItemsRequest, opts ...grpc.CallOption) (*ItemsResponse, error) {
	return invoke[ItemsResponse](ctx, c, "ListItems", in, opts)
}

func (c *Client) SaveFocus(ctx context.Context, in *SaveFocusRequest, opts ...grpc.CallOption) (*NodeResponse, error) {
	return invoke[NodeResponse](ctx, c, "SaveFocus", in, opts)
}

func (c *Client) RollReward(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*CollectibleResponse, error) {
	return invoke[CollectibleResponse](ctx, c, "RollReward", in, opts)
}

func (c *Client) ListCollectibles(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListCollectiblesResponse, error) {
	return invoke[ListCollectiblesResponse](ctx, c, "ListCollectibles", in, opts)
}

func (c *Client) PublishCursor(ctx context.Context, in *PublishCursorRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "PublishCursor", in, opts)
}

// BrainBoard_SubscribeClient receives the change feed.
type BrainBoard_SubscribeClient interface {
	Recv() (*model.Change, error)
	grpc.ClientStream
}

type subscribeClient struct{ grpc.ClientStream }

func (x *subscribeClient) Recv() (*model.Change, error) {
	m := new(model.Change)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Subscribe opens the change feed of a board. Cancel ctx to close it.
func (c *Client) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (BrainBoard_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod("Subscribe"), append(c.opts, opts...)...)
	if err != nil {
		return nil, err
	}
	x := &subscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
