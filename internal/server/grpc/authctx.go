package grpcserver

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/brainboard/internal/api/boardv1"
	"github.com/and161185/brainboard/internal/service"
)

type ctxKey string

const userIDKey ctxKey = "bb.userID"

// WithUserID stores authenticated user ID in context.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches user ID from context.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// PublicMethods need no access token.
var PublicMethods = map[string]bool{
	boardv1.FullMethod("Register"): true,
	boardv1.FullMethod("Login"):    true,
}

// Authenticator verifies bearer tokens and stores the caller in the context.
type Authenticator struct {
	signKey []byte
	public  map[string]bool
}

// NewAuthenticator builds an Authenticator. Methods in public skip verification.
func NewAuthenticator(signKey []byte, public map[string]bool) *Authenticator {
	return &Authenticator{signKey: signKey, public: public}
}

func (a *Authenticator) authenticate(ctx context.Context) (context.Context, error) {
	tok, ok := bearerTokenFromMD(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	id, err := service.ParseAccessToken(a.signKey, tok)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return WithUserID(ctx, id), nil
}

// Unary returns the unary auth interceptor.
func (a *Authenticator) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if a.public[info.FullMethod] {
			return next(ctx, req)
		}
		ctx, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// Stream returns the stream auth interceptor.
func (a *Authenticator) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		if a.public[info.FullMethod] {
			return next(srv, ss)
		}
		ctx, err := a.authenticate(ss.Context())
		if err != nil {
			return err
		}
		return next(srv, &ctxStream{ServerStream: ss, ctx: ctx})
	}
}

// ctxStream overrides the context of a server stream.
type ctxStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *ctxStream) Context() context.Context { return s.ctx }

// bearerTokenFromMD extracts "authorization: Bearer <JWT>".
func bearerTokenFromMD(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}
