package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/brainboard/internal/errs"
)

// mapErr turns a gRPC status into the matching domain sentinel so callers and the outbox
// can classify failures with errors.Is.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		sentinel = errs.ErrUnavailable
	case codes.ResourceExhausted:
		sentinel = errs.ErrRateLimited
	case codes.NotFound:
		sentinel = errs.ErrNotFound
	case codes.AlreadyExists:
		sentinel = errs.ErrAlreadyExists
	case codes.InvalidArgument:
		sentinel = errs.ErrInvalidArgument
	case codes.Unauthenticated:
		sentinel = errs.ErrUnauthorized
	case codes.PermissionDenied:
		sentinel = errs.ErrForbidden
	case codes.FailedPrecondition:
		switch st.Message() {
		case errs.ErrInviteExpired.Error():
			sentinel = errs.ErrInviteExpired
		case errs.ErrDanglingEdge.Error():
			sentinel = errs.ErrDanglingEdge
		default:
			sentinel = errs.ErrVersionConflict
		}
	case codes.Canceled:
		return context.Canceled
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
