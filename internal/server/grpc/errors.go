package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/brainboard/internal/errs"
)

// toStatus maps domain errors to gRPC statuses. FailedPrecondition carries the bare
// sentinel text so clients can tell the three precondition failures apart.
func toStatus(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrVersionConflict):
		return status.Error(codes.FailedPrecondition, errs.ErrVersionConflict.Error())
	case errors.Is(err, errs.ErrInviteExpired):
		return status.Error(codes.FailedPrecondition, errs.ErrInviteExpired.Error())
	case errors.Is(err, errs.ErrDanglingEdge):
		return status.Error(codes.FailedPrecondition, errs.ErrDanglingEdge.Error())
	case errors.Is(err, errs.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "bad credentials")
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}
