package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/validation"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps a domain error onto a gRPC status carrying a human-readable message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var ve *validation.Error
	if errors.As(err, &ve) {
		return grpcstatus.Error(codes.InvalidArgument, ve.Err.Error())
	}
	if qe, ok := remote.AsQueryError(err); ok {
		return grpcstatus.Error(queryCode(qe), qe.Data.Message)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	}
	return grpcstatus.Error(codes.Internal, err.Error())
}

func queryCode(qe *remote.QueryError) codes.Code {
	switch {
	case qe.Status == http.StatusNotFound:
		return codes.NotFound
	case qe.Status == http.StatusUnauthorized:
		return codes.Unauthenticated
	case qe.Status == http.StatusForbidden:
		return codes.PermissionDenied
	case qe.Status == 0 || remote.DefaultRetryPolicy.Retryable(qe):
		return codes.Unavailable
	case qe.Status >= 500:
		return codes.Internal
	default:
		return codes.FailedPrecondition
	}
}

func invalid(msg string) error {
	return grpcstatus.Error(codes.InvalidArgument, msg)
}
