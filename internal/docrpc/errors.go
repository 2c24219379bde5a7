package docrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
)

var (
	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrForeignStore is returned when a request names a connect string the
	// server is not allowed to open.
	ErrForeignStore = errors.New("connect string not served")
	// ErrRemote wraps failures the server reported without a known cause.
	ErrRemote = errors.New("document store error")
)

// ToStatusError maps document store errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, docstore.ErrReserved):
		return codes.PermissionDenied
	case errors.Is(err, docstore.ErrInvalidName),
		errors.Is(err, docstore.ErrUnsupportedScheme),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrForeignStore):
		return codes.InvalidArgument
	case errors.Is(err, docstore.ErrClosed):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// failureStatus builds the status for a failed call. The failure envelope
// rides along as a status detail so clients see the same message a
// successful call would have carried in its error field.
func failureStatus(key, prefix string, err error) error {
	msg := fmt.Sprintf("%s: %v", prefix, err)
	st := status.New(codeOf(err), msg)
	if detailed, derr := st.WithDetails(failure(key, msg)); derr == nil {
		st = detailed
	}
	return st.Err()
}

// fromStatusError turns a status returned by the server back into an error
// matching the docstore sentinels.
func fromStatusError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	msg := st.Message()
	for _, d := range st.Details() {
		if env, ok := d.(*structpb.Struct); ok {
			if e := env.GetFields()[fieldError].GetStringValue(); e != "" {
				msg = e
			}
		}
	}
	var sentinel error
	switch st.Code() {
	case codes.NotFound:
		sentinel = docstore.ErrNotFound
	case codes.PermissionDenied:
		sentinel = docstore.ErrReserved
	case codes.InvalidArgument:
		sentinel = ErrInvalidRequest
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w", msg, sentinel)
}
