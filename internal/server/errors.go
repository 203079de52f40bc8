package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nainya/timegraph/pkg/changefeed"
	"github.com/nainya/timegraph/pkg/journal"
	"github.com/nainya/timegraph/pkg/query"
	"github.com/nainya/timegraph/pkg/rdf"
	"github.com/nainya/timegraph/pkg/snapshot"
	"github.com/nainya/timegraph/pkg/temporal"
	"github.com/nainya/timegraph/pkg/timegraph"
	"github.com/nainya/timegraph/pkg/timeindex"
)

// toStatus maps domain errors onto gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, temporal.ErrInvalidTemporalValue),
		errors.Is(err, query.ErrSyntax),
		errors.Is(err, query.ErrUnsupportedQueryFormat),
		errors.Is(err, rdf.ErrMalformedTerm),
		errors.Is(err, changefeed.ErrInvalidEvent):
		code = codes.InvalidArgument
	case errors.Is(err, timeindex.ErrCorruptIndexData), errors.Is(err, journal.ErrCorrupted):
		code = codes.DataLoss
	case errors.Is(err, snapshot.ErrNoTimeIndexSet), errors.Is(err, timegraph.ErrAmbiguousGraph):
		code = codes.FailedPrecondition
	case errors.Is(err, snapshot.ErrIncoherence):
		code = codes.Internal
	case errors.Is(err, changefeed.ErrPropagation):
		code = codes.Aborted
	case errors.Is(err, timegraph.ErrReadOnly):
		code = codes.PermissionDenied
	case errors.Is(err, timegraph.ErrUnknownGraph):
		code = codes.NotFound
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
