package handler

import (
	"errors"

	"github.com/ogurasousui/personnel/internal/core/personnel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, personnel.ErrInvalidDateRange),
		errors.Is(err, personnel.ErrInvalidDateArrive),
		errors.Is(err, personnel.ErrInvalidNom),
		errors.Is(err, personnel.ErrInvalidAdministrator):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, personnel.ErrCannotRemoveRoot),
		errors.Is(err, personnel.ErrLigueNotEmpty),
		errors.Is(err, personnel.ErrEmployeNotInLigue):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, personnel.ErrLigueAlreadyExists), errors.Is(err, personnel.ErrRootAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, personnel.ErrLigueNotFound), errors.Is(err, personnel.ErrEmployeNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, personnel.ErrPersistence):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
