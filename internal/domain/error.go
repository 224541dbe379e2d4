package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrForbidden          = errors.New("actor does not own the target entity")
	ErrMalformedEvent     = errors.New("malformed processor event")
	ErrRefundNotPending   = errors.New("refund request is not pending")
	ErrAlreadyRefunded    = errors.New("target entitlement is already refunded")
	ErrInvalidExecContext = errors.New("invalid query execution context")

	// Infrastructure-facing errors surfaced by repositories
	ErrOperationFailed = errors.New("operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")
)
