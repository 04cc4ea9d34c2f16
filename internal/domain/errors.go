package domain

import "errors"

// Sentinel errors. Infrastructure and usecases wrap these with %w; the API
// layer maps them to HTTP status codes in one place.
var (
	ErrUnauthorized = errors.New("no resolvable user identity")
	ErrForbidden    = errors.New("resource belongs to another user")
	ErrTaskNotFound = errors.New("task not found or expired")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrQuotaExceeded   = errors.New("address quota exceeded")

	// ErrGenerationExhausted means the attempt budget produced not a single
	// unique address; retrying the same chunk would spin forever.
	ErrGenerationExhausted = errors.New("address generation exhausted attempt budget")

	ErrStorageFailure = errors.New("durable storage failure")
)
