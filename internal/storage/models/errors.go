package models

import "errors"

var (
	// ErrNotFound is returned when a referenced article, analysis,
	// comparison or user does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input that the caller can correct.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyExists is returned by the store when a unique
	// constraint rejects an insert.
	ErrAlreadyExists = errors.New("already exists")

	// ErrExternalService means the analysis model call-out could not
	// be completed.
	ErrExternalService = errors.New("external service unavailable")

	// ErrInvalidResponse means the call-out succeeded but returned
	// content that could not be parsed.
	ErrInvalidResponse = errors.New("invalid response from analysis model")
)
