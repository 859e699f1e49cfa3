package model

import "errors"

// Domain error kinds. The server boundary maps these to HTTP status codes;
// everywhere else they are checked with errors.Is.
var (
	// ErrInvalidInput covers empty text and unsupported languages with no fallback.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for an unknown intervention id.
	ErrNotFound = errors.New("intervention not found")

	// ErrAlreadyResolved is returned for any mutating transition on a
	// resolved case. Resolution is terminal: the transition fails loudly,
	// it never silently no-ops.
	ErrAlreadyResolved = errors.New("intervention already resolved")

	// ErrOwnershipMismatch is returned when a safety plan is attached by a
	// user who does not own the intervention.
	ErrOwnershipMismatch = errors.New("intervention does not belong to user")

	// ErrInvalidCrisisType is returned by Initiate for an unrecognized type.
	ErrInvalidCrisisType = errors.New("invalid crisis type")

	// ErrExtractorFailure means a signal extractor failed mid-analysis.
	// The whole analysis fails rather than returning partial indicators,
	// because under-counting indicators could mask risk.
	ErrExtractorFailure = errors.New("extractor failure")
)
