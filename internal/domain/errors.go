package domain

import "errors"

var (
	// ErrDefinitionNotFound is returned when a test definition does not exist. It is terminal for a session.
	ErrDefinitionNotFound = errors.New("test definition not found")
	// ErrMalformedDefinition wraps every validation problem found in a definition.
	ErrMalformedDefinition = errors.New("malformed test definition")
	// ErrInvalidSnapshot marks a stored snapshot that cannot be resumed.
	ErrInvalidSnapshot = errors.New("invalid attempt snapshot")
	// ErrSessionNotFound is returned when no live session exists for a user and test.
	ErrSessionNotFound = errors.New("attempt session not found")
	// ErrSessionNotActive rejects mutations outside the Active state.
	ErrSessionNotActive = errors.New("attempt session is not active")
	// ErrSubmissionInFlight is returned to a second submit while one is outstanding.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrAlreadySubmitted is returned once the attempt record has been written.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrSubmissionFailed wraps a failed write of the attempt record.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrAttemptNotFound indicates an unknown attempt record id.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrInvalidOption indicates a selected option outside the question's options.
	ErrInvalidOption = errors.New("invalid option index")
	// ErrInvalidPosition indicates a jump target outside the test.
	ErrInvalidPosition = errors.New("invalid question position")
)
