package analysis

import (
	"errors"
	"fmt"
)

// NotFoundMessage is reported to clients when a page has no transcript.
const NotFoundMessage = "Transcript not found on the page. Please check the URL or try another source."

var (
	// ErrInvalidInput is returned when a required request field is missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTranscriptNotFound is returned when neither extraction attempt found
	// a transcript. It is never cached as an analysis result.
	ErrTranscriptNotFound = errors.New(NotFoundMessage)
)

// ServiceError reports a failure of a downstream service (browser or
// language model) while computing a result.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
