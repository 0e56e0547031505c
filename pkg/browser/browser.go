// Package browser abstracts the browser-automation driver used to read
// transcript pages. A Session is one browser window with one or more
// browsing contexts (tabs); exactly one context is active at a time.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no element matches a selector before the
	// caller's deadline.
	ErrNotFound = errors.New("no matching element")

	// ErrUnknownContext is returned by SwitchTo for a handle that is not open.
	ErrUnknownContext = errors.New("unknown browsing context")

	// ErrNoActiveContext is returned when an operation runs after the active
	// context was closed and no other context was switched to.
	ErrNoActiveContext = errors.New("no active browsing context")

	// ErrSessionClosed is returned by any operation on a closed session.
	ErrSessionClosed = errors.New("browser session closed")
)

// Browser creates isolated sessions. Sessions are never shared between requests.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session drives a single browser window. Element lookups wait for at least one
// match until ctx is done; the caller bounds the wait with a deadline.
type Session interface {
	// Navigate loads rawURL in the active context.
	Navigate(ctx context.Context, rawURL string) error
	// Texts returns the text of every element matching the CSS selector.
	Texts(ctx context.Context, selector string) ([]string, error)
	// Attribute returns an attribute of the first element matching the CSS
	// selector, or "" if the element has no such attribute.
	Attribute(ctx context.Context, selector, name string) (string, error)
	// HTML returns the serialized document of the active context.
	HTML(ctx context.Context) (string, error)

	// Handle identifies the active context.
	Handle() string
	// OpenContext opens a new browsing context and makes it active.
	OpenContext(ctx context.Context) (string, error)
	// CloseContext closes the active context. Until SwitchTo is called there is
	// no active context.
	CloseContext(ctx context.Context) error
	// SwitchTo activates an open context.
	SwitchTo(handle string) error
	// Handles lists the open contexts.
	Handles() []string

	// Close tears down every context and the session itself.
	Close() error
}
