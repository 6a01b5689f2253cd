package schema

import "errors"

var (
	// ErrInvalidEntityID indicates an entity id that cannot exist.
	ErrInvalidEntityID = errors.New("invalid entity id")
	// ErrEntityNotFound indicates a requested entity could not be resolved.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrTabsNotClosable indicates the manager is configured with fixed tabs.
	ErrTabsNotClosable = errors.New("tabs are not closable")
	// ErrNoForm indicates an operation required a form tab without one.
	ErrNoForm = errors.New("tab has no form")
	// ErrFormNotFound indicates no open tab owns the given transaction.
	ErrFormNotFound = errors.New("form not found")
	// ErrInvalidRoute indicates a route segment that is not an entity id.
	ErrInvalidRoute = errors.New("invalid route segment")
	// ErrStreamClosed indicates the event stream service has been closed.
	ErrStreamClosed = errors.New("event stream closed")
	// ErrMissingProvider indicates the manager has no entity provider.
	ErrMissingProvider = errors.New("entity provider not configured")
	// ErrMissingFormFactory indicates a form was requested without a factory.
	ErrMissingFormFactory = errors.New("form factory not configured")
)
