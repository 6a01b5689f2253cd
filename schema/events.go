package schema

import (
	"strings"
	"time"
)

// EventFilter narrows the message stream. Zero-valued fields are omitted from
// the connection URL. DaemonType travels on the wire as "daemonName".
type EventFilter struct {
	Machine    int64  `json:"machine,omitempty"`
	AppType    string `json:"appType,omitempty"`
	DaemonType string `json:"daemonType,omitempty"`
	User       string `json:"user,omitempty"`
	Level      int64  `json:"level,omitempty"`
}

// Normalize trims surrounding whitespace from the string fields.
func (f EventFilter) Normalize() EventFilter {
	f.AppType = strings.TrimSpace(f.AppType)
	f.DaemonType = strings.TrimSpace(f.DaemonType)
	f.User = strings.TrimSpace(f.User)
	return f
}

// Equal reports structural equality of two filters.
func (f EventFilter) Equal(other EventFilter) bool {
	return f == other
}

// IsZero reports whether no field is set.
func (f EventFilter) IsZero() bool {
	return f == EventFilter{}
}

// DomainEvent is the JSON payload carried by a named SSE event.
type DomainEvent struct {
	ID        EntityID   `json:"id,omitempty"`
	Text      string     `json:"text"`
	Level     EventLevel `json:"level,omitempty"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	Machine   *Machine   `json:"machine,omitempty"`
	App       *App       `json:"app,omitempty"`
	Daemon    *Daemon    `json:"daemon,omitempty"`
	User      *User      `json:"user,omitempty"`
}

// StreamEvent pairs a logical stream name with its decoded payload. Event is
// nil exactly when the transport link went down; Stream is then StreamAll.
type StreamEvent struct {
	Stream StreamName
	Event  *DomainEvent
}

// LinkDown reports whether the event is the transport-loss sentinel.
func (e StreamEvent) LinkDown() bool {
	return e.Event == nil
}
