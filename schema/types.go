package schema

// EntityID identifies a monitored entity (machine, app, user).
type EntityID int64

// TransactionID identifies a server-side create/update transaction.
type TransactionID int64

// AppType identifies the daemon software an app runs.
type AppType string

const (
	// AppTypeKea identifies a Kea DHCP app.
	AppTypeKea AppType = "kea"
	// AppTypeBind9 identifies a BIND 9 DNS app.
	AppTypeBind9 AppType = "bind9"
)

// TabType describes what a tab displays.
type TabType string

const (
	// TabTypeList is the always-present list tab.
	TabTypeList TabType = "list"
	// TabTypeDisplay shows a single entity.
	TabTypeDisplay TabType = "display"
	// TabTypeEdit shows an entity with an open edit form.
	TabTypeEdit TabType = "edit"
	// TabTypeNew shows a create form for a not-yet-existing entity.
	TabTypeNew TabType = "new"
)

// NewEntitySentinel is the reserved tab value for the create-new-entity tab.
// Valid entity ids are strictly greater; the list tab value is strictly lower.
const NewEntitySentinel EntityID = 0

// ListTabValue is the tab value of the implicit list tab. It sits below the
// sentinel so close guards never remove it.
const ListTabValue EntityID = -1

// StreamName identifies a logical stream multiplexed over the SSE connection.
type StreamName string

const (
	// StreamConnectivity carries machine connectivity changes.
	StreamConnectivity StreamName = "connectivity"
	// StreamRegistration carries machine registration changes.
	StreamRegistration StreamName = "registration"
	// StreamMessage carries filtered log messages.
	StreamMessage StreamName = "message"
	// StreamAll marks events addressed to every subscriber, such as the
	// link-down sentinel.
	StreamAll StreamName = "all"
)

// EventLevel grades the severity of a domain event.
type EventLevel int64

const (
	// LevelInfo is a routine event.
	LevelInfo EventLevel = 0
	// LevelWarning is a suspicious event.
	LevelWarning EventLevel = 1
	// LevelError is a failure event.
	LevelError EventLevel = 2
)
