package schema

// TabEventType describes tab lifecycle or state changes.
type TabEventType string

const (
	// TabEventOpened indicates a tab was opened.
	TabEventOpened TabEventType = "opened"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventActivated indicates a tab became active.
	TabEventActivated TabEventType = "activated"
	// TabEventUpdated indicates a tab's entity or title changed.
	TabEventUpdated TabEventType = "updated"
)

// TabEvent represents a change to a tab or the tab set.
type TabEvent struct {
	Type      TabEventType
	Tab       TabSnapshot
	ActiveTab EntityID
}

// FeedbackSeverity grades user-facing feedback messages.
type FeedbackSeverity string

const (
	// FeedbackInfo is an informational message.
	FeedbackInfo FeedbackSeverity = "info"
	// FeedbackError is an error message. Errors never abort the session.
	FeedbackError FeedbackSeverity = "error"
)

// FeedbackEvent is a user-facing message emitted when an operation fails in a
// recoverable way (entity resolution, route parsing, transaction cleanup).
type FeedbackEvent struct {
	Severity FeedbackSeverity
	Summary  string
	Detail   string
}
