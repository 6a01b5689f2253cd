package schema

// TabSnapshot is a read-only view of tab state for transports and sinks.
type TabSnapshot struct {
	Value         EntityID
	Title         string
	Icon          string
	Type          TabType
	Active        bool
	Submitted     bool
	TransactionID TransactionID
}

// SessionSnapshot captures a tab session for persistence: the order of open
// entity tabs, the active tab, and the message filter in effect.
type SessionSnapshot struct {
	Order  []EntityID  `json:"order"`
	Active EntityID    `json:"active"`
	Filter EventFilter `json:"filter"`
	Route  string      `json:"route,omitempty"`
}
