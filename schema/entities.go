package schema

import "time"

// Machine is a monitored host running one or more apps.
type Machine struct {
	ID          EntityID  `json:"id"`
	Address     string    `json:"address"`
	Hostname    string    `json:"hostname,omitempty"`
	AgentPort   int       `json:"agentPort,omitempty"`
	Authorized  bool      `json:"authorized,omitempty"`
	LastVisited time.Time `json:"lastVisitedAt,omitempty"`
	Apps        []App     `json:"apps,omitempty"`
}

// Label returns a human-friendly machine name: the hostname when known,
// otherwise the address.
func (m Machine) Label() string {
	if m.Hostname != "" {
		return m.Hostname
	}
	return m.Address
}

// App is a DHCP or DNS server installation on a machine.
type App struct {
	ID        EntityID `json:"id"`
	Name      string   `json:"name"`
	Type      AppType  `json:"type"`
	Version   string   `json:"version,omitempty"`
	MachineID EntityID `json:"machineId,omitempty"`
	Daemons   []Daemon `json:"daemons,omitempty"`
}

// Daemon is a single process managed by an app.
type Daemon struct {
	ID      EntityID `json:"id"`
	Name    string   `json:"name"`
	PID     int      `json:"pid,omitempty"`
	Active  bool     `json:"active"`
	Version string   `json:"version,omitempty"`
}

// User is an operator account on the monitoring server.
type User struct {
	ID       EntityID `json:"id"`
	Login    string   `json:"login"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Lastname string   `json:"lastname,omitempty"`
}
