package restapi

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"pkt.systems/fleetwatch/schema"
)

// MachinesTable is a server-backed, paged machine collection implementing
// core.Table[schema.Machine]. It is safe for use under the tab manager's
// lock because all methods are internally synchronized.
type MachinesTable struct {
	client *Client

	mu    sync.Mutex
	items []schema.Machine
	total int64
	start int64
	limit int64
	text  string
}

// NewMachinesTable constructs an empty table over client. Call Reload to
// fetch the first page.
func NewMachinesTable(client *Client) *MachinesTable {
	return &MachinesTable{client: client, limit: 10}
}

// Len returns the number of machines on the current page.
func (t *MachinesTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// At returns the machine at i on the current page.
func (t *MachinesTable) At(i int) schema.Machine {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items[i]
}

// FindIndex returns the page index of the machine with the given id, or -1.
func (t *MachinesTable) FindIndex(id schema.EntityID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ReplaceAt overwrites the machine at i in place.
func (t *MachinesTable) ReplaceAt(i int, machine schema.Machine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[i] = machine
}

// RemoveAt splices the machine at i out of the page.
func (t *MachinesTable) RemoveAt(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items[:i], t.items[i+1:]...)
	if t.total > 0 {
		t.total--
	}
}

// Total returns the server-side machine count for the current filter.
func (t *MachinesTable) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Reload refetches the current page from the server.
func (t *MachinesTable) Reload(ctx context.Context) error {
	t.mu.Lock()
	start, limit, text := t.start, t.limit, t.text
	t.mu.Unlock()
	items, total, err := t.client.ListMachines(ctx, start, limit, text)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.items = items
	t.total = total
	t.mu.Unlock()
	return nil
}

// ApplyQuery replaces paging and filter state from URL query parameters:
// start, limit and text.
func (t *MachinesTable) ApplyQuery(q url.Values) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v := q.Get("start"); v != "" {
		if start, err := strconv.ParseInt(v, 10, 64); err == nil && start >= 0 {
			t.start = start
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.ParseInt(v, 10, 64); err == nil && limit > 0 {
			t.limit = limit
		}
	}
	if q.Has("text") {
		t.text = q.Get("text")
	}
}
