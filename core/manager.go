package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"pkt.systems/fleetwatch/internal/logx"
	"pkt.systems/fleetwatch/schema"
)

// Manager owns a session of entity tabs: the implicit list tab, display tabs
// bound to entities, and New/Edit tabs carrying form transactions. All
// mutation happens under one mutex; collaborator calls (entity provider,
// transaction deletes, table reloads) run outside it.
type Manager[E any] struct {
	cfg       Config
	provider  EntityProvider[E]
	forms     FormFactory
	coll      Collection[E]
	table     Table[E]
	accessors Accessors[E]
	titleFor  func(E) string
	createDel func(ctx context.Context, txn schema.TransactionID) error
	updateDel func(ctx context.Context, id schema.EntityID, txn schema.TransactionID) error
	sink      Sink
	log       pslog.Logger

	mu     sync.Mutex
	tabs   []*tab[E]
	active int
}

// NewManager constructs a manager with the list tab open and active. With
// AutoOpenAll set, every collection entity gets a display tab and the first
// one becomes active.
func NewManager[E any](cfg Config, deps Deps[E]) (*Manager[E], error) {
	cfg = normalizeConfig(cfg)
	if deps.Accessors.ID == nil {
		return nil, fmt.Errorf("id accessor is required")
	}
	coll := deps.Collection
	if coll == nil && deps.Table != nil {
		coll = deps.Table
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	m := &Manager[E]{
		cfg:       cfg,
		provider:  deps.Provider,
		forms:     deps.Forms,
		coll:      coll,
		table:     deps.Table,
		accessors: deps.Accessors,
		titleFor:  deps.TitleProvider,
		createDel: deps.CreateDelete,
		updateDel: deps.UpdateDelete,
		sink:      deps.Sink,
		log:       logger,
		tabs:      []*tab[E]{newListTab[E](cfg.ListTabTitle)},
	}
	if cfg.AutoOpenAll && coll != nil {
		for i := 0; i < coll.Len(); i++ {
			entity := coll.At(i)
			m.tabs = append(m.tabs, newDisplayTab(m.accessors.ID(entity), m.tabTitle(entity), m.accessors.icon(entity), entity))
		}
		if len(m.tabs) > 1 {
			m.active = 1
		}
	}
	return m, nil
}

func (m *Manager[E]) tabTitle(entity E) string {
	if m.titleFor != nil {
		return m.titleFor(entity)
	}
	return m.accessors.title(entity)
}

// OpenTab opens or activates the tab for id. The sentinel id opens the
// new-entity tab with fresh form state. Unknown ids resolve against the
// collection first (unless ForceAsyncFetch), then the entity provider; on
// failure a feedback message is emitted and the list tab becomes active.
func (m *Manager[E]) OpenTab(ctx context.Context, id schema.EntityID) (schema.TabSnapshot, error) {
	log := logx.WithEntity(ctx, id)

	m.mu.Lock()
	if current := m.tabs[m.active]; current.value == id {
		snap := current.Snapshot(true)
		m.mu.Unlock()
		log.Trace("tab open noop", "reason", "already active")
		return snap, nil
	}
	if idx := m.indexOf(id); idx >= 0 {
		event := m.activateLocked(idx)
		snap := m.tabs[idx].Snapshot(true)
		m.mu.Unlock()
		m.emitTab(event)
		log.Debug("tab activated")
		return snap, nil
	}
	if id == schema.NewEntitySentinel {
		if m.forms == nil {
			m.mu.Unlock()
			log.Warn("tab open failed", "err", schema.ErrMissingFormFactory)
			return schema.TabSnapshot{}, schema.ErrMissingFormFactory
		}
		t := newEntityTab[E](m.forms(), m.cfg.NewTabTitle)
		m.tabs = append(m.tabs, t)
		event := m.activateLocked(len(m.tabs) - 1)
		event.Type = schema.TabEventOpened
		snap := t.Snapshot(true)
		m.mu.Unlock()
		m.emitTab(event)
		log.Info("tab opened", "type", schema.TabTypeNew)
		return snap, nil
	}
	if id < schema.NewEntitySentinel {
		m.mu.Unlock()
		m.failOpen(log, id, schema.ErrInvalidEntityID)
		return schema.TabSnapshot{}, schema.ErrInvalidEntityID
	}

	var entity E
	resolved := false
	if !m.cfg.ForceAsyncFetch && m.coll != nil {
		if idx := m.coll.FindIndex(id); idx >= 0 {
			entity = m.coll.At(idx)
			resolved = true
		}
	}
	m.mu.Unlock()

	if !resolved {
		if m.provider == nil {
			m.failOpen(log, id, schema.ErrMissingProvider)
			return schema.TabSnapshot{}, schema.ErrMissingProvider
		}
		fetched, err := m.provider(ctx, id)
		if err != nil {
			m.failOpen(log, id, err)
			return schema.TabSnapshot{}, err
		}
		entity = fetched
	}

	m.mu.Lock()
	// A concurrent open may have won the race while the provider ran.
	if idx := m.indexOf(id); idx >= 0 {
		event := m.activateLocked(idx)
		snap := m.tabs[idx].Snapshot(true)
		m.mu.Unlock()
		m.emitTab(event)
		log.Debug("tab activated", "reason", "resolved concurrently")
		return snap, nil
	}
	t := newDisplayTab(id, m.tabTitle(entity), m.accessors.icon(entity), entity)
	m.tabs = append(m.tabs, t)
	event := m.activateLocked(len(m.tabs) - 1)
	event.Type = schema.TabEventOpened
	snap := t.Snapshot(true)
	m.mu.Unlock()
	m.emitTab(event)
	log.Info("tab opened", "type", schema.TabTypeDisplay)
	return snap, nil
}

// CloseTab removes the tab for id. Closing a non-existent tab, any value
// below the new-entity sentinel, or any tab of a non-closable manager is a
// silent no-op. A live un-submitted transaction is deleted server-side
// exactly once; cleanup failures are reported but never block the close.
func (m *Manager[E]) CloseTab(ctx context.Context, id schema.EntityID) (schema.TabSnapshot, error) {
	if m.cfg.NonClosable || id < schema.NewEntitySentinel {
		return schema.TabSnapshot{}, nil
	}
	return m.closeTab(ctx, id)
}

func (m *Manager[E]) closeTab(ctx context.Context, id schema.EntityID) (schema.TabSnapshot, error) {
	log := logx.WithEntity(ctx, id)

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		log.Trace("tab close noop", "reason", "not open")
		return schema.TabSnapshot{}, nil
	}
	t := m.tabs[idx]
	cleanup := t.form.liveTransaction()
	var txn schema.TransactionID
	tabType := t.typ
	if cleanup {
		txn = t.form.state.TransactionID()
		t.form.state.SetTransactionID(0)
	}
	snap := t.Snapshot(false)
	m.tabs = append(m.tabs[:idx], m.tabs[idx+1:]...)
	var activated *schema.TabEvent
	if idx <= m.active {
		event := m.activateLocked(0)
		activated = &event
	}
	closed := schema.TabEvent{Type: schema.TabEventClosed, Tab: snap, ActiveTab: m.tabs[m.active].value}
	m.mu.Unlock()

	if cleanup {
		m.deleteTransaction(ctx, log, tabType, id, txn)
	}
	m.emitTab(closed)
	if activated != nil {
		m.emitTab(*activated)
	}
	log.Info("tab closed", "type", tabType)
	return snap, nil
}

func (m *Manager[E]) deleteTransaction(ctx context.Context, log pslog.Logger, tabType schema.TabType, id schema.EntityID, txn schema.TransactionID) {
	var err error
	switch tabType {
	case schema.TabTypeNew:
		if m.createDel != nil {
			err = m.createDel(ctx, txn)
		}
	case schema.TabTypeEdit:
		if m.updateDel != nil {
			err = m.updateDel(ctx, id, txn)
		}
	}
	if err != nil {
		log.Warn("transaction delete failed", "txn", txn, "err", err)
		m.feedback(schema.FeedbackError, "Failed to abandon transaction", err.Error())
		return
	}
	log.Debug("transaction deleted", "txn", txn)
}

// BeginEdit transitions the display tab for id into edit mode, minting form
// state on first edit and resetting the submitted flag on later ones. The tab
// is opened first when not already part of the session.
func (m *Manager[E]) BeginEdit(ctx context.Context, id schema.EntityID) (schema.TabSnapshot, error) {
	log := logx.WithEntity(ctx, id)

	m.mu.Lock()
	idx := m.indexOf(id)
	m.mu.Unlock()
	if idx < 0 {
		if _, err := m.OpenTab(ctx, id); err != nil {
			return schema.TabSnapshot{}, err
		}
	}

	m.mu.Lock()
	idx = m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		log.Warn("tab edit failed", "err", schema.ErrTabNotFound)
		return schema.TabSnapshot{}, schema.ErrTabNotFound
	}
	t := m.tabs[idx]
	if t.form == nil {
		if m.forms == nil {
			m.mu.Unlock()
			log.Warn("tab edit failed", "err", schema.ErrMissingFormFactory)
			return schema.TabSnapshot{}, schema.ErrMissingFormFactory
		}
		t.form = &formTab{state: m.forms()}
	} else {
		t.form.submitted = false
	}
	t.typ = schema.TabTypeEdit
	event := m.activateLocked(idx)
	event.Type = schema.TabEventUpdated
	snap := t.Snapshot(true)
	m.mu.Unlock()
	m.emitTab(event)
	log.Info("tab edit started", "txn", snap.TransactionID)
	return snap, nil
}

// SubmitForm marks the form owning the given transaction as submitted. An
// edit tab reverts to display and refreshes its entity; a new tab reloads the
// backing table, closes, and reopens as a display tab when the created
// entity's id is known (pass the sentinel when it is not).
func (m *Manager[E]) SubmitForm(ctx context.Context, form FormState, entityID schema.EntityID) (schema.TabSnapshot, error) {
	if form == nil {
		return schema.TabSnapshot{}, schema.ErrNoForm
	}
	txn := form.TransactionID()

	m.mu.Lock()
	idx := m.indexOfTransaction(txn)
	if idx < 0 {
		m.mu.Unlock()
		m.log.Warn("form submit failed", "txn", txn, "err", schema.ErrFormNotFound)
		return schema.TabSnapshot{}, schema.ErrFormNotFound
	}
	t := m.tabs[idx]
	t.form.submitted = true
	tabType := t.typ
	id := t.value
	if tabType == schema.TabTypeEdit {
		t.typ = schema.TabTypeDisplay
	}
	snap := t.Snapshot(idx == m.active)
	m.mu.Unlock()

	log := logx.WithEntity(ctx, id).With("txn", txn)
	switch tabType {
	case schema.TabTypeEdit:
		log.Info("form submitted", "type", tabType)
		m.refreshEntity(ctx, log, id)
		return snap, nil
	case schema.TabTypeNew:
		log.Info("form submitted", "type", tabType)
		if m.table != nil {
			if err := m.table.Reload(ctx); err != nil {
				log.Warn("table reload failed", "err", err)
				m.feedback(schema.FeedbackError, "Failed to reload table", err.Error())
			}
		}
		if _, err := m.closeTab(ctx, schema.NewEntitySentinel); err != nil {
			return snap, err
		}
		if entityID > schema.NewEntitySentinel {
			return m.OpenTab(ctx, entityID)
		}
		return snap, nil
	default:
		return snap, nil
	}
}

// CancelForm abandons the form of the given tab type. A new tab closes after
// deleting its live transaction; an edit tab reverts to display, deleting the
// live transaction and clearing its id.
func (m *Manager[E]) CancelForm(ctx context.Context, tabType schema.TabType, id schema.EntityID) error {
	switch tabType {
	case schema.TabTypeNew:
		_, err := m.closeTab(ctx, schema.NewEntitySentinel)
		return err
	case schema.TabTypeEdit:
		log := logx.WithEntity(ctx, id)
		m.mu.Lock()
		idx := m.indexOf(id)
		if idx < 0 {
			m.mu.Unlock()
			log.Warn("form cancel failed", "err", schema.ErrTabNotFound)
			return schema.ErrTabNotFound
		}
		t := m.tabs[idx]
		t.typ = schema.TabTypeDisplay
		cleanup := t.form.liveTransaction()
		var txn schema.TransactionID
		if cleanup {
			txn = t.form.state.TransactionID()
			t.form.state.SetTransactionID(0)
		}
		event := schema.TabEvent{Type: schema.TabEventUpdated, Tab: t.Snapshot(idx == m.active), ActiveTab: m.tabs[m.active].value}
		m.mu.Unlock()
		if cleanup {
			m.deleteTransaction(ctx, log, schema.TabTypeEdit, id, txn)
		}
		m.emitTab(event)
		log.Info("form canceled", "type", tabType)
		return nil
	default:
		return schema.ErrNoForm
	}
}

// UpdateTabEntity refreshes the entity bound to the tab for id in place, and
// mirrors the new value into the external collection at its existing index.
func (m *Manager[E]) UpdateTabEntity(ctx context.Context, id schema.EntityID, entity E) error {
	log := logx.WithEntity(ctx, id)

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		log.Trace("tab entity update noop", "reason", "not open")
		return schema.ErrTabNotFound
	}
	t := m.tabs[idx]
	t.entity = &entity
	t.title = m.tabTitle(entity)
	t.icon = m.accessors.icon(entity)
	if m.coll != nil {
		if ci := m.coll.FindIndex(id); ci >= 0 {
			m.coll.ReplaceAt(ci, entity)
		}
	}
	event := schema.TabEvent{Type: schema.TabEventUpdated, Tab: t.Snapshot(idx == m.active), ActiveTab: m.tabs[m.active].value}
	m.mu.Unlock()
	m.emitTab(event)
	log.Debug("tab entity updated")
	return nil
}

// UpdateTabTitle overrides the title of the tab for id.
func (m *Manager[E]) UpdateTabTitle(ctx context.Context, id schema.EntityID, title string) error {
	log := logx.WithEntity(ctx, id)

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return schema.ErrTabNotFound
	}
	t := m.tabs[idx]
	t.title = title
	event := schema.TabEvent{Type: schema.TabEventUpdated, Tab: t.Snapshot(idx == m.active), ActiveTab: m.tabs[m.active].value}
	m.mu.Unlock()
	m.emitTab(event)
	log.Debug("tab title updated", "title", title)
	return nil
}

// DeleteEntity removes the entity from the backing collection and closes its
// tab, bypassing the non-closable guard.
func (m *Manager[E]) DeleteEntity(ctx context.Context, id schema.EntityID) error {
	m.mu.Lock()
	if m.coll != nil {
		if ci := m.coll.FindIndex(id); ci >= 0 {
			m.coll.RemoveAt(ci)
		}
	}
	m.mu.Unlock()
	_, err := m.closeTab(ctx, id)
	return err
}

// Navigate applies a completed route change: the list segment activates the
// first tab (applying query-derived table filters unless this is tab
// navigation), the new segment opens the new-entity tab, and anything else
// must parse as a positive entity id. Malformed segments report feedback and
// fall back to the list tab.
func (m *Manager[E]) Navigate(ctx context.Context, nav Navigation) error {
	segment := strings.TrimSpace(nav.Segment)
	log := pslog.Ctx(ctx).With("segment", segment)

	switch segment {
	case "", m.cfg.RouteAllSuffix:
		if m.table != nil && len(nav.Query) > 0 && !nav.TabNavigation {
			m.table.ApplyQuery(nav.Query)
			if err := m.table.Reload(ctx); err != nil {
				log.Warn("table reload failed", "err", err)
				m.feedback(schema.FeedbackError, "Failed to reload table", err.Error())
			}
		}
		m.activateFirst()
		log.Trace("navigated to list")
		return nil
	case m.cfg.RouteNewSuffix:
		_, err := m.OpenTab(ctx, schema.NewEntitySentinel)
		return err
	}

	id, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || id <= 0 {
		log.Warn("route parse failed", "err", schema.ErrInvalidRoute)
		m.feedback(schema.FeedbackError, "Invalid route", fmt.Sprintf("cannot parse entity id from %q", segment))
		m.activateFirst()
		return schema.ErrInvalidRoute
	}
	_, err = m.OpenTab(ctx, schema.EntityID(id))
	return err
}

// TabList reports the current tab set.
type TabList struct {
	Tabs      []schema.TabSnapshot
	ActiveTab schema.EntityID
	// OpenCount excludes the implicit list tab.
	OpenCount int
}

// ListTabs returns snapshots of every tab including the list tab.
func (m *Manager[E]) ListTabs(ctx context.Context) TabList {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	tabs := make([]schema.TabSnapshot, 0, len(m.tabs))
	for i, t := range m.tabs {
		tabs = append(tabs, t.Snapshot(i == m.active))
	}
	return TabList{
		Tabs:      tabs,
		ActiveTab: m.tabs[m.active].value,
		OpenCount: len(m.tabs) - 1,
	}
}

// Entity returns the entity bound to the tab for id, if any.
func (m *Manager[E]) Entity(id schema.EntityID) (E, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero E
	idx := m.indexOf(id)
	if idx < 0 || m.tabs[idx].entity == nil {
		return zero, false
	}
	return *m.tabs[idx].entity, true
}

func (m *Manager[E]) refreshEntity(ctx context.Context, log pslog.Logger, id schema.EntityID) {
	if m.provider == nil {
		return
	}
	entity, err := m.provider(ctx, id)
	if err != nil {
		log.Warn("entity refresh failed", "err", err)
		m.feedback(schema.FeedbackError, "Failed to refresh entity", err.Error())
		return
	}
	_ = m.UpdateTabEntity(ctx, id, entity)
}

func (m *Manager[E]) activateFirst() {
	m.mu.Lock()
	event := m.activateLocked(0)
	m.mu.Unlock()
	m.emitTab(event)
}

// activateLocked switches the active tab and returns the event to emit after
// unlocking.
func (m *Manager[E]) activateLocked(idx int) schema.TabEvent {
	m.active = idx
	return schema.TabEvent{
		Type:      schema.TabEventActivated,
		Tab:       m.tabs[idx].Snapshot(true),
		ActiveTab: m.tabs[idx].value,
	}
}

func (m *Manager[E]) indexOf(id schema.EntityID) int {
	for i, t := range m.tabs {
		if t.typ == schema.TabTypeList {
			continue
		}
		if t.value == id {
			return i
		}
	}
	return -1
}

func (m *Manager[E]) indexOfTransaction(txn schema.TransactionID) int {
	if txn == 0 {
		return -1
	}
	for i, t := range m.tabs {
		if t.form != nil && t.form.state != nil && t.form.state.TransactionID() == txn {
			return i
		}
	}
	return -1
}

func (m *Manager[E]) emitTab(event schema.TabEvent) {
	if m.sink != nil {
		m.sink.OnTabEvent(event)
	}
}

func (m *Manager[E]) feedback(severity schema.FeedbackSeverity, summary, detail string) {
	if m.sink != nil {
		m.sink.OnFeedback(schema.FeedbackEvent{Severity: severity, Summary: summary, Detail: detail})
	}
}

func (m *Manager[E]) failOpen(log pslog.Logger, id schema.EntityID, err error) {
	log.Warn("tab open failed", "err", err)
	m.feedback(schema.FeedbackError, "Failed to open tab", fmt.Sprintf("entity %d: %v", id, err))
	m.activateFirst()
}
