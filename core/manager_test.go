package core

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"pkt.systems/fleetwatch/schema"
)

type device struct {
	ID   schema.EntityID
	Name string
}

func deviceAccessors() Accessors[device] {
	return Accessors[device]{
		ID:    func(d device) schema.EntityID { return d.ID },
		Title: func(d device) string { return d.Name },
	}
}

type fakeForm struct {
	txn schema.TransactionID
}

func (f *fakeForm) TransactionID() schema.TransactionID { return f.txn }

func (f *fakeForm) SetTransactionID(txn schema.TransactionID) { f.txn = txn }

type formMinter struct {
	next  schema.TransactionID
	forms []*fakeForm
}

func (m *formMinter) mint() FormState {
	m.next++
	form := &fakeForm{txn: m.next + 100}
	m.forms = append(m.forms, form)
	return form
}

func (m *formMinter) last() *fakeForm {
	return m.forms[len(m.forms)-1]
}

type recordSink struct {
	mu       sync.Mutex
	tabs     []schema.TabEvent
	feedback []schema.FeedbackEvent
}

func (s *recordSink) OnTabEvent(event schema.TabEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs = append(s.tabs, event)
}

func (s *recordSink) OnFeedback(event schema.FeedbackEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, event)
}

func (s *recordSink) feedbackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feedback)
}

type fixture struct {
	manager *Manager[device]
	devices []device
	sink    *recordSink
	minter  *formMinter

	mu            sync.Mutex
	createDeletes []schema.TransactionID
	updateDeletes []schema.TransactionID
	providerCalls int
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		devices: []device{{ID: 7, Name: "test"}, {ID: 9, Name: "test2"}},
		sink:    &recordSink{},
		minter:  &formMinter{},
	}
	deps := Deps[device]{
		Provider: func(ctx context.Context, id schema.EntityID) (device, error) {
			f.mu.Lock()
			f.providerCalls++
			f.mu.Unlock()
			for _, d := range f.devices {
				if d.ID == id {
					return d, nil
				}
			}
			return device{}, schema.ErrEntityNotFound
		},
		Forms:      f.minter.mint,
		Collection: NewSliceCollection(&f.devices, func(d device) schema.EntityID { return d.ID }),
		Accessors:  deviceAccessors(),
		CreateDelete: func(ctx context.Context, txn schema.TransactionID) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.createDeletes = append(f.createDeletes, txn)
			return nil
		},
		UpdateDelete: func(ctx context.Context, id schema.EntityID, txn schema.TransactionID) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.updateDeletes = append(f.updateDeletes, txn)
			return nil
		},
		Sink: f.sink,
	}
	manager, err := NewManager[device](cfg, deps)
	if err != nil {
		t.Fatalf("new manager failed: %v", err)
	}
	f.manager = manager
	return f
}

func TestOpenTabIsUniquePerEntity(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.manager.OpenTab(ctx, 7); err != nil {
			t.Fatalf("open failed: %v", err)
		}
	}
	list := f.manager.ListTabs(ctx)
	if list.OpenCount != 1 {
		t.Fatalf("expected 1 open tab, got %d", list.OpenCount)
	}
	if list.ActiveTab != 7 {
		t.Fatalf("expected active tab 7, got %d", list.ActiveTab)
	}
}

func TestCloseGuards(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, 7); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	before := f.manager.ListTabs(ctx)

	// Closing a tab that is not open is a silent no-op.
	if _, err := f.manager.CloseTab(ctx, 42); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	// Values below the new-entity sentinel never remove anything, so the
	// list tab is protected.
	if _, err := f.manager.CloseTab(ctx, schema.ListTabValue); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := f.manager.CloseTab(ctx, -42); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	after := f.manager.ListTabs(ctx)
	if len(after.Tabs) != len(before.Tabs) || after.ActiveTab != before.ActiveTab {
		t.Fatalf("tab set changed: before %+v after %+v", before, after)
	}
}

func TestNonClosableManagerIgnoresClose(t *testing.T) {
	f := newFixture(t, Config{NonClosable: true})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, 7); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.manager.CloseTab(ctx, 7); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if list := f.manager.ListTabs(ctx); list.OpenCount != 1 {
		t.Fatalf("expected tab to survive close, got %d open", list.OpenCount)
	}
}

func TestCloseNewTabDeletesTransactionExactlyOnce(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, schema.NewEntitySentinel); err != nil {
		t.Fatalf("open new failed: %v", err)
	}
	form := f.minter.last()
	txn := form.TransactionID()
	if txn == 0 {
		t.Fatalf("expected live transaction")
	}

	if _, err := f.manager.CloseTab(ctx, schema.NewEntitySentinel); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := f.manager.CloseTab(ctx, schema.NewEntitySentinel); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createDeletes) != 1 || f.createDeletes[0] != txn {
		t.Fatalf("expected exactly one create delete for txn %d, got %v", txn, f.createDeletes)
	}
	if form.TransactionID() != 0 {
		t.Fatalf("expected transaction id cleared, got %d", form.TransactionID())
	}
}

func TestSubmittedNewFormSkipsCleanup(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, schema.NewEntitySentinel); err != nil {
		t.Fatalf("open new failed: %v", err)
	}
	form := f.minter.last()
	if _, err := f.manager.SubmitForm(ctx, form, schema.NewEntitySentinel); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createDeletes) != 0 {
		t.Fatalf("expected no create deletes after submit, got %v", f.createDeletes)
	}
}

func TestSubmitNewOpensCreatedEntity(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, schema.NewEntitySentinel); err != nil {
		t.Fatalf("open new failed: %v", err)
	}
	form := f.minter.last()
	snap, err := f.manager.SubmitForm(ctx, form, 9)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if snap.Value != 9 || snap.Type != schema.TabTypeDisplay {
		t.Fatalf("expected display tab for entity 9, got %+v", snap)
	}
	list := f.manager.ListTabs(ctx)
	if list.ActiveTab != 9 || list.OpenCount != 1 {
		t.Fatalf("unexpected tab state: %+v", list)
	}
}

func TestBeginEditAndSubmitRevertsToDisplay(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	snap, err := f.manager.BeginEdit(ctx, 7)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if snap.Type != schema.TabTypeEdit || snap.TransactionID == 0 {
		t.Fatalf("expected edit tab with live transaction, got %+v", snap)
	}

	f.devices[0].Name = "renamed"
	form := f.minter.last()
	snap, err = f.manager.SubmitForm(ctx, form, 7)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if snap.Type != schema.TabTypeDisplay {
		t.Fatalf("expected display tab after submit, got %+v", snap)
	}
	// Submit refreshes the entity through the provider.
	if entity, ok := f.manager.Entity(7); !ok || entity.Name != "renamed" {
		t.Fatalf("expected refreshed entity, got %+v ok=%v", entity, ok)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateDeletes) != 0 {
		t.Fatalf("expected no update deletes after submit, got %v", f.updateDeletes)
	}
}

func TestCancelEditDeletesTransaction(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.BeginEdit(ctx, 7); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	form := f.minter.last()
	txn := form.TransactionID()

	if err := f.manager.CancelForm(ctx, schema.TabTypeEdit, 7); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	f.mu.Lock()
	deletes := append([]schema.TransactionID(nil), f.updateDeletes...)
	f.mu.Unlock()
	if len(deletes) != 1 || deletes[0] != txn {
		t.Fatalf("expected one update delete for txn %d, got %v", txn, deletes)
	}
	if form.TransactionID() != 0 {
		t.Fatalf("expected transaction id cleared")
	}
	list := f.manager.ListTabs(ctx)
	for _, tab := range list.Tabs {
		if tab.Value == 7 && tab.Type != schema.TabTypeDisplay {
			t.Fatalf("expected display tab after cancel, got %+v", tab)
		}
	}
}

func TestRepeatedEditMintsFormOnce(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.BeginEdit(ctx, 7); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if err := f.manager.CancelForm(ctx, schema.TabTypeEdit, 7); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := f.manager.BeginEdit(ctx, 7); err != nil {
		t.Fatalf("second edit failed: %v", err)
	}
	if len(f.minter.forms) != 1 {
		t.Fatalf("expected the form state to be retained, got %d forms", len(f.minter.forms))
	}
}

func TestUpdateTabEntitySyncsCollectionInPlace(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, 7); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := f.manager.UpdateTabEntity(ctx, 7, device{ID: 7, Name: "updated"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Same backing array, same index.
	if f.devices[0].ID != 7 || f.devices[0].Name != "updated" {
		t.Fatalf("collection not updated in place: %+v", f.devices)
	}
	if entity, ok := f.manager.Entity(7); !ok || entity.Name != "updated" {
		t.Fatalf("tab entity not updated: %+v", entity)
	}
}

func TestDeleteEntityRemovesTabAndCollectionElement(t *testing.T) {
	f := newFixture(t, Config{NonClosable: true})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, 9); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := f.manager.DeleteEntity(ctx, 9); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(f.devices) != 1 || f.devices[0].ID != 7 {
		t.Fatalf("expected entity 9 spliced out, got %+v", f.devices)
	}
	// Delete bypasses the non-closable guard.
	if list := f.manager.ListTabs(ctx); list.OpenCount != 0 {
		t.Fatalf("expected tab closed, got %+v", list)
	}
}

func TestAutoOpenAllScenario(t *testing.T) {
	f := newFixture(t, Config{AutoOpenAll: true})
	ctx := context.Background()

	list := f.manager.ListTabs(ctx)
	if list.OpenCount != 2 {
		t.Fatalf("expected 2 open tabs, got %d", list.OpenCount)
	}
	if list.ActiveTab != 7 {
		t.Fatalf("expected active tab 7, got %d", list.ActiveTab)
	}

	if _, err := f.manager.CloseTab(ctx, 9); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	list = f.manager.ListTabs(ctx)
	if list.OpenCount != 1 {
		t.Fatalf("expected 1 open tab, got %d", list.OpenCount)
	}
	if list.ActiveTab != 7 {
		t.Fatalf("expected active tab 7, got %d", list.ActiveTab)
	}
}

func TestCloseBeforeActiveActivatesFirstTab(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, 7); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.manager.OpenTab(ctx, 9); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.manager.CloseTab(ctx, 7); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if list := f.manager.ListTabs(ctx); list.ActiveTab != schema.ListTabValue {
		t.Fatalf("expected list tab active, got %d", list.ActiveTab)
	}
}

func TestOpenTabProviderFailureFallsBackToFirstTab(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, 404); !errors.Is(err, schema.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
	if f.sink.feedbackCount() != 1 {
		t.Fatalf("expected one feedback message, got %d", f.sink.feedbackCount())
	}
	if list := f.manager.ListTabs(ctx); list.ActiveTab != schema.ListTabValue {
		t.Fatalf("expected list tab active, got %d", list.ActiveTab)
	}
}

func TestForceAsyncFetchBypassesCollection(t *testing.T) {
	f := newFixture(t, Config{ForceAsyncFetch: true})
	ctx := context.Background()

	if _, err := f.manager.OpenTab(ctx, 7); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	f.mu.Lock()
	calls := f.providerCalls
	f.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected provider fetch despite collection hit, got %d calls", calls)
	}
}

func TestNavigate(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.manager.Navigate(ctx, Navigation{Segment: "9"}); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	if list := f.manager.ListTabs(ctx); list.ActiveTab != 9 {
		t.Fatalf("expected active tab 9, got %d", list.ActiveTab)
	}

	if err := f.manager.Navigate(ctx, Navigation{Segment: "all"}); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	if list := f.manager.ListTabs(ctx); list.ActiveTab != schema.ListTabValue {
		t.Fatalf("expected list tab active, got %d", list.ActiveTab)
	}

	if err := f.manager.Navigate(ctx, Navigation{Segment: "new"}); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	if list := f.manager.ListTabs(ctx); list.ActiveTab != schema.NewEntitySentinel {
		t.Fatalf("expected new tab active, got %d", list.ActiveTab)
	}

	err := f.manager.Navigate(ctx, Navigation{Segment: "bogus", Query: url.Values{}})
	if !errors.Is(err, schema.ErrInvalidRoute) {
		t.Fatalf("expected ErrInvalidRoute, got %v", err)
	}
	if f.sink.feedbackCount() == 0 {
		t.Fatalf("expected feedback for malformed route")
	}
	if list := f.manager.ListTabs(ctx); list.ActiveTab != schema.ListTabValue {
		t.Fatalf("expected list tab active after bad route, got %d", list.ActiveTab)
	}
}

func TestTitleProviderOverridesAccessor(t *testing.T) {
	f := &fixture{
		devices: []device{{ID: 7, Name: "test"}},
		sink:    &recordSink{},
		minter:  &formMinter{},
	}
	deps := Deps[device]{
		Collection:    NewSliceCollection(&f.devices, func(d device) schema.EntityID { return d.ID }),
		Accessors:     deviceAccessors(),
		TitleProvider: func(d device) string { return "custom " + d.Name },
		Sink:          f.sink,
	}
	manager, err := NewManager[device](Config{}, deps)
	if err != nil {
		t.Fatalf("new manager failed: %v", err)
	}
	snap, err := manager.OpenTab(context.Background(), 7)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if snap.Title != "custom test" {
		t.Fatalf("expected custom title, got %q", snap.Title)
	}
}
