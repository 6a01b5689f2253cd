package core

import "pkt.systems/fleetwatch/schema"

// tab tracks one open panel in the session. The list tab has type
// schema.TabTypeList and no entity or form; a form is present only on
// New/Edit tabs (or retained, dormant, on a Display tab that was edited
// before).
type tab[E any] struct {
	value  schema.EntityID
	title  string
	icon   string
	typ    schema.TabType
	entity *E
	form   *formTab
}

// formTab wraps caller-owned form state with the submitted guard. Submitted
// flips to true exactly once, when the submit callback fires; after that no
// transaction cleanup may run for this form.
type formTab struct {
	state     FormState
	submitted bool
}

// liveTransaction reports whether the form owns an un-submitted server-side
// transaction that must be deleted when abandoned.
func (f *formTab) liveTransaction() bool {
	return f != nil && !f.submitted && f.state != nil && f.state.TransactionID() != 0
}

func newListTab[E any](title string) *tab[E] {
	return &tab[E]{value: schema.ListTabValue, title: title, typ: schema.TabTypeList}
}

func newDisplayTab[E any](value schema.EntityID, title, icon string, entity E) *tab[E] {
	return &tab[E]{value: value, title: title, icon: icon, typ: schema.TabTypeDisplay, entity: &entity}
}

func newEntityTab[E any](form FormState, title string) *tab[E] {
	return &tab[E]{
		value: schema.NewEntitySentinel,
		title: title,
		typ:   schema.TabTypeNew,
		form:  &formTab{state: form},
	}
}

// Snapshot returns a transport-friendly view of the tab.
func (t *tab[E]) Snapshot(active bool) schema.TabSnapshot {
	snap := schema.TabSnapshot{
		Value:  t.value,
		Title:  t.title,
		Icon:   t.icon,
		Type:   t.typ,
		Active: active,
	}
	if t.form != nil {
		snap.Submitted = t.form.submitted
		if t.form.state != nil {
			snap.TransactionID = t.form.state.TransactionID()
		}
	}
	return snap
}
