package core

import (
	"context"
	"net/url"

	"pkt.systems/pslog"

	"pkt.systems/fleetwatch/schema"
)

// FormState is the caller-owned state behind a New/Edit tab. The manager only
// needs the transaction identifier; everything else is opaque.
type FormState interface {
	TransactionID() schema.TransactionID
	SetTransactionID(schema.TransactionID)
}

// FormFactory mints fresh form state for a New or Edit tab.
type FormFactory func() FormState

// EntityProvider resolves an entity by id. It must return
// schema.ErrEntityNotFound (possibly wrapped) when the entity does not exist.
type EntityProvider[E any] func(ctx context.Context, id schema.EntityID) (E, error)

// Accessors supplies typed field access for an entity. ID is required; Title
// and Icon fall back to empty strings when nil.
type Accessors[E any] struct {
	ID    func(E) schema.EntityID
	Title func(E) string
	Icon  func(E) string
}

func (a Accessors[E]) title(entity E) string {
	if a.Title == nil {
		return ""
	}
	return a.Title(entity)
}

func (a Accessors[E]) icon(entity E) string {
	if a.Icon == nil {
		return ""
	}
	return a.Icon(entity)
}

// Sink receives tab lifecycle events and user-facing feedback.
type Sink interface {
	OnTabEvent(event schema.TabEvent)
	OnFeedback(event schema.FeedbackEvent)
}

// Config controls manager behavior.
type Config struct {
	// NonClosable makes CloseTab a no-op (fixed tab sets).
	NonClosable bool
	// ForceAsyncFetch skips the synchronous collection lookup in OpenTab.
	ForceAsyncFetch bool
	// AutoOpenAll opens a display tab per collection entity at construction,
	// activating the first.
	AutoOpenAll bool
	// ListTabTitle names the implicit first tab. Defaults to "List".
	ListTabTitle string
	// NewTabTitle names the create-new-entity tab. Defaults to "New".
	NewTabTitle string
	// RouteAllSuffix is the navigation segment selecting the list tab.
	// Defaults to "all".
	RouteAllSuffix string
	// RouteNewSuffix is the navigation segment opening the new-entity tab.
	// Defaults to "new".
	RouteNewSuffix string
}

func normalizeConfig(cfg Config) Config {
	if cfg.ListTabTitle == "" {
		cfg.ListTabTitle = "List"
	}
	if cfg.NewTabTitle == "" {
		cfg.NewTabTitle = "New"
	}
	if cfg.RouteAllSuffix == "" {
		cfg.RouteAllSuffix = "all"
	}
	if cfg.RouteNewSuffix == "" {
		cfg.RouteNewSuffix = "new"
	}
	return cfg
}

// Deps captures manager collaborators. Provider is required unless every open
// resolves from the collection; Collection is optional for purely async
// sessions.
type Deps[E any] struct {
	Provider   EntityProvider[E]
	Forms      FormFactory
	Collection Collection[E]
	Table      Table[E]
	Accessors  Accessors[E]
	// TitleProvider overrides Accessors.Title for tab titles. When set, the
	// manager never rewrites display titles on collection copies.
	TitleProvider func(E) string
	// CreateDelete abandons a create transaction server-side.
	CreateDelete func(ctx context.Context, txn schema.TransactionID) error
	// UpdateDelete abandons an update transaction server-side.
	UpdateDelete func(ctx context.Context, id schema.EntityID, txn schema.TransactionID) error
	Sink         Sink
	Logger       pslog.Logger
}

// Navigation describes a completed route change handed to the manager.
type Navigation struct {
	// Segment is the trailing id segment: empty or the "all" suffix selects
	// the list tab, the "new" suffix opens the new-entity tab, anything else
	// must parse as a positive integer entity id.
	Segment string
	// Query carries URL query parameters applied as table filters.
	Query url.Values
	// TabNavigation marks navigation originating from tab clicks, skipping
	// redundant table reloads.
	TabNavigation bool
}
