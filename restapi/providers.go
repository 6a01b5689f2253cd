package restapi

import (
	"context"

	"pkt.systems/fleetwatch/core"
	"pkt.systems/fleetwatch/schema"
)

// MachineDeps returns manager collaborators bound to the machines resource:
// the entity provider, accessors and the transaction cleanup callbacks.
func MachineDeps(client *Client) core.Deps[schema.Machine] {
	return core.Deps[schema.Machine]{
		Provider: client.GetMachine,
		Accessors: core.Accessors[schema.Machine]{
			ID:    func(m schema.Machine) schema.EntityID { return m.ID },
			Title: func(m schema.Machine) string { return m.Label() },
		},
		CreateDelete: func(ctx context.Context, txn schema.TransactionID) error {
			return client.DeleteCreateTransaction(ctx, "machines", txn)
		},
		UpdateDelete: func(ctx context.Context, id schema.EntityID, txn schema.TransactionID) error {
			return client.DeleteUpdateTransaction(ctx, "machines", id, txn)
		},
	}
}

// AppDeps returns manager collaborators bound to the apps resource.
func AppDeps(client *Client) core.Deps[schema.App] {
	return core.Deps[schema.App]{
		Provider: client.GetApp,
		Accessors: core.Accessors[schema.App]{
			ID:    func(a schema.App) schema.EntityID { return a.ID },
			Title: func(a schema.App) string { return a.Name },
			Icon:  func(a schema.App) string { return string(a.Type) },
		},
		CreateDelete: func(ctx context.Context, txn schema.TransactionID) error {
			return client.DeleteCreateTransaction(ctx, "apps", txn)
		},
		UpdateDelete: func(ctx context.Context, id schema.EntityID, txn schema.TransactionID) error {
			return client.DeleteUpdateTransaction(ctx, "apps", id, txn)
		},
	}
}

// UserDeps returns manager collaborators bound to the users resource.
func UserDeps(client *Client) core.Deps[schema.User] {
	return core.Deps[schema.User]{
		Provider: client.GetUser,
		Accessors: core.Accessors[schema.User]{
			ID:    func(u schema.User) schema.EntityID { return u.ID },
			Title: func(u schema.User) string { return u.Login },
		},
		CreateDelete: func(ctx context.Context, txn schema.TransactionID) error {
			return client.DeleteCreateTransaction(ctx, "users", txn)
		},
		UpdateDelete: func(ctx context.Context, id schema.EntityID, txn schema.TransactionID) error {
			return client.DeleteUpdateTransaction(ctx, "users", id, txn)
		},
	}
}
