// Package logx carries the context-scoped logging helpers shared by the
// fleetwatch packages.
package logx

import (
	"context"

	"pkt.systems/fleetwatch/schema"
	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithEntity annotates the logger with the entity id when it is meaningful.
func WithEntity(ctx context.Context, id schema.EntityID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if id >= schema.NewEntitySentinel {
		log = log.With("entity", int64(id))
	}
	return log
}

// WithStream annotates the logger with a logical stream name.
func WithStream(ctx context.Context, stream schema.StreamName) pslog.Logger {
	log := pslog.Ctx(ctx)
	if stream != "" {
		log = log.With("stream", string(stream))
	}
	return log
}

// WithFilter annotates the logger with the non-zero message filter fields.
func WithFilter(log pslog.Logger, filter schema.EventFilter) pslog.Logger {
	if filter.Machine != 0 {
		log = log.With("machine", filter.Machine)
	}
	if filter.AppType != "" {
		log = log.With("app_type", filter.AppType)
	}
	if filter.DaemonType != "" {
		log = log.With("daemon", filter.DaemonType)
	}
	if filter.User != "" {
		log = log.With("user", filter.User)
	}
	if filter.Level != 0 {
		log = log.With("level", filter.Level)
	}
	return log
}
