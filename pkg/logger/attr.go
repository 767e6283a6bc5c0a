package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Error records err under the key "error". A nil error yields an empty
// Attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant identifier under the key "tenant_id".
// The nil UUID marks shared or template work and is still recorded.
func TenantID(id uuid.UUID) slog.Attr {
	return slog.String("tenant_id", id.String())
}

// TenantSlug records the tenant slug under the key "tenant_slug".
// Empty slugs produce an empty Attr.
func TenantSlug(slug string) slog.Attr {
	if slug == "" {
		return slog.Attr{}
	}
	return slog.String("tenant_slug", slug)
}

// Namespace records a database namespace under the key "namespace".
func Namespace(ns string) slog.Attr {
	return slog.String("namespace", ns)
}

// MigrationVersion records a tenant migration version under the key "migration_version".
func MigrationVersion(v int64) slog.Attr {
	return slog.Int64("migration_version", v)
}

// RunID records a migration run identifier under the key "run_id".
func RunID(id uuid.UUID) slog.Attr {
	return slog.String("run_id", id.String())
}

// TaskID records a queue task identifier under the key "task_id".
func TaskID(id uuid.UUID) slog.Attr {
	return slog.String("task_id", id.String())
}

// Duration records elapsed time under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Status records a tenant or run status under the key "status".
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Step records a workflow step under the key "step".
func Step(name string) slog.Attr {
	return slog.String("step", name)
}
