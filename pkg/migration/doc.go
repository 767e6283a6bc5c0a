// Package migration rolls versioned schema changes out to tenant namespaces.
//
// The Orchestrator migrates the template namespace first so newly provisioned
// tenants clone the current structure, then an optional canary tenant, then
// every active tenant (suspended ones on request). Each tenant runs in its own
// bound transactions: one tenant failing never blocks or alters another.
// Versions of one tenant are applied strictly in ascending order and the
// first failure stops that tenant.
//
// Every attempt is recorded as a Run. Runs move pending -> running ->
// completed|failed (or rolled_back for a down run) and are immutable once
// finished. The applied versions of a tenant are derived from its history.
// Failed runs are never retried automatically; call MigrateAll or
// MigrateTenant again after inspecting the failure.
//
// Migration sets are plain Go values or YAML files of SQL scripts:
//
//	set, err := migration.LoadSQLSetFile("migrations/tenant.yaml", pg.ExecScript)
//	orch := migration.NewOrchestrator(engine, set, runs, registry,
//	    migration.WithConcurrency(4))
//
//	report, err := orch.MigrateAll(ctx, migration.Options{Canary: canaryID})
//	for _, failed := range report.Failed() {
//	    log.Error("tenant migration failed", logger.TenantID(failed.TenantID), logger.Error(failed.Err))
//	}
package migration
