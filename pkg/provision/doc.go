// Package provision creates, suspends, reactivates and destroys tenants.
//
// Every workflow is split into a pure planner that returns the list of side
// effects (PlanProvision, PlanTransition, PlanDeprovision, PlanCompensation)
// and the Service executor that applies them against the registry, the
// namespace catalog, the migration history and the resolver cache.
//
// Provisioning is all-or-nothing from the caller's point of view:
//
//	svc := provision.NewService(registry, catalog,
//	    provision.WithBaseliner(orchestrator),
//	    provision.WithInvalidator(resolver))
//
//	t, err := svc.Provision(ctx, provision.Request{Name: "Acme Inc"})
//	if errors.Is(err, provision.ErrProvisioningFailed) {
//	    // no registry row and no namespace are left behind
//	}
//
// With a Baseliner the template is frozen from before the clone until the
// new tenant's migration history is seeded, so a concurrent template
// rollout can never make the two disagree.
//
// Deprovisioning is soft by default. A soft-deleted tenant keeps its
// namespace until it is hard-deleted explicitly or by PurgeExpired once the
// retention window has passed. Hard deletion also flushes the tenant's cache
// entries when a CacheFlusher is configured.
package provision
