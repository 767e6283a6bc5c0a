package provision

import (
	"fmt"

	"github.com/dmitrymomot/boundary/pkg/tenant"
)

// Step names one effect of a workflow.
type Step string

const (
	StepCreateRecord    Step = "create_record"
	StepCreateNamespace Step = "create_namespace"
	StepFreezeTemplate  Step = "freeze_template"
	StepCloneStructure  Step = "clone_structure"
	StepBaseline        Step = "baseline_migrations"
	StepSetStatus       Step = "set_status"
	StepFlushCache      Step = "flush_cache"
	StepDropNamespace   Step = "drop_namespace"
	StepDeleteRecord    Step = "delete_record"
	StepInvalidate      Step = "invalidate_cache"
)

// Effect is one side effect decided by a planner and carried out by the
// service executor.
type Effect struct {
	Step   Step
	Status tenant.Status
}

func (e Effect) String() string {
	if e.Step == StepSetStatus {
		return fmt.Sprintf("%s(%s)", e.Step, e.Status)
	}
	return string(e.Step)
}

// Mode selects how a tenant is deprovisioned.
type Mode string

const (
	ModeSoft Mode = "soft"
	ModeHard Mode = "hard"
)

// ParseMode accepts "soft", "hard" and an empty string meaning soft.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSoft:
		return ModeSoft, nil
	case ModeHard:
		return ModeHard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// PlanProvision lists the effects that create a tenant. When migration
// history has to be seeded from the template, the template is frozen before
// the clone and released once the baseline is written.
func PlanProvision(baseline bool) []Effect {
	effects := []Effect{
		{Step: StepCreateRecord},
		{Step: StepCreateNamespace},
	}
	if baseline {
		effects = append(effects,
			Effect{Step: StepFreezeTemplate},
			Effect{Step: StepCloneStructure},
			Effect{Step: StepBaseline},
		)
	} else {
		effects = append(effects, Effect{Step: StepCloneStructure})
	}
	return append(effects,
		Effect{Step: StepSetStatus, Status: tenant.StatusActive},
		Effect{Step: StepInvalidate},
	)
}

// PlanCompensation lists the effects that undo a partially applied
// provisioning plan. Only what was actually done is undone.
func PlanCompensation(done []Effect) []Effect {
	var recordCreated, namespaceCreated bool
	for _, e := range done {
		switch e.Step {
		case StepCreateRecord:
			recordCreated = true
		case StepCreateNamespace:
			namespaceCreated = true
		}
	}

	var effects []Effect
	if namespaceCreated {
		effects = append(effects, Effect{Step: StepDropNamespace})
	}
	if recordCreated {
		effects = append(effects, Effect{Step: StepDeleteRecord}, Effect{Step: StepInvalidate})
	}
	return effects
}

// PlanTransition lists the effects of a lifecycle event. The physical
// namespace is never touched.
func PlanTransition(t *tenant.Tenant, ev tenant.Event) ([]Effect, error) {
	next, err := tenant.Transition(t.Status, ev)
	if err != nil {
		return nil, err
	}
	return []Effect{
		{Step: StepSetStatus, Status: next},
		{Step: StepInvalidate},
	}, nil
}

// PlanDeprovision lists the effects of a soft or hard deletion. Hard
// deletion is only planned for tenants that are already soft-deleted. The
// cache goes first so a flush failure leaves the tenant in place for a retry.
func PlanDeprovision(t *tenant.Tenant, mode Mode) ([]Effect, error) {
	switch mode {
	case ModeSoft:
		return PlanTransition(t, tenant.EventDelete)
	case ModeHard:
		if t.Status != tenant.StatusDeleted {
			return nil, fmt.Errorf("%w: tenant is %s", ErrNotDeleted, t.Status)
		}
		return []Effect{
			{Step: StepFlushCache},
			{Step: StepDropNamespace},
			{Step: StepDeleteRecord},
			{Step: StepInvalidate},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}
