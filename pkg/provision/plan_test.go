package provision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/provision"
	"github.com/dmitrymomot/boundary/pkg/tenant"
)

func steps(effects []provision.Effect) []string {
	out := make([]string, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.String())
	}
	return out
}

func TestPlanProvision(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"create_record", "create_namespace", "freeze_template", "clone_structure",
		"baseline_migrations", "set_status(active)", "invalidate_cache",
	}, steps(provision.PlanProvision(true)))

	assert.Equal(t, []string{
		"create_record", "create_namespace", "clone_structure",
		"set_status(active)", "invalidate_cache",
	}, steps(provision.PlanProvision(false)))
}

func TestPlanCompensation(t *testing.T) {
	t.Parallel()

	full := provision.PlanProvision(true)

	tests := []struct {
		name string
		done []provision.Effect
		want []string
	}{
		{name: "nothing done", done: nil, want: []string{}},
		{name: "record only", done: full[:1], want: []string{"delete_record", "invalidate_cache"}},
		{name: "namespace created", done: full[:2], want: []string{"drop_namespace", "delete_record", "invalidate_cache"}},
		{name: "template frozen", done: full[:3], want: []string{"drop_namespace", "delete_record", "invalidate_cache"}},
		{name: "clone done", done: full[:4], want: []string{"drop_namespace", "delete_record", "invalidate_cache"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, steps(provision.PlanCompensation(tt.done)))
		})
	}
}

func TestPlanTransition(t *testing.T) {
	t.Parallel()

	effects, err := provision.PlanTransition(&tenant.Tenant{Status: tenant.StatusActive}, tenant.EventSuspend)
	require.NoError(t, err)
	assert.Equal(t, []string{"set_status(suspended)", "invalidate_cache"}, steps(effects))

	_, err = provision.PlanTransition(&tenant.Tenant{Status: tenant.StatusDeleted}, tenant.EventActivate)
	assert.ErrorIs(t, err, tenant.ErrInvalidTransition)
}

func TestPlanDeprovision(t *testing.T) {
	t.Parallel()

	effects, err := provision.PlanDeprovision(&tenant.Tenant{Status: tenant.StatusSuspended}, provision.ModeSoft)
	require.NoError(t, err)
	assert.Equal(t, []string{"set_status(deleted)", "invalidate_cache"}, steps(effects))

	_, err = provision.PlanDeprovision(&tenant.Tenant{Status: tenant.StatusActive}, provision.ModeHard)
	assert.ErrorIs(t, err, provision.ErrNotDeleted)

	effects, err = provision.PlanDeprovision(&tenant.Tenant{Status: tenant.StatusDeleted}, provision.ModeHard)
	require.NoError(t, err)
	assert.Equal(t, []string{"flush_cache", "drop_namespace", "delete_record", "invalidate_cache"}, steps(effects))

	_, err = provision.PlanDeprovision(&tenant.Tenant{Status: tenant.StatusDeleted}, provision.Mode("wipe"))
	assert.ErrorIs(t, err, provision.ErrInvalidMode)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := provision.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, provision.ModeSoft, m)

	m, err = provision.ParseMode("hard")
	require.NoError(t, err)
	assert.Equal(t, provision.ModeHard, m)

	_, err = provision.ParseMode("HARD")
	assert.ErrorIs(t, err, provision.ErrInvalidMode)
}
