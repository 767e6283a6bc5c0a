package adminapi

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/boundary/pkg/migration"
)

type resultView struct {
	TenantID  uuid.UUID        `json:"tenant_id"`
	Slug      string           `json:"slug,omitempty"`
	Namespace string           `json:"namespace"`
	Runs      []*migration.Run `json:"runs"`
	Error     string           `json:"error,omitempty"`
}

func newResultView(r *migration.TenantResult) *resultView {
	if r == nil {
		return nil
	}
	v := &resultView{
		TenantID:  r.TenantID,
		Slug:      r.Slug,
		Namespace: r.Namespace,
		Runs:      r.Runs,
	}
	if v.Runs == nil {
		v.Runs = []*migration.Run{}
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

type reportView struct {
	Template *resultView   `json:"template,omitempty"`
	Canary   *resultView   `json:"canary,omitempty"`
	Tenants  []*resultView `json:"tenants"`
	Halted   bool          `json:"halted"`
	Failed   int           `json:"failed"`
}

func newReportView(r *migration.Report) *reportView {
	v := &reportView{
		Template: newResultView(r.Template),
		Canary:   newResultView(r.Canary),
		Tenants:  make([]*resultView, 0, len(r.Tenants)),
		Halted:   r.Halted,
		Failed:   len(r.Failed()),
	}
	for i := range r.Tenants {
		v.Tenants = append(v.Tenants, newResultView(&r.Tenants[i]))
	}
	return v
}

type historyView struct {
	TenantID uuid.UUID        `json:"tenant_id"`
	Applied  []int64          `json:"applied"`
	Runs     []*migration.Run `json:"runs"`
}
