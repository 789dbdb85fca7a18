package workflow

import (
	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/repository"
)

// Actor is the authenticated caller. The identity is trusted as resolved
// by the auth layer.
type Actor struct {
	UserID    uint
	CompanyID uint // zero for a super admin without a selected company
	Role      string
}

// IsTenantWide reports whether the actor may act on any record of its company.
func (a Actor) IsTenantWide() bool {
	return a.Role == models.RoleHR || a.Role == models.RoleSuperAdmin
}

// View is what one kind of actor may see.
type View interface {
	// Scope narrows a KPI listing to what the actor may see. It overrides
	// any caller supplied ownership keys.
	Scope(f *repository.Filters) *repository.Filters
	// CanSee reports whether the actor may read the KPI.
	CanSee(kpi *models.KPI) bool
}

// EmployeeView sees the employee's own KPIs.
type EmployeeView struct{ Actor Actor }

// ManagerView sees the KPIs the manager owns.
type ManagerView struct{ Actor Actor }

// HRView sees every KPI of the company.
type HRView struct{ Actor Actor }

// SuperAdminView sees every KPI, optionally limited to a selected company.
type SuperAdminView struct{ Actor Actor }

// ViewFor selects the view for an actor.
func ViewFor(actor Actor) (View, error) {
	switch actor.Role {
	case models.RoleEmployee:
		return EmployeeView{Actor: actor}, nil
	case models.RoleManager:
		return ManagerView{Actor: actor}, nil
	case models.RoleHR:
		return HRView{Actor: actor}, nil
	case models.RoleSuperAdmin:
		return SuperAdminView{Actor: actor}, nil
	default:
		return nil, forbidden("unknown role %q", actor.Role)
	}
}

func (v EmployeeView) Scope(f *repository.Filters) *repository.Filters {
	return f.With(repository.FilterCompany, v.Actor.CompanyID).
		With(repository.FilterEmployee, v.Actor.UserID)
}

func (v EmployeeView) CanSee(kpi *models.KPI) bool {
	return kpi.CompanyID == v.Actor.CompanyID && kpi.EmployeeID == v.Actor.UserID
}

func (v ManagerView) Scope(f *repository.Filters) *repository.Filters {
	return f.With(repository.FilterCompany, v.Actor.CompanyID).
		With(repository.FilterManager, v.Actor.UserID)
}

func (v ManagerView) CanSee(kpi *models.KPI) bool {
	return kpi.CompanyID == v.Actor.CompanyID && kpi.ManagerID == v.Actor.UserID
}

func (v HRView) Scope(f *repository.Filters) *repository.Filters {
	return f.With(repository.FilterCompany, v.Actor.CompanyID)
}

func (v HRView) CanSee(kpi *models.KPI) bool {
	return kpi.CompanyID == v.Actor.CompanyID
}

func (v SuperAdminView) Scope(f *repository.Filters) *repository.Filters {
	if v.Actor.CompanyID != 0 {
		return f.With(repository.FilterCompany, v.Actor.CompanyID)
	}
	return f
}

func (v SuperAdminView) CanSee(kpi *models.KPI) bool {
	return v.Actor.CompanyID == 0 || kpi.CompanyID == v.Actor.CompanyID
}
