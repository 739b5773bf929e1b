// Package schedule derives the due state of maintenance plans. Everything
// here is pure: identical inputs and a fixed "now" give identical results.
package schedule

import (
	"time"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

// Status is the derived schedule state of a plan.
type Status string

const (
	StatusOnTrack Status = "OnTrack"
	StatusDueSoon Status = "DueSoon"
	StatusOverdue Status = "Overdue"
	StatusUnknown Status = "Unknown"
)

// DueSoonWindow is how far ahead of the due date a plan reads DueSoon.
const DueSoonWindow = 30 * 24 * time.Hour

// OverdueKind tags which trigger produced an overdue amount. A plan overdue
// by odometer reports kilometres over, not days; the two are never mixed in
// one value.
type OverdueKind string

const (
	OverdueDays OverdueKind = "days"
	OverdueKm   OverdueKind = "km"
)

// OverdueAmount is the tagged overdue measure.
type OverdueAmount struct {
	Kind  OverdueKind `json:"kind"`
	Value float64     `json:"value"`
}

// Result is the derived schedule for one plan. Field names are part of the
// export contract.
type Result struct {
	Status            Status         `json:"status"`
	NextDueDate       *time.Time     `json:"next_due_date"`
	NextDueOdometerKm *float64       `json:"next_due_odometer_km"`
	DaysUntilDue      *int           `json:"days_until_due"`
	DaysOverdue       *OverdueAmount `json:"days_overdue"`
	IsOverdue         bool           `json:"is_overdue"`
	IsDueSoon         bool           `json:"is_due_soon"`
	IsHVNLCritical    bool           `json:"is_hvnl_critical"`
}

// Derive computes the schedule state for one plan. A nil template yields
// Unknown. Odometer-trigger overdue overrides any date-based status.
func Derive(plan *models.MaintenancePlan, vehicle *models.Vehicle, tmpl *models.MaintenanceTemplate, now time.Time) Result {
	if tmpl == nil {
		return Result{Status: StatusUnknown}
	}

	res := Result{
		Status:         StatusOnTrack,
		IsHVNLCritical: tmpl.HVNLRelevant,
	}

	// Due date: explicit value wins, else derive from the time trigger.
	// Base falls back from last completion to the vehicle's in-service
	// date to now.
	if plan.NextDueDate != nil {
		d := *plan.NextDueDate
		res.NextDueDate = &d
	} else if tmpl.Trigger.IncludesTime() && tmpl.IntervalDays > 0 {
		base := now
		if plan.LastCompletedDate != nil {
			base = *plan.LastCompletedDate
		} else if vehicle != nil && vehicle.InServiceDate != nil {
			base = *vehicle.InServiceDate
		}
		due := base.AddDate(0, 0, tmpl.IntervalDays)
		res.NextDueDate = &due
	}

	// Due odometer: same shape, base falls back from last completion to
	// the current reading to zero.
	if plan.NextDueOdometerKm != nil {
		km := *plan.NextDueOdometerKm
		res.NextDueOdometerKm = &km
	} else if tmpl.Trigger.IncludesOdometer() && tmpl.IntervalKm > 0 {
		base := 0.0
		if plan.LastCompletedOdometerKm != nil {
			base = *plan.LastCompletedOdometerKm
		} else if vehicle != nil {
			base = vehicle.CurrentOdometerKm
		}
		due := base + tmpl.IntervalKm
		res.NextDueOdometerKm = &due
	}

	// Odometer overdue takes precedence regardless of the date.
	if res.NextDueOdometerKm != nil && vehicle != nil && vehicle.CurrentOdometerKm >= *res.NextDueOdometerKm {
		res.Status = StatusOverdue
		res.IsOverdue = true
		res.DaysOverdue = &OverdueAmount{
			Kind:  OverdueKm,
			Value: vehicle.CurrentOdometerKm - *res.NextDueOdometerKm,
		}
		if res.NextDueDate != nil && res.NextDueDate.Before(now) {
			// Date is also overdue; report the larger-signal days value.
			days := daysBetween(*res.NextDueDate, now)
			res.DaysOverdue = &OverdueAmount{Kind: OverdueDays, Value: float64(days)}
		}
		return res
	}

	if res.NextDueDate == nil {
		return res
	}

	switch {
	case res.NextDueDate.Before(now):
		res.Status = StatusOverdue
		res.IsOverdue = true
		days := daysBetween(*res.NextDueDate, now)
		res.DaysOverdue = &OverdueAmount{Kind: OverdueDays, Value: float64(days)}
	case !res.NextDueDate.After(now.Add(DueSoonWindow)):
		res.Status = StatusDueSoon
		res.IsDueSoon = true
		days := daysBetween(now, *res.NextDueDate)
		res.DaysUntilDue = &days
	default:
		days := daysBetween(now, *res.NextDueDate)
		res.DaysUntilDue = &days
	}
	return res
}

// DerivedPlan is a plan with its context and derived schedule attached,
// the unit the aggregator and scorers consume.
type DerivedPlan struct {
	Plan     *models.MaintenancePlan
	Vehicle  *models.Vehicle
	Template *models.MaintenanceTemplate
	Result   Result
}

// DeriveAll derives every plan against the given vehicle and template
// snapshots. Plans whose vehicle is missing are skipped; a missing template
// still produces a row with status Unknown.
func DeriveAll(plans []models.MaintenancePlan, vehicles map[string]*models.Vehicle, templates map[string]*models.MaintenanceTemplate, now time.Time) []DerivedPlan {
	out := make([]DerivedPlan, 0, len(plans))
	for i := range plans {
		plan := &plans[i]
		if !plan.Active() {
			continue
		}
		vehicle, ok := vehicles[plan.VehicleID]
		if !ok {
			continue
		}
		tmpl := templates[plan.TemplateID]
		out = append(out, DerivedPlan{
			Plan:     plan,
			Vehicle:  vehicle,
			Template: tmpl,
			Result:   Derive(plan, vehicle, tmpl, now),
		})
	}
	return out
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
