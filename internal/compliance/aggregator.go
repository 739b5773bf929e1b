// Package compliance rolls derived maintenance plans up into on-time
// completion metrics, overall and sliced by state, function class, and the
// HVNL-relevant subset.
package compliance

import (
	"time"

	"github.com/kpiconstruction/fleetrules/internal/models"
	"github.com/kpiconstruction/fleetrules/internal/schedule"
)

// Window is the reporting period, inclusive of both ends.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Stats is the five-field rollup shape. Key casing is part of the export
// contract.
type Stats struct {
	PlansDueInPeriod        int     `json:"plansDueInPeriod"`
	ServicesCompletedOnTime int     `json:"servicesCompletedOnTime"`
	ServicesCompletedLate   int     `json:"servicesCompletedLate"`
	PlansStillOverdue       int     `json:"plansStillOverdue"`
	OnTimeCompliancePercent float64 `json:"onTimeCompliancePercent"`
}

// Report is the full aggregate.
type Report struct {
	Overall         Stats            `json:"overall"`
	ByState         map[string]Stats `json:"byState"`
	ByFunctionClass map[string]Stats `json:"byFunctionClass"`
	HVNL            Stats            `json:"hvnl"`
}

// Aggregator computes reports through an injected cache.
type Aggregator struct {
	cache Cache
}

// NewAggregator builds an aggregator. A nil cache disables caching.
func NewAggregator(cache Cache) *Aggregator {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Aggregator{cache: cache}
}

// Aggregate returns the cached report for key, computing and storing it on
// a miss.
func (a *Aggregator) Aggregate(key string, derived []schedule.DerivedPlan, workOrders []models.MaintenanceWorkOrder, records []models.ServiceRecord, window Window) *Report {
	if r, ok := a.cache.Get(key); ok {
		return r
	}
	r := Aggregate(derived, workOrders, records, window)
	a.cache.Set(key, r)
	return r
}

// Invalidate drops one cached aggregate by key.
func (a *Aggregator) Invalidate(key string) { a.cache.Invalidate(key) }

// InvalidateAll drops every cached aggregate.
func (a *Aggregator) InvalidateAll() { a.cache.InvalidateAll() }

// planOutcome is what one derived plan contributes to the rollups.
type planOutcome struct {
	dueInPeriod  bool
	onTime       bool
	late         bool
	stillOverdue bool
}

// Aggregate computes the report for one window. Pure.
func Aggregate(derived []schedule.DerivedPlan, workOrders []models.MaintenanceWorkOrder, records []models.ServiceRecord, window Window) *Report {
	recordsByID := make(map[string]*models.ServiceRecord, len(records))
	for i := range records {
		recordsByID[records[i].ID.Hex()] = &records[i]
	}
	completedByPlan := make(map[string][]*models.MaintenanceWorkOrder)
	for i := range workOrders {
		wo := &workOrders[i]
		if wo.PlanID != "" && wo.Status == models.WorkOrderCompleted {
			completedByPlan[wo.PlanID] = append(completedByPlan[wo.PlanID], wo)
		}
	}

	report := &Report{
		ByState:         make(map[string]Stats),
		ByFunctionClass: make(map[string]Stats),
	}

	for _, d := range derived {
		oc := outcomeFor(d, completedByPlan, recordsByID, window)

		apply(&report.Overall, oc)
		if d.Vehicle != nil {
			state := report.ByState[d.Vehicle.State]
			apply(&state, oc)
			report.ByState[d.Vehicle.State] = state

			fc := report.ByFunctionClass[d.Vehicle.FunctionClass]
			apply(&fc, oc)
			report.ByFunctionClass[d.Vehicle.FunctionClass] = fc
		}
		if d.Template != nil && d.Template.HVNLRelevant {
			apply(&report.HVNL, oc)
		}
	}

	finalize(&report.Overall)
	for k, s := range report.ByState {
		finalize(&s)
		report.ByState[k] = s
	}
	for k, s := range report.ByFunctionClass {
		finalize(&s)
		report.ByFunctionClass[k] = s
	}
	finalize(&report.HVNL)
	return report
}

func outcomeFor(d schedule.DerivedPlan, completedByPlan map[string][]*models.MaintenanceWorkOrder, recordsByID map[string]*models.ServiceRecord, window Window) planOutcome {
	var oc planOutcome
	due := d.Result.NextDueDate
	planID := d.Plan.ID.Hex()

	// Completion = a Completed work order for the plan with a linked
	// service record. The earliest linked service date decides timeliness.
	var completion *models.ServiceRecord
	for _, wo := range completedByPlan[planID] {
		if wo.ServiceRecordID == "" {
			continue
		}
		rec, ok := recordsByID[wo.ServiceRecordID]
		if !ok {
			continue
		}
		if completion == nil || rec.ServiceDate.Before(completion.ServiceDate) {
			completion = rec
		}
	}

	if due != nil && window.Contains(*due) {
		oc.dueInPeriod = true
		if completion != nil {
			if !completion.ServiceDate.After(*due) {
				oc.onTime = true
			} else {
				oc.late = true
			}
		}
	}

	// Still overdue asks only whether any completed work order exists for
	// the plan. A completion without a linked service record cannot date the
	// service, so it never counts as on time or late, but it does clear the
	// overdue flag.
	if d.Result.IsOverdue && due != nil && due.Before(window.End) && len(completedByPlan[planID]) == 0 {
		oc.stillOverdue = true
	}
	return oc
}

func apply(s *Stats, oc planOutcome) {
	if oc.dueInPeriod {
		s.PlansDueInPeriod++
	}
	if oc.onTime {
		s.ServicesCompletedOnTime++
	}
	if oc.late {
		s.ServicesCompletedLate++
	}
	if oc.stillOverdue {
		s.PlansStillOverdue++
	}
}

// finalize computes the percentage, defined as 0 when nothing completed.
func finalize(s *Stats) {
	done := s.ServicesCompletedOnTime + s.ServicesCompletedLate
	if done == 0 {
		s.OnTimeCompliancePercent = 0
		return
	}
	s.OnTimeCompliancePercent = float64(s.ServicesCompletedOnTime) / float64(done) * 100
}
