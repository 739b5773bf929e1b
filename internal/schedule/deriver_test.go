package schedule

import (
	"testing"
	"time"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }
func kmPtr(v float64) *float64       { return &v }

func TestDerive_NilTemplate(t *testing.T) {
	plan := &models.MaintenancePlan{VehicleID: "v1", TemplateID: "t1"}
	vehicle := &models.Vehicle{Rego: "ABC123"}

	res := Derive(plan, vehicle, nil, testNow)
	if res.Status != StatusUnknown {
		t.Errorf("expected Unknown for nil template, got %s", res.Status)
	}
	if res.NextDueDate != nil || res.NextDueOdometerKm != nil {
		t.Error("nil template must not derive due values")
	}
}

func TestDerive_OdometerOverdueOverridesDate(t *testing.T) {
	// Date is comfortably in the future but the odometer has already
	// passed the due reading.
	plan := &models.MaintenancePlan{
		VehicleID:         "v1",
		TemplateID:        "t1",
		NextDueDate:       datePtr(testNow.AddDate(0, 2, 0)),
		NextDueOdometerKm: kmPtr(49000),
	}
	vehicle := &models.Vehicle{Rego: "ABC123", CurrentOdometerKm: 50000}
	tmpl := &models.MaintenanceTemplate{Trigger: models.TriggerHybrid, IntervalDays: 90, IntervalKm: 10000}

	res := Derive(plan, vehicle, tmpl, testNow)
	if res.Status != StatusOverdue {
		t.Fatalf("expected Overdue, got %s", res.Status)
	}
	if res.DaysOverdue == nil || res.DaysOverdue.Kind != OverdueKm || res.DaysOverdue.Value != 1000 {
		t.Errorf("expected 1000 km overdue, got %+v", res.DaysOverdue)
	}
	if res.DaysUntilDue != nil {
		t.Errorf("days_until_due must be nil when overdue, got %d", *res.DaysUntilDue)
	}
}

func TestDerive_OdometerOnlyScenario(t *testing.T) {
	plan := &models.MaintenancePlan{
		VehicleID:         "v1",
		TemplateID:        "t1",
		NextDueOdometerKm: kmPtr(49000),
	}
	vehicle := &models.Vehicle{Rego: "ABC123", CurrentOdometerKm: 50000}
	tmpl := &models.MaintenanceTemplate{Trigger: models.TriggerOdometerBased, IntervalKm: 10000}

	res := Derive(plan, vehicle, tmpl, testNow)
	if res.Status != StatusOverdue || !res.IsOverdue {
		t.Fatalf("expected Overdue, got %s", res.Status)
	}
	if res.DaysOverdue.Kind != OverdueKm || res.DaysOverdue.Value != 1000 {
		t.Errorf("expected km overdue of 1000, got %+v", res.DaysOverdue)
	}
	if res.DaysUntilDue != nil {
		t.Error("days_until_due must be nil when overdue")
	}
}

func TestDerive_DateStatuses(t *testing.T) {
	tests := []struct {
		name       string
		due        time.Time
		wantStatus Status
	}{
		{"overdue yesterday", testNow.AddDate(0, 0, -10), StatusOverdue},
		{"due inside window", testNow.AddDate(0, 0, 14), StatusDueSoon},
		{"due on window edge", testNow.Add(DueSoonWindow), StatusDueSoon},
		{"on track", testNow.AddDate(0, 0, 45), StatusOnTrack},
	}

	vehicle := &models.Vehicle{Rego: "ABC123"}
	tmpl := &models.MaintenanceTemplate{Trigger: models.TriggerTimeBased, IntervalDays: 90}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &models.MaintenancePlan{VehicleID: "v1", TemplateID: "t1", NextDueDate: datePtr(tt.due)}
			res := Derive(plan, vehicle, tmpl, testNow)
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if tt.wantStatus == StatusOverdue {
				if res.DaysOverdue == nil || res.DaysOverdue.Kind != OverdueDays {
					t.Errorf("expected days-kind overdue, got %+v", res.DaysOverdue)
				}
				if res.DaysUntilDue != nil {
					t.Error("days_until_due must be nil when overdue")
				}
			} else if res.DaysUntilDue == nil {
				t.Error("days_until_due must be set when not overdue")
			}
		})
	}
}

func TestDerive_DerivesDueValuesFromIntervals(t *testing.T) {
	last := testNow.AddDate(0, 0, -60)
	lastKm := 40000.0
	plan := &models.MaintenancePlan{
		VehicleID:               "v1",
		TemplateID:              "t1",
		LastCompletedDate:       &last,
		LastCompletedOdometerKm: &lastKm,
	}
	vehicle := &models.Vehicle{Rego: "ABC123", CurrentOdometerKm: 45000}
	tmpl := &models.MaintenanceTemplate{Trigger: models.TriggerHybrid, IntervalDays: 90, IntervalKm: 10000}

	res := Derive(plan, vehicle, tmpl, testNow)
	wantDate := last.AddDate(0, 0, 90)
	if res.NextDueDate == nil || !res.NextDueDate.Equal(wantDate) {
		t.Errorf("next_due_date = %v, want %v", res.NextDueDate, wantDate)
	}
	if res.NextDueOdometerKm == nil || *res.NextDueOdometerKm != 50000 {
		t.Errorf("next_due_odometer_km = %v, want 50000", res.NextDueOdometerKm)
	}
	if res.Status != StatusDueSoon {
		t.Errorf("expected DueSoon 30 days out, got %s", res.Status)
	}
}

func TestDerive_NoIntervalLeavesDueNil(t *testing.T) {
	plan := &models.MaintenancePlan{VehicleID: "v1", TemplateID: "t1"}
	vehicle := &models.Vehicle{Rego: "ABC123", CurrentOdometerKm: 45000}
	tmpl := &models.MaintenanceTemplate{Trigger: models.TriggerTimeBased, IntervalDays: 90}

	res := Derive(plan, vehicle, tmpl, testNow)
	if res.NextDueOdometerKm != nil {
		t.Error("odometer due must stay nil without an odometer trigger")
	}
	if res.NextDueDate == nil {
		t.Error("time trigger with interval_days must derive a due date")
	}
}

func TestDerive_FallbackBases(t *testing.T) {
	// No completion history: the time base falls back to the in-service
	// date and the odometer base to the current reading.
	inService := testNow.AddDate(0, -1, 0)
	plan := &models.MaintenancePlan{VehicleID: "v1", TemplateID: "t1"}
	vehicle := &models.Vehicle{Rego: "ABC123", CurrentOdometerKm: 12000, InServiceDate: &inService}
	tmpl := &models.MaintenanceTemplate{Trigger: models.TriggerHybrid, IntervalDays: 180, IntervalKm: 5000}

	res := Derive(plan, vehicle, tmpl, testNow)
	wantDate := inService.AddDate(0, 0, 180)
	if res.NextDueDate == nil || !res.NextDueDate.Equal(wantDate) {
		t.Errorf("next_due_date = %v, want %v", res.NextDueDate, wantDate)
	}
	if res.NextDueOdometerKm == nil || *res.NextDueOdometerKm != 17000 {
		t.Errorf("next_due_odometer_km = %v, want 17000", res.NextDueOdometerKm)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	plan := &models.MaintenancePlan{
		VehicleID:         "v1",
		TemplateID:        "t1",
		NextDueDate:       datePtr(testNow.AddDate(0, 0, -3)),
		NextDueOdometerKm: kmPtr(60000),
	}
	vehicle := &models.Vehicle{Rego: "ABC123", CurrentOdometerKm: 50000}
	tmpl := &models.MaintenanceTemplate{Trigger: models.TriggerHybrid, IntervalDays: 90, IntervalKm: 10000, HVNLRelevant: true}

	a := Derive(plan, vehicle, tmpl, testNow)
	b := Derive(plan, vehicle, tmpl, testNow)
	if a.Status != b.Status || *a.DaysOverdue != *b.DaysOverdue || a.IsHVNLCritical != b.IsHVNLCritical {
		t.Error("Derive must be deterministic for identical inputs")
	}
	if !a.IsHVNLCritical {
		t.Error("HVNL-relevant template must mark the plan HVNL-critical")
	}
}

func TestDeriveAll_SkipsInactiveAndUnmatched(t *testing.T) {
	plans := []models.MaintenancePlan{
		{VehicleID: "v1", TemplateID: "t1", Status: "active"},
		{VehicleID: "v1", TemplateID: "missing"},
		{VehicleID: "ghost", TemplateID: "t1"},
		{VehicleID: "v1", TemplateID: "t1", Status: "suspended"},
	}
	vehicles := map[string]*models.Vehicle{"v1": {Rego: "ABC123", CurrentOdometerKm: 1000}}
	templates := map[string]*models.MaintenanceTemplate{
		"t1": {Trigger: models.TriggerTimeBased, IntervalDays: 30},
	}

	out := DeriveAll(plans, vehicles, templates, testNow)
	if len(out) != 2 {
		t.Fatalf("expected 2 derived plans, got %d", len(out))
	}
	if out[1].Result.Status != StatusUnknown {
		t.Errorf("missing template must derive Unknown, got %s", out[1].Result.Status)
	}
}
