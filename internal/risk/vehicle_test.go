package risk

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kpiconstruction/fleetrules/internal/models"
	"github.com/kpiconstruction/fleetrules/internal/schedule"
)

var scoreNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func hvnlDerived(vehicle *models.Vehicle, overdue bool, daysOver float64) schedule.DerivedPlan {
	res := schedule.Result{Status: schedule.StatusOnTrack}
	if overdue {
		res.Status = schedule.StatusOverdue
		res.IsOverdue = true
		res.DaysOverdue = &schedule.OverdueAmount{Kind: schedule.OverdueDays, Value: daysOver}
	}
	return schedule.DerivedPlan{
		Plan:     &models.MaintenancePlan{ID: primitive.NewObjectID(), VehicleID: vehicle.ID.Hex()},
		Vehicle:  vehicle,
		Template: &models.MaintenanceTemplate{HVNLRelevant: true},
		Result:   res,
	}
}

func TestScoreVehicles_SpecimenScenario(t *testing.T) {
	// 2 overdue HVNL plans and 1 open Critical defect raised outside the
	// 90-day window: 30 + 10 + 10 = 50, Medium.
	vehicle := &models.Vehicle{ID: primitive.NewObjectID(), Rego: "ABC123"}
	derived := []schedule.DerivedPlan{
		hvnlDerived(vehicle, true, 12),
		hvnlDerived(vehicle, true, 4),
	}
	defects := []models.PrestartDefect{
		{VehicleID: vehicle.ID.Hex(), Severity: models.SeverityCritical, Status: "Open", RaisedAt: scoreNow.AddDate(0, 0, -100)},
	}

	rows := ScoreVehicles(derived, defects, nil, nil, scoreNow)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.RiskScore != 50 {
		t.Errorf("risk_score = %v, want 50", row.RiskScore)
	}
	if row.RiskLevel != TierMedium {
		t.Errorf("risk_level = %s, want Medium", row.RiskLevel)
	}
	if row.HVNLOverdueCount != 2 || row.OpenCriticalDefects != 1 {
		t.Errorf("counters = %d overdue / %d open critical, want 2/1", row.HVNLOverdueCount, row.OpenCriticalDefects)
	}
	if row.MaxDaysOverdue != 12 {
		t.Errorf("max_days_overdue = %v, want 12", row.MaxDaysOverdue)
	}
}

func TestScoreVehicles_OnlyHVNLVehiclesScored(t *testing.T) {
	hvnl := &models.Vehicle{ID: primitive.NewObjectID(), Rego: "HVN001"}
	plain := &models.Vehicle{ID: primitive.NewObjectID(), Rego: "PLN001"}
	derived := []schedule.DerivedPlan{
		hvnlDerived(hvnl, false, 0),
		{
			Plan:     &models.MaintenancePlan{ID: primitive.NewObjectID(), VehicleID: plain.ID.Hex()},
			Vehicle:  plain,
			Template: &models.MaintenanceTemplate{HVNLRelevant: false},
			Result:   schedule.Result{Status: schedule.StatusOverdue, IsOverdue: true},
		},
	}

	rows := ScoreVehicles(derived, nil, nil, nil, scoreNow)
	if len(rows) != 1 || rows[0].VehicleID != hvnl.ID.Hex() {
		t.Fatalf("only the HVNL vehicle should be scored, got %+v", rows)
	}
}

func TestScoreVehicles_CapsAndClamp(t *testing.T) {
	vehicle := &models.Vehicle{ID: primitive.NewObjectID(), Rego: "ABC123"}
	var derived []schedule.DerivedPlan
	for i := 0; i < 10; i++ { // additional-overdue term must cap at 30
		derived = append(derived, hvnlDerived(vehicle, true, 1))
	}
	var defects []models.PrestartDefect
	for i := 0; i < 12; i++ { // recent high-severity term must cap at 25
		defects = append(defects, models.PrestartDefect{
			VehicleID: vehicle.ID.Hex(),
			Severity:  models.SeverityHigh,
			Status:    "Closed",
			RaisedAt:  scoreNow.AddDate(0, 0, -10),
		})
	}
	var wos []models.MaintenanceWorkOrder
	for i := 0; i < 20; i++ { // corrective term must cap at 15
		wos = append(wos, models.MaintenanceWorkOrder{
			VehicleID: vehicle.ID.Hex(),
			Type:      models.WorkOrderCorrective,
			Status:    models.WorkOrderCompleted,
			CreatedAt: scoreNow.AddDate(0, 0, -5),
		})
	}
	var incidents []models.IncidentRecord
	for i := 0; i < 5; i++ { // incident term must cap at 30
		incidents = append(incidents, models.IncidentRecord{
			VehicleID:          vehicle.ID.Hex(),
			MaintenanceRelated: true,
			OccurredAt:         scoreNow.AddDate(0, -6, 0),
		})
	}

	rows := ScoreVehicles(derived, defects, wos, incidents, scoreNow)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	// 30 + 30 + 0 open + 25 + 15 + 30 = 130, clamped.
	if rows[0].RiskScore != 100 {
		t.Errorf("risk_score = %v, want clamp at 100", rows[0].RiskScore)
	}
	if rows[0].RiskLevel != TierHigh {
		t.Errorf("risk_level = %s, want High", rows[0].RiskLevel)
	}
}

func TestTierFor_Monotonic(t *testing.T) {
	prev := tierFor(0)
	rank := map[Tier]int{TierLow: 0, TierMedium: 1, TierHigh: 2}
	for s := 1; s <= 100; s++ {
		cur := tierFor(float64(s))
		if rank[cur] < rank[prev] {
			t.Fatalf("tier dropped from %s to %s at score %d", prev, cur, s)
		}
		prev = cur
	}
	if tierFor(70) == TierLow {
		t.Error("score 70 can never be Low")
	}
}
