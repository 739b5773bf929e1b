package costs

import (
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

var anomalyDate = time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

func TestDetectAnomalies_HireProviderWithCost(t *testing.T) {
	rec := models.ServiceRecord{
		ServiceType:      models.ServiceWarranty,
		CostChargeableTo: models.ChargeHireProvider,
		CostExGST:        120,
		ServiceDate:      anomalyDate,
	}
	flag, reason := DetectAnomalies(rec, hireVehicle(), nil)
	if !flag || !strings.Contains(reason, "hire-provider") {
		t.Errorf("expected hire-provider cost anomaly, got %v %q", flag, reason)
	}
}

func TestDetectAnomalies_ZeroCostAfterPaidScheduled(t *testing.T) {
	vehicle := ownedVehicle()
	rec := models.ServiceRecord{
		ID:          primitive.NewObjectID(),
		ServiceType: models.ServiceScheduled,
		ServiceDate: anomalyDate,
		CostExGST:   0,
	}
	history := []models.ServiceRecord{
		{
			ID:          primitive.NewObjectID(),
			ServiceType: models.ServiceScheduled,
			ServiceDate: anomalyDate.AddDate(0, -2, 0),
			CostExGST:   800,
		},
	}
	flag, reason := DetectAnomalies(rec, vehicle, history)
	if !flag || !strings.Contains(reason, "zero cost") {
		t.Errorf("expected zero-cost anomaly, got %v %q", flag, reason)
	}

	// No paid predecessor: clean.
	flag, _ = DetectAnomalies(rec, vehicle, nil)
	if flag {
		t.Error("zero-cost service without a paid predecessor is not an anomaly")
	}
}

func TestDetectAnomalies_BreakdownMismatch(t *testing.T) {
	tests := []struct {
		name   string
		total  float64
		labour float64
		parts  float64
		want   bool
	}{
		{"reconciles exactly", 900, 500, 400, false},
		{"inside tolerance", 910, 500, 400, false},
		{"outside absolute tolerance", 950, 500, 400, true},
		{"outside percent tolerance", 2000, 1200, 600, true},
		{"no breakdown supplied", 500, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := models.ServiceRecord{
				ServiceType: models.ServiceCorrective,
				ServiceDate: anomalyDate,
				CostExGST:   tt.total,
				LabourCost:  tt.labour,
				PartsCost:   tt.parts,
			}
			flag, _ := DetectAnomalies(rec, ownedVehicle(), nil)
			if flag != tt.want {
				t.Errorf("flag = %v, want %v", flag, tt.want)
			}
		})
	}
}

func TestDetectAnomalies_RepeatComponent(t *testing.T) {
	rec := models.ServiceRecord{
		ID:          primitive.NewObjectID(),
		ServiceType: models.ServiceCorrective,
		ServiceDate: anomalyDate,
		Component:   "Brakes",
		CostExGST:   450,
	}
	history := []models.ServiceRecord{
		{
			ID:          primitive.NewObjectID(),
			ServiceType: models.ServiceCorrective,
			ServiceDate: anomalyDate.AddDate(0, 0, -12),
			Component:   "brakes",
			CostExGST:   800,
		},
	}
	flag, reason := DetectAnomalies(rec, ownedVehicle(), history)
	if !flag || !strings.Contains(reason, "Brakes") {
		t.Errorf("expected repeat-component anomaly, got %v %q", flag, reason)
	}

	// Same component but outside the window: clean.
	history[0].ServiceDate = anomalyDate.AddDate(0, 0, -45)
	if flag, _ := DetectAnomalies(rec, ownedVehicle(), history); flag {
		t.Error("repeat component outside 30 days is not an anomaly")
	}
}

func TestDetectAnomalies_CostOutlier(t *testing.T) {
	rec := models.ServiceRecord{
		ID:          primitive.NewObjectID(),
		ServiceType: models.ServiceScheduled,
		ServiceDate: anomalyDate,
		CostExGST:   2000,
	}
	history := []models.ServiceRecord{
		{ID: primitive.NewObjectID(), ServiceType: models.ServiceScheduled, ServiceDate: anomalyDate.AddDate(0, -1, 0), CostExGST: 400},
		{ID: primitive.NewObjectID(), ServiceType: models.ServiceScheduled, ServiceDate: anomalyDate.AddDate(0, -3, 0), CostExGST: 500},
	}
	flag, reason := DetectAnomalies(rec, ownedVehicle(), history)
	if !flag || !strings.Contains(reason, "trailing average") {
		t.Errorf("expected outlier anomaly, got %v %q", flag, reason)
	}
}

func TestDetectAnomalies_ReasonsConcatenated(t *testing.T) {
	rec := models.ServiceRecord{
		ServiceType:      models.ServiceScheduled,
		ServiceDate:      anomalyDate,
		CostChargeableTo: models.ChargeHireProvider,
		CostExGST:        1000,
		LabourCost:       100,
		PartsCost:        100,
	}
	flag, reason := DetectAnomalies(rec, hireVehicle(), nil)
	if !flag {
		t.Fatal("expected anomalies")
	}
	if !strings.Contains(reason, "; ") {
		t.Errorf("multiple reasons must be joined into one string, got %q", reason)
	}
}
