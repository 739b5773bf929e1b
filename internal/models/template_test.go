package models

import (
	"testing"
)

func TestTriggerType_Includes(t *testing.T) {
	tests := []struct {
		name         string
		trigger      TriggerType
		includesTime bool
		includesOdo  bool
	}{
		{"time based", TriggerTimeBased, true, false},
		{"odometer based", TriggerOdometerBased, false, true},
		{"hybrid", TriggerHybrid, true, true},
		{"unknown", "EngineHours", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trigger.IncludesTime(); got != tt.includesTime {
				t.Errorf("IncludesTime() = %v, want %v", got, tt.includesTime)
			}
			if got := tt.trigger.IncludesOdometer(); got != tt.includesOdo {
				t.Errorf("IncludesOdometer() = %v, want %v", got, tt.includesOdo)
			}
		})
	}
}

func TestMaintenanceTemplate_Validate(t *testing.T) {
	tests := []struct {
		name     string
		template MaintenanceTemplate
		wantErr  bool
	}{
		{"valid time based", MaintenanceTemplate{Name: "90 Day HVNL Inspection", Trigger: TriggerTimeBased, IntervalDays: 90}, false},
		{"valid odometer based", MaintenanceTemplate{Name: "10k Service", Trigger: TriggerOdometerBased, IntervalKm: 10000}, false},
		{"valid hybrid", MaintenanceTemplate{Name: "Major Service", Trigger: TriggerHybrid, IntervalDays: 180, IntervalKm: 20000}, false},
		{"invalid trigger", MaintenanceTemplate{Name: "Bad", Trigger: "EngineHours", IntervalDays: 90}, true},
		{"time based missing interval days", MaintenanceTemplate{Name: "Bad", Trigger: TriggerTimeBased}, true},
		{"odometer based missing interval km", MaintenanceTemplate{Name: "Bad", Trigger: TriggerOdometerBased}, true},
		{"hybrid missing interval km", MaintenanceTemplate{Name: "Bad", Trigger: TriggerHybrid, IntervalDays: 180}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.template.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
