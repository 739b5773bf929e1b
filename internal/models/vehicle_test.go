package models

import (
	"testing"
)

func TestOwnershipType_Known(t *testing.T) {
	tests := []struct {
		name      string
		ownership OwnershipType
		expected  bool
	}{
		{"owned", OwnershipOwned, true},
		{"contract hire", OwnershipContractHire, true},
		{"day hire", OwnershipDayHire, true},
		{"unknown value", "Leased", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ownership.Known(); got != tt.expected {
				t.Errorf("Known() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestVehicle_OnHire(t *testing.T) {
	owned := &Vehicle{Ownership: OwnershipOwned}
	contract := &Vehicle{Ownership: OwnershipContractHire, HireProvider: "Coates Hire"}
	day := &Vehicle{Ownership: OwnershipDayHire}

	if owned.OnHire() {
		t.Error("owned vehicle should not be on hire")
	}
	if !contract.OnHire() {
		t.Error("contract hire vehicle should be on hire")
	}
	if !day.OnHire() {
		t.Error("day hire vehicle should be on hire")
	}
}

func TestVehicle_Validate(t *testing.T) {
	tests := []struct {
		name    string
		vehicle Vehicle
		wantErr bool
	}{
		{"rego only", Vehicle{Rego: "ABC123"}, false},
		{"vin only", Vehicle{VIN: "6T9ABC123DEF45678"}, false},
		{"neither rego nor vin", Vehicle{AssetCode: "T-001"}, true},
		{"negative odometer", Vehicle{Rego: "ABC123", CurrentOdometerKm: -1}, true},
		{"zero odometer ok", Vehicle{Rego: "ABC123", CurrentOdometerKm: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vehicle.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
