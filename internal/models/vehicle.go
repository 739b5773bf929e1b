package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OwnershipType classifies how a vehicle is held on the fleet.
type OwnershipType string

const (
	OwnershipOwned        OwnershipType = "Owned"
	OwnershipContractHire OwnershipType = "ContractHire"
	OwnershipDayHire      OwnershipType = "DayHire"
)

// Known reports whether the ownership type is one of the defined values.
// Unknown ownership is tolerated downstream (cost rules default it to KPI).
func (o OwnershipType) Known() bool {
	switch o {
	case OwnershipOwned, OwnershipContractHire, OwnershipDayHire:
		return true
	default:
		return false
	}
}

// Vehicle represents a fleet asset.
type Vehicle struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssetCode         string             `bson:"asset_code" json:"asset_code"`
	Rego              string             `bson:"rego" json:"rego"`
	VIN               string             `bson:"vin" json:"vin"`
	AssetType         string             `bson:"asset_type" json:"asset_type"`
	FunctionClass     string             `bson:"function_class" json:"function_class"`
	Ownership         OwnershipType      `bson:"ownership_type" json:"ownership_type"`
	HireProvider      string             `bson:"hire_provider,omitempty" json:"hire_provider,omitempty"`
	CurrentOdometerKm float64            `bson:"current_odometer_km" json:"current_odometer_km"`
	State             string             `bson:"state" json:"state"`
	Depot             string             `bson:"depot" json:"depot"`
	Status            string             `bson:"status" json:"status"` // "active" or "disposed"
	InServiceDate     *time.Time         `bson:"in_service_date,omitempty" json:"in_service_date,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// OnHire reports whether costs on this vehicle fall under a hire arrangement.
func (v *Vehicle) OnHire() bool {
	return v.Ownership == OwnershipContractHire || v.Ownership == OwnershipDayHire
}

// Validate checks the vehicle snapshot at the ingestion boundary.
// One of rego/VIN acts as the natural dedup key, so at least one must be
// present.
func (v *Vehicle) Validate() error {
	if v.Rego == "" && v.VIN == "" {
		return errors.New("vehicle requires a rego or VIN")
	}
	if v.CurrentOdometerKm < 0 {
		return errors.New("current_odometer_km cannot be negative")
	}
	return nil
}
