package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaintenancePlan pairs a vehicle with a maintenance template and tracks
// when the service was last completed and, optionally, an explicitly set
// next-due point. One active plan per (vehicle, template) is expected but
// not enforced here.
type MaintenancePlan struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID               string             `bson:"vehicle_id" json:"vehicle_id"`
	TemplateID              string             `bson:"template_id" json:"template_id"`
	LastCompletedDate       *time.Time         `bson:"last_completed_date,omitempty" json:"last_completed_date,omitempty"`
	LastCompletedOdometerKm *float64           `bson:"last_completed_odometer_km,omitempty" json:"last_completed_odometer_km,omitempty"`
	NextDueDate             *time.Time         `bson:"next_due_date,omitempty" json:"next_due_date,omitempty"`
	NextDueOdometerKm       *float64           `bson:"next_due_odometer_km,omitempty" json:"next_due_odometer_km,omitempty"`
	Status                  string             `bson:"status" json:"status"` // "active" or "suspended"
	CreatedAt               time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt               time.Time          `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the plan participates in scheduling and scoring.
func (p *MaintenancePlan) Active() bool {
	return p.Status == "" || p.Status == "active"
}

// Validate checks the plan at the ingestion boundary.
func (p *MaintenancePlan) Validate() error {
	if p.VehicleID == "" {
		return errors.New("plan requires a vehicle_id")
	}
	if p.TemplateID == "" {
		return errors.New("plan requires a template_id")
	}
	return nil
}
