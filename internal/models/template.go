package models

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TriggerType says which interval(s) a maintenance template runs on.
type TriggerType string

const (
	TriggerTimeBased     TriggerType = "TimeBased"
	TriggerOdometerBased TriggerType = "OdometerBased"
	TriggerHybrid        TriggerType = "Hybrid"
)

// IncludesTime reports whether the template has a calendar trigger.
func (t TriggerType) IncludesTime() bool {
	return t == TriggerTimeBased || t == TriggerHybrid
}

// IncludesOdometer reports whether the template has a distance trigger.
func (t TriggerType) IncludesOdometer() bool {
	return t == TriggerOdometerBased || t == TriggerHybrid
}

// MaintenanceTemplate is immutable reference data describing a recurring
// service requirement.
type MaintenanceTemplate struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Trigger      TriggerType        `bson:"trigger_type" json:"trigger_type"`
	IntervalDays int                `bson:"interval_days,omitempty" json:"interval_days,omitempty"`
	IntervalKm   float64            `bson:"interval_km,omitempty" json:"interval_km,omitempty"`
	Priority     string             `bson:"priority" json:"priority"` // "low", "medium", "high", "critical"
	HVNLRelevant bool               `bson:"hvnl_relevant" json:"hvnl_relevant"`
}

// Validate checks the template at the ingestion boundary.
func (t *MaintenanceTemplate) Validate() error {
	switch t.Trigger {
	case TriggerTimeBased, TriggerOdometerBased, TriggerHybrid:
	default:
		return errors.New("invalid trigger_type")
	}
	if t.Trigger.IncludesTime() && t.IntervalDays <= 0 {
		return errors.New("time-triggered template requires interval_days")
	}
	if t.Trigger.IncludesOdometer() && t.IntervalKm <= 0 {
		return errors.New("odometer-triggered template requires interval_km")
	}
	return nil
}
