package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Work order lifecycle states.
type WorkOrderStatus string

const (
	WorkOrderOpen       WorkOrderStatus = "Open"
	WorkOrderInProgress WorkOrderStatus = "InProgress"
	WorkOrderCompleted  WorkOrderStatus = "Completed"
)

// Work order types. Corrective and defect-repair orders feed the risk
// scorers and select the corrective branch of the cost rules.
type WorkOrderType string

const (
	WorkOrderScheduled    WorkOrderType = "Scheduled"
	WorkOrderCorrective   WorkOrderType = "Corrective"
	WorkOrderDefectRepair WorkOrderType = "DefectRepair"
	WorkOrderBreakdown    WorkOrderType = "Breakdown"
)

// MaintenanceWorkOrder is the unit of executed maintenance work, linked
// back to the plan, defect, or incident that raised it.
type MaintenanceWorkOrder struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID        string             `bson:"vehicle_id" json:"vehicle_id"`
	Type             WorkOrderType      `bson:"type" json:"type"`
	Source           string             `bson:"source" json:"source"` // "plan", "prestart", "incident", "manual"
	PlanID           string             `bson:"plan_id,omitempty" json:"plan_id,omitempty"`
	DefectID         string             `bson:"defect_id,omitempty" json:"defect_id,omitempty"`
	IncidentID       string             `bson:"incident_id,omitempty" json:"incident_id,omitempty"`
	ServiceRecordID  string             `bson:"service_record_id,omitempty" json:"service_record_id,omitempty"`
	Status           WorkOrderStatus    `bson:"status" json:"status"`
	DueDate          *time.Time         `bson:"due_date,omitempty" json:"due_date,omitempty"`
	Priority         string             `bson:"priority" json:"priority"`
	CostChargeableTo ChargeParty        `bson:"cost_chargeable_to,omitempty" json:"cost_chargeable_to,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// Corrective reports whether the order arose from a fault rather than the
// schedule.
func (w *MaintenanceWorkOrder) Corrective() bool {
	return w.Type == WorkOrderCorrective || w.Type == WorkOrderDefectRepair
}

// Validate checks the work order at the ingestion boundary.
func (w *MaintenanceWorkOrder) Validate() error {
	if w.VehicleID == "" {
		return errors.New("work order requires a vehicle_id")
	}
	switch w.Status {
	case WorkOrderOpen, WorkOrderInProgress, WorkOrderCompleted:
	default:
		return errors.New("invalid work order status")
	}
	switch w.Type {
	case WorkOrderScheduled, WorkOrderCorrective, WorkOrderDefectRepair, WorkOrderBreakdown:
	default:
		return errors.New("invalid work order type")
	}
	return nil
}
