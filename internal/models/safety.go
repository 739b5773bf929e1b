package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Severity grades safety events.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// HighOrCritical reports whether the severity is in the top two grades.
func (s Severity) HighOrCritical() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// PrestartDefect is a fault raised during a driver's prestart check.
// WorkerName is free text; there is no stable worker identity upstream,
// so risk grouping keys on a normalized form of it.
type PrestartDefect struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID  string             `bson:"vehicle_id" json:"vehicle_id"`
	WorkerName string             `bson:"worker_name" json:"worker_name"`
	Severity   Severity           `bson:"severity" json:"severity"`
	Failed     bool               `bson:"failed" json:"failed"` // the prestart itself failed, not just a noted defect
	Status     string             `bson:"status" json:"status"` // "Open" or "Closed"
	RaisedAt   time.Time          `bson:"raised_at" json:"raised_at"`
}

// Open reports whether the defect is still outstanding.
func (d *PrestartDefect) Open() bool {
	return d.Status != "Closed"
}

// IncidentRecord is a reportable safety incident tied to a vehicle and
// optionally the worker involved.
type IncidentRecord struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID          string             `bson:"vehicle_id" json:"vehicle_id"`
	WorkerName         string             `bson:"worker_name,omitempty" json:"worker_name,omitempty"`
	Severity           Severity           `bson:"severity" json:"severity"`
	HVNLReportable     bool               `bson:"hvnl_reportable" json:"hvnl_reportable"`
	MaintenanceRelated bool               `bson:"maintenance_related" json:"maintenance_related"`
	AtFault            bool               `bson:"at_fault" json:"at_fault"`
	OccurredAt         time.Time          `bson:"occurred_at" json:"occurred_at"`
}
