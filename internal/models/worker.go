package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RiskLevel is the tiered worker safety classification.
type RiskLevel string

const (
	RiskGreen RiskLevel = "Green"
	RiskAmber RiskLevel = "Amber"
	RiskRed   RiskLevel = "Red"
)

// WorkerRiskStatus is the one aggregate the rules engine mutates across
// runs: created on first sighting of a worker, updated every run, never
// deleted. AlertSent and EscalationSent are one-shot per stay at the
// current level; a level change resets both.
type WorkerRiskStatus struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkerKey         string             `bson:"worker_key" json:"worker_key"` // normalized name
	WorkerName        string             `bson:"worker_name" json:"worker_name"`
	CurrentRiskLevel  RiskLevel          `bson:"current_risk_level" json:"current_risk_level"`
	PreviousRiskLevel RiskLevel          `bson:"previous_risk_level,omitempty" json:"previous_risk_level,omitempty"`
	RiskScore         int                `bson:"risk_score" json:"risk_score"`
	FirstDetectedAt   time.Time          `bson:"first_detected_datetime" json:"first_detected_datetime"`
	FailedPrestarts90 int                `bson:"failed_prestarts_90d" json:"failed_prestarts_90d"`
	CriticalDefects90 int                `bson:"critical_defects_90d" json:"critical_defects_90d"`
	Incidents12m      int                `bson:"incidents_12m" json:"incidents_12m"`
	HVNLIncidents12m  int                `bson:"hvnl_incidents_12m" json:"hvnl_incidents_12m"`
	AtFaultCount      int                `bson:"at_fault_count" json:"at_fault_count"`
	AlertSent         bool               `bson:"alert_sent" json:"alert_sent"`
	EscalationSent    bool               `bson:"escalation_sent" json:"escalation_sent"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}
