package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChargeParty is who carries the cost of a service.
type ChargeParty string

const (
	ChargeKPI          ChargeParty = "KPI"
	ChargeHireProvider ChargeParty = "HireProvider"
	ChargeClient       ChargeParty = "Client"
	ChargeShared       ChargeParty = "Shared"
)

// ServiceType is the context a service record was raised in.
type ServiceType string

const (
	ServiceScheduled    ServiceType = "Scheduled"
	ServiceHireProvider ServiceType = "HireProviderService"
	ServiceWarranty     ServiceType = "Warranty"
	ServiceCorrective   ServiceType = "Corrective"
	ServiceDefectRepair ServiceType = "DefectRepair"
	ServiceBreakdown    ServiceType = "Breakdown"
)

// ProviderCovered reports whether the service type is one the hire
// provider is expected to fund on hire-fleet vehicles.
func (s ServiceType) ProviderCovered() bool {
	return s == ServiceScheduled || s == ServiceHireProvider || s == ServiceWarranty
}

// Corrective reports whether the service was raised from a fault.
func (s ServiceType) Corrective() bool {
	return s == ServiceCorrective || s == ServiceDefectRepair
}

// ServiceRecord is a completed service with its cost breakdown and the
// attribution/anomaly fields the cost rules write back.
type ServiceRecord struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID         string             `bson:"vehicle_id" json:"vehicle_id"`
	WorkOrderID       string             `bson:"work_order_id,omitempty" json:"work_order_id,omitempty"`
	ServiceType       ServiceType        `bson:"service_type" json:"service_type"`
	ServiceDate       time.Time          `bson:"service_date" json:"service_date"`
	OdometerKm        float64            `bson:"odometer_km" json:"odometer_km"`
	Component         string             `bson:"component,omitempty" json:"component,omitempty"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	CostExGST         float64            `bson:"cost_ex_gst" json:"cost_ex_gst"`
	LabourCost        float64            `bson:"labour_cost" json:"labour_cost"`
	PartsCost         float64            `bson:"parts_cost" json:"parts_cost"`
	CostChargeableTo  ChargeParty        `bson:"cost_chargeable_to,omitempty" json:"cost_chargeable_to,omitempty"`
	CostAnomalyFlag   bool               `bson:"cost_anomaly_flag" json:"cost_anomaly_flag"`
	CostAnomalyReason string             `bson:"cost_anomaly_reason,omitempty" json:"cost_anomaly_reason,omitempty"`
	ExternalRef       string             `bson:"external_ref,omitempty" json:"external_ref,omitempty"`
	ImportRowID       string             `bson:"import_row_id,omitempty" json:"import_row_id,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// Validate checks the record at the ingestion boundary.
func (r *ServiceRecord) Validate() error {
	if r.VehicleID == "" {
		return errors.New("service record requires a vehicle_id")
	}
	if r.ServiceDate.IsZero() {
		return errors.New("service record requires a service_date")
	}
	switch r.ServiceType {
	case ServiceScheduled, ServiceHireProvider, ServiceWarranty,
		ServiceCorrective, ServiceDefectRepair, ServiceBreakdown:
	default:
		return errors.New("invalid service_type")
	}
	if r.CostChargeableTo != "" {
		switch r.CostChargeableTo {
		case ChargeKPI, ChargeHireProvider, ChargeClient, ChargeShared:
		default:
			return errors.New("invalid cost_chargeable_to")
		}
	}
	return nil
}
