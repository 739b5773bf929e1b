// Package costs applies the ownership-based cost attribution rules and the
// advisory anomaly checks to service records. Attribution is a pure
// function of the record, its vehicle, and the optional work order context;
// anomaly detection additionally reads the vehicle's service history.
package costs

import (
	"github.com/kpiconstruction/fleetrules/internal/models"
)

// Attribute derives cost_chargeable_to and zeroes or passes the monetary
// fields by ownership type. The input is copied; callers own the write-back.
//
// Owned vehicles default to KPI and never have costs altered. Hire-fleet
// scheduled/provider/warranty work belongs to the hire provider with costs
// zeroed, unless the record was explicitly marked KPI. Corrective work on
// hire vehicles passes through for KPI/Client/Shared, otherwise it is also
// the provider's. Breakdowns and unknown ownership default to KPI.
func Attribute(rec models.ServiceRecord, vehicle *models.Vehicle, wo *models.MaintenanceWorkOrder) models.ServiceRecord {
	if vehicle == nil || !vehicle.Ownership.Known() {
		if rec.CostChargeableTo == "" {
			rec.CostChargeableTo = models.ChargeKPI
		}
		return rec
	}

	if vehicle.Ownership == models.OwnershipOwned {
		if rec.CostChargeableTo == "" {
			rec.CostChargeableTo = models.ChargeKPI
		}
		return rec
	}

	// Hire fleet from here.
	switch {
	case rec.ServiceType.ProviderCovered():
		if rec.CostChargeableTo == models.ChargeKPI {
			return rec // explicit KPI override, costs untouched
		}
		rec.CostChargeableTo = models.ChargeHireProvider
		zeroCosts(&rec)

	case rec.ServiceType == models.ServiceBreakdown:
		if rec.CostChargeableTo == "" {
			rec.CostChargeableTo = models.ChargeKPI
		}

	case rec.ServiceType.Corrective() || (wo != nil && wo.Corrective()):
		switch rec.CostChargeableTo {
		case models.ChargeKPI, models.ChargeClient, models.ChargeShared:
			// pass through
		default:
			rec.CostChargeableTo = models.ChargeHireProvider
			zeroCosts(&rec)
		}

	default:
		if rec.CostChargeableTo == "" {
			rec.CostChargeableTo = models.ChargeKPI
		}
	}
	return rec
}

func zeroCosts(rec *models.ServiceRecord) {
	rec.CostExGST = 0
	rec.LabourCost = 0
	rec.PartsCost = 0
}

// ApplyRules runs attribution then anomaly detection, returning the fully
// ruled record. Anomalies are advisory: the record is never rejected.
func ApplyRules(rec models.ServiceRecord, vehicle *models.Vehicle, wo *models.MaintenanceWorkOrder, history []models.ServiceRecord) models.ServiceRecord {
	out := Attribute(rec, vehicle, wo)
	out.CostAnomalyFlag, out.CostAnomalyReason = DetectAnomalies(out, vehicle, history)
	return out
}
