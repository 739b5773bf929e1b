package costs

import (
	"math"
	"strings"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

const (
	// breakdownTolerancePct and breakdownToleranceAbs bound how far the
	// total may drift from labour+parts before it reads as an anomaly.
	breakdownTolerancePct = 0.05
	breakdownToleranceAbs = 10.0

	// repeatComponentDays and repeatComponentCost define the repeat
	// high-cost component window.
	repeatComponentDays = 30
	repeatComponentCost = 500.0

	// zeroCostLookbackDays is how far back a paid scheduled service makes
	// a following zero-cost scheduled service suspicious.
	zeroCostLookbackDays = 180

	// outlierMultiple flags costs above this multiple of the trailing
	// average for the same service type.
	outlierMultiple = 3.0
)

// DetectAnomalies runs the advisory cost checks. History is the vehicle's
// other service records; the record itself may appear in it and is skipped
// by ID. Matched reasons are concatenated into a single advisory string.
func DetectAnomalies(rec models.ServiceRecord, vehicle *models.Vehicle, history []models.ServiceRecord) (bool, string) {
	var reasons []string
	total := rec.CostExGST

	// (a) Hire-fleet provider-covered work attributed to the provider
	// should carry no cost.
	if vehicle != nil && vehicle.OnHire() && rec.ServiceType.ProviderCovered() &&
		rec.CostChargeableTo == models.ChargeHireProvider &&
		(rec.CostExGST > 0 || rec.LabourCost > 0 || rec.PartsCost > 0) {
		reasons = append(reasons, "non-zero cost on hire-provider service")
	}

	// (b) Zero-cost owned scheduled service right after a paid one.
	if vehicle != nil && vehicle.Ownership == models.OwnershipOwned &&
		rec.ServiceType == models.ServiceScheduled && total == 0 {
		cutoff := rec.ServiceDate.AddDate(0, 0, -zeroCostLookbackDays)
		for i := range history {
			h := &history[i]
			if h.ID == rec.ID || h.ServiceType != models.ServiceScheduled {
				continue
			}
			if h.CostExGST > 0 && h.ServiceDate.After(cutoff) && h.ServiceDate.Before(rec.ServiceDate) {
				reasons = append(reasons, "zero cost scheduled service after a recent paid scheduled service")
				break
			}
		}
	}

	// (c) Total drifting from the labour+parts breakdown. Only checked
	// when a breakdown was supplied at all.
	if rec.LabourCost > 0 || rec.PartsCost > 0 {
		breakdown := rec.LabourCost + rec.PartsCost
		tolerance := math.Max(breakdownTolerancePct*total, breakdownToleranceAbs)
		if math.Abs(total-breakdown) > tolerance {
			reasons = append(reasons, "total does not reconcile with labour+parts")
		}
	}

	// (d) Repeat high-cost work on the same component inside 30 days.
	if rec.Component != "" {
		cutoff := rec.ServiceDate.AddDate(0, 0, -repeatComponentDays)
		component := strings.ToLower(rec.Component)
		for i := range history {
			h := &history[i]
			if h.ID == rec.ID {
				continue
			}
			if strings.ToLower(h.Component) == component && h.CostExGST > repeatComponentCost &&
				h.ServiceDate.After(cutoff) && !h.ServiceDate.After(rec.ServiceDate) {
				reasons = append(reasons, "repeat high-cost service on "+rec.Component+" within 30 days")
				break
			}
		}
	}

	// (e) Cost well above the trailing average for this service type.
	if total > 0 {
		sum, n := 0.0, 0
		for i := range history {
			h := &history[i]
			if h.ID == rec.ID || h.ServiceType != rec.ServiceType {
				continue
			}
			if h.CostExGST > 0 && h.ServiceDate.Before(rec.ServiceDate) {
				sum += h.CostExGST
				n++
			}
		}
		if n > 0 && total > outlierMultiple*(sum/float64(n)) {
			reasons = append(reasons, "cost exceeds 3x trailing average for service type")
		}
	}

	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}
