package risk

import (
	"sort"
	"time"

	"github.com/kpiconstruction/fleetrules/internal/models"
	"github.com/kpiconstruction/fleetrules/internal/schedule"
)

// VehicleScore is the HVNL risk row for one vehicle. Field names are part
// of the export contract.
type VehicleScore struct {
	VehicleID               string  `json:"vehicle_id"`
	RiskScore               float64 `json:"risk_score"`
	RiskLevel               Tier    `json:"risk_level"`
	HVNLOverdueCount        int     `json:"hvnl_overdue_count"`
	MaxDaysOverdue          float64 `json:"max_days_overdue"`
	OpenCriticalDefects     int     `json:"open_critical_defects"`
	RecentDefects90d        int     `json:"recent_defects_90d"`
	RecentCorrectiveWOs90d  int     `json:"recent_corrective_wos_90d"`
	MaintenanceIncidents12m int     `json:"maintenance_incidents_12m"`
}

// ScoreVehicles scores every vehicle that carries at least one active
// HVNL-relevant plan. Vehicles without HVNL exposure are not scored at all.
//
// Contributions: 30 for the first overdue HVNL plan plus 10 per additional
// (capped at 30); 10 per open Critical/High defect, uncapped; 5 per
// high-severity defect raised in the trailing 90 days (capped 25); 3 per
// corrective/defect work order raised in the trailing 90 days (capped 15);
// 15 per maintenance-related incident in the trailing 12 months (capped 30).
func ScoreVehicles(derived []schedule.DerivedPlan, defects []models.PrestartDefect, workOrders []models.MaintenanceWorkOrder, incidents []models.IncidentRecord, now time.Time) []VehicleScore {
	cutoff90 := now.AddDate(0, 0, -90)
	cutoff12m := now.AddDate(-1, 0, 0)

	rows := make(map[string]*VehicleScore)
	for _, d := range derived {
		if d.Template == nil || !d.Template.HVNLRelevant || d.Vehicle == nil {
			continue
		}
		id := d.Vehicle.ID.Hex()
		row, ok := rows[id]
		if !ok {
			row = &VehicleScore{VehicleID: id}
			rows[id] = row
		}
		if d.Result.IsOverdue {
			row.HVNLOverdueCount++
			if od := d.Result.DaysOverdue; od != nil && od.Kind == schedule.OverdueDays && od.Value > row.MaxDaysOverdue {
				row.MaxDaysOverdue = od.Value
			}
		}
	}

	for i := range defects {
		def := &defects[i]
		row, ok := rows[def.VehicleID]
		if !ok {
			continue
		}
		if def.Open() && def.Severity.HighOrCritical() {
			row.OpenCriticalDefects++
		}
		if def.Severity.HighOrCritical() && def.RaisedAt.After(cutoff90) {
			row.RecentDefects90d++
		}
	}

	for i := range workOrders {
		wo := &workOrders[i]
		row, ok := rows[wo.VehicleID]
		if !ok {
			continue
		}
		if wo.Corrective() && wo.CreatedAt.After(cutoff90) {
			row.RecentCorrectiveWOs90d++
		}
	}

	for i := range incidents {
		inc := &incidents[i]
		row, ok := rows[inc.VehicleID]
		if !ok {
			continue
		}
		if inc.MaintenanceRelated && inc.OccurredAt.After(cutoff12m) {
			row.MaintenanceIncidents12m++
		}
	}

	out := make([]VehicleScore, 0, len(rows))
	for _, row := range rows {
		score := 0.0
		if row.HVNLOverdueCount > 0 {
			score += 30
			score += capped(row.HVNLOverdueCount-1, 10, 30)
		}
		score += float64(row.OpenCriticalDefects) * 10
		score += capped(row.RecentDefects90d, 5, 25)
		score += capped(row.RecentCorrectiveWOs90d, 3, 15)
		score += capped(row.MaintenanceIncidents12m, 15, 30)

		row.RiskScore = clampScore(score)
		row.RiskLevel = tierFor(row.RiskScore)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}
