package risk

import (
	"sort"
	"time"

	"github.com/kpiconstruction/fleetrules/internal/models"
	"github.com/kpiconstruction/fleetrules/internal/schedule"
)

// ProviderStats are the operational rollups supplied per hire provider by
// the caller (downtime and turnaround live outside the engine's entities).
type ProviderStats struct {
	DowntimeEvents       int     `json:"downtime_events"`
	AvgTurnaroundHours   float64 `json:"avg_turnaround_hours"`
	OnTimeCompletionRate float64 `json:"on_time_completion_rate"` // percent, 0-100
}

// ProviderScore is the performance risk row for one hire provider.
type ProviderScore struct {
	Provider             string  `json:"provider"`
	RiskScore            float64 `json:"risk_score"`
	RiskLevel            Tier    `json:"risk_level"`
	HVNLOverduePlans     int     `json:"hvnl_overdue_plans"`
	DowntimeEvents       int     `json:"downtime_events"`
	AvgTurnaroundHours   float64 `json:"avg_turnaround_hours"`
	RepeatWOAssets90d    int     `json:"repeat_wo_assets_90d"`
	OnTimeCompletionRate float64 `json:"on_time_completion_rate"`
}

// ScoreProviders scores each hire provider over its assets. Contributions:
// 10 per HVNL-overdue plan (uncapped); 2 per downtime event (capped 20); a
// turnaround-delay term of (avgTurnaroundHours-24)/24*5, negative when the
// provider turns work around inside a day; 8 per asset with more than two
// corrective/defect work orders in the trailing 90 days; minus half the
// on-time completion rate. The final clamp is the only cap on the
// turnaround term.
func ScoreProviders(derived []schedule.DerivedPlan, workOrders []models.MaintenanceWorkOrder, stats map[string]ProviderStats, now time.Time) []ProviderScore {
	cutoff90 := now.AddDate(0, 0, -90)

	providerOf := make(map[string]string) // vehicle id -> provider
	rows := make(map[string]*ProviderScore)
	row := func(provider string) *ProviderScore {
		r, ok := rows[provider]
		if !ok {
			r = &ProviderScore{Provider: provider}
			if s, ok := stats[provider]; ok {
				r.DowntimeEvents = s.DowntimeEvents
				r.AvgTurnaroundHours = s.AvgTurnaroundHours
				r.OnTimeCompletionRate = s.OnTimeCompletionRate
			}
			rows[provider] = r
		}
		return r
	}

	for _, d := range derived {
		if d.Vehicle == nil || !d.Vehicle.OnHire() || d.Vehicle.HireProvider == "" {
			continue
		}
		provider := d.Vehicle.HireProvider
		providerOf[d.Vehicle.ID.Hex()] = provider
		r := row(provider)
		if d.Template != nil && d.Template.HVNLRelevant && d.Result.IsOverdue {
			r.HVNLOverduePlans++
		}
	}

	// Corrective work order counts per asset, then per-provider repeat
	// offenders (>2 in the window).
	correctivePerAsset := make(map[string]int)
	for i := range workOrders {
		wo := &workOrders[i]
		if wo.Corrective() && wo.CreatedAt.After(cutoff90) {
			correctivePerAsset[wo.VehicleID]++
		}
	}
	for vehicleID, count := range correctivePerAsset {
		provider, ok := providerOf[vehicleID]
		if !ok || count <= 2 {
			continue
		}
		row(provider).RepeatWOAssets90d++
	}

	out := make([]ProviderScore, 0, len(rows))
	for _, r := range rows {
		score := float64(r.HVNLOverduePlans) * 10
		score += capped(r.DowntimeEvents, 2, 20)
		score += (r.AvgTurnaroundHours - 24) / 24 * 5
		score += float64(r.RepeatWOAssets90d) * 8
		score -= r.OnTimeCompletionRate / 2

		r.RiskScore = clampScore(score)
		r.RiskLevel = tierFor(r.RiskScore)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
