package risk

import (
	"sort"
	"strings"
	"time"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

// NameNormalizer maps a free-text worker name to its grouping key. There is
// no stable worker ID upstream, so the key IS the identity: two spellings
// that normalize differently are two workers. Whether they should ever be
// unified is unresolved upstream, so the strategy is pluggable and near
// matches are flagged, never merged.
type NameNormalizer func(string) string

// DefaultNormalizer lower-cases and collapses internal whitespace.
func DefaultNormalizer(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// WorkerCounters are the rolling safety counters for one worker key.
type WorkerCounters struct {
	Key               string `json:"worker_key"`
	Name              string `json:"worker_name"` // first raw spelling seen
	FailedPrestarts90 int    `json:"failed_prestarts_90d"`
	CriticalDefects90 int    `json:"critical_defects_90d"`
	Incidents12m      int    `json:"incidents_12m"`
	HVNLIncidents12m  int    `json:"hvnl_incidents_12m"`
	AtFaultCount      int    `json:"at_fault_count"`
}

// WorkerAssessment is counters plus the banded score and level.
type WorkerAssessment struct {
	WorkerCounters
	Score int              `json:"risk_score"`
	Level models.RiskLevel `json:"risk_level"`
}

// ScoreCounters applies the banded worker formula. Unlike the vehicle and
// provider scorers this is not a weighted sum of raw counts; each counter
// contributes a small step value once its band is reached.
func ScoreCounters(c WorkerCounters) (int, models.RiskLevel) {
	score := 0
	switch {
	case c.FailedPrestarts90 >= 5:
		score += 2
	case c.FailedPrestarts90 >= 3:
		score++
	}
	switch {
	case c.CriticalDefects90 >= 3:
		score += 2
	case c.CriticalDefects90 >= 2:
		score++
	}
	switch {
	case c.AtFaultCount >= 2:
		score += 3
	case c.AtFaultCount >= 1:
		score++
	}
	if c.HVNLIncidents12m > 0 {
		score += 3
	}

	level := models.RiskGreen
	switch {
	case score >= 5:
		level = models.RiskRed
	case score >= 3:
		level = models.RiskAmber
	}
	return score, level
}

// ScoreWorkers accumulates prestart, defect, and incident events by
// normalized worker name and scores each worker. The second return value
// lists advisory warnings for near-duplicate raw names.
func ScoreWorkers(defects []models.PrestartDefect, incidents []models.IncidentRecord, now time.Time, norm NameNormalizer) ([]WorkerAssessment, []string) {
	if norm == nil {
		norm = DefaultNormalizer
	}
	cutoff90 := now.AddDate(0, 0, -90)
	cutoff12m := now.AddDate(-1, 0, 0)

	counters := make(map[string]*WorkerCounters)
	grab := func(rawName string) *WorkerCounters {
		key := norm(rawName)
		if key == "" {
			return nil
		}
		c, ok := counters[key]
		if !ok {
			c = &WorkerCounters{Key: key, Name: rawName}
			counters[key] = c
		}
		return c
	}

	for i := range defects {
		def := &defects[i]
		c := grab(def.WorkerName)
		if c == nil {
			continue
		}
		if def.Failed && def.RaisedAt.After(cutoff90) {
			c.FailedPrestarts90++
		}
		if def.Severity == models.SeverityCritical && def.RaisedAt.After(cutoff90) {
			c.CriticalDefects90++
		}
	}

	for i := range incidents {
		inc := &incidents[i]
		c := grab(inc.WorkerName)
		if c == nil {
			continue
		}
		if inc.OccurredAt.After(cutoff12m) {
			c.Incidents12m++
			if inc.HVNLReportable {
				c.HVNLIncidents12m++
			}
		}
		if inc.AtFault {
			c.AtFaultCount++
		}
	}

	out := make([]WorkerAssessment, 0, len(counters))
	for _, c := range counters {
		score, level := ScoreCounters(*c)
		out = append(out, WorkerAssessment{WorkerCounters: *c, Score: score, Level: level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nearDuplicateWarnings(out)
}

// nearDuplicateWarnings flags pairs of worker keys that look like the same
// person: swapped name tokens or a single edit apart. Advisory only.
func nearDuplicateWarnings(workers []WorkerAssessment) []string {
	var warnings []string
	for i := 0; i < len(workers); i++ {
		for j := i + 1; j < len(workers); j++ {
			a, b := workers[i].Key, workers[j].Key
			if tokensSwapped(a, b) || editDistanceAtMostOne(a, b) {
				warnings = append(warnings, "possible duplicate worker names: "+workers[i].Name+" / "+workers[j].Name)
			}
		}
	}
	return warnings
}

func tokensSwapped(a, b string) bool {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) != 2 || len(tb) != 2 {
		return false
	}
	return ta[0] == tb[1] && ta[1] == tb[0]
}

func editDistanceAtMostOne(a, b string) bool {
	if a == b {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(b)-len(a) > 1 {
		return false
	}
	// At most one substitution, insertion, or deletion.
	i, j, edits := 0, 0, 0
	for i < len(a) && j < len(b) {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if len(a) == len(b) {
			i++
		}
		j++
	}
	return edits+(len(b)-j) <= 1
}
