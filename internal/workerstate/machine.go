// Package workerstate tracks each worker's risk level over time and owns
// the alert hysteresis: one alert on entering Red, one escalation after
// staying Red for 30 days, and nothing else until the level changes.
package workerstate

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"

	"github.com/kpiconstruction/fleetrules/internal/alert"
	"github.com/kpiconstruction/fleetrules/internal/db"
	"github.com/kpiconstruction/fleetrules/internal/faults"
	"github.com/kpiconstruction/fleetrules/internal/models"
	"github.com/kpiconstruction/fleetrules/internal/risk"
)

// EscalationAfter is how long a worker must stay Red before the one-shot
// escalation fires.
const EscalationAfter = 30 * 24 * time.Hour

// Machine applies scored worker assessments to persisted risk statuses.
type Machine struct {
	statuses db.WorkerStatusCollection
	sender   alert.Sender
	clock    clockz.Clock
}

// NewMachine builds a state machine. A nil sender logs alerts instead of
// delivering them; a nil clock uses real time.
func NewMachine(statuses db.WorkerStatusCollection, sender alert.Sender, clock clockz.Clock) *Machine {
	if sender == nil {
		sender = alert.LogSender{}
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Machine{statuses: statuses, sender: sender, clock: clock}
}

// Outcome reports what a single Apply did.
type Outcome struct {
	WorkerKey       string           `json:"worker_key"`
	Level           models.RiskLevel `json:"level"`
	Created         bool             `json:"created"`
	LevelChanged    bool             `json:"level_changed"`
	AlertEmitted    bool             `json:"alert_emitted"`
	EscalationFired bool             `json:"escalation_fired"`
}

// Summary aggregates a full Run.
type Summary struct {
	Processed   int `json:"processed"`
	Created     int `json:"created"`
	Changed     int `json:"changed"`
	Alerts      int `json:"alerts"`
	Escalations int `json:"escalations"`
	AlertErrors int `json:"alert_errors"`
}

// Run applies every assessment in order and returns an aggregate summary.
// Alert delivery failures are logged per worker and never stop the run.
func (m *Machine) Run(ctx context.Context, assessments []risk.WorkerAssessment) (Summary, error) {
	var sum Summary
	for _, a := range assessments {
		out, err := m.Apply(ctx, a)
		if err != nil {
			return sum, err
		}
		sum.Processed++
		if out.Created {
			sum.Created++
		}
		if out.LevelChanged {
			sum.Changed++
		}
		if out.AlertEmitted {
			sum.Alerts++
		}
		if out.EscalationFired {
			sum.Escalations++
		}
	}
	return sum, nil
}

// Apply folds one assessment into the stored status for that worker,
// emitting alerts where the hysteresis rules call for them. Persistence
// errors are returned; delivery errors only leave the sent flag unset so
// the next run retries.
func (m *Machine) Apply(ctx context.Context, a risk.WorkerAssessment) (Outcome, error) {
	now := m.clock.Now()

	existing, err := m.statuses.FindWorkerStatus(ctx, a.Key)
	if err != nil {
		return Outcome{}, &faults.Dependency{Op: "find worker status", Err: err}
	}

	out := Outcome{WorkerKey: a.Key, Level: a.Level}

	var status models.WorkerRiskStatus
	if existing == nil {
		out.Created = true
		status = models.WorkerRiskStatus{
			WorkerKey:        a.Key,
			WorkerName:       a.Name,
			CurrentRiskLevel: a.Level,
			FirstDetectedAt:  now,
		}
	} else {
		status = *existing
		status.WorkerName = a.Name
		if status.CurrentRiskLevel != a.Level {
			out.LevelChanged = true
			status.PreviousRiskLevel = status.CurrentRiskLevel
			status.CurrentRiskLevel = a.Level
			status.FirstDetectedAt = now
			status.AlertSent = false
			status.EscalationSent = false
		}
	}

	status.RiskScore = a.Score
	status.FailedPrestarts90 = a.FailedPrestarts90
	status.CriticalDefects90 = a.CriticalDefects90
	status.Incidents12m = a.Incidents12m
	status.HVNLIncidents12m = a.HVNLIncidents12m
	status.AtFaultCount = a.AtFaultCount
	status.UpdatedAt = now

	if status.CurrentRiskLevel == models.RiskRed {
		if !status.AlertSent {
			if m.emit(ctx, alert.KindInitial, status) {
				status.AlertSent = true
				out.AlertEmitted = true
			}
		} else if !status.EscalationSent && now.Sub(status.FirstDetectedAt) >= EscalationAfter {
			if m.emit(ctx, alert.KindEscalation, status) {
				status.EscalationSent = true
				out.EscalationFired = true
			}
		}
	}

	if err := m.statuses.UpsertWorkerStatus(ctx, status); err != nil {
		return Outcome{}, &faults.Dependency{Op: "upsert worker status", Err: err}
	}
	return out, nil
}

// emit delivers one alert, reporting success. Failures are wrapped and
// logged here so callers only see the retained flag.
func (m *Machine) emit(ctx context.Context, kind alert.Kind, status models.WorkerRiskStatus) bool {
	a := alert.WorkerAlert{
		Kind:            kind,
		WorkerKey:       status.WorkerKey,
		WorkerName:      status.WorkerName,
		RiskLevel:       status.CurrentRiskLevel,
		PreviousLevel:   status.PreviousRiskLevel,
		RiskScore:       status.RiskScore,
		FirstDetectedAt: status.FirstDetectedAt,
		EmittedAt:       m.clock.Now(),
	}
	if err := m.sender.SendWorkerAlert(ctx, a); err != nil {
		wrapped := &faults.Dependency{Op: fmt.Sprintf("send %s", kind), Err: err}
		log.WithFields(log.Fields{
			"worker_key": status.WorkerKey,
			"kind":       kind,
		}).WithError(wrapped).Warn("Alert delivery failed, will retry next run")
		return false
	}
	return true
}
