// Package alert is the delivery collaborator boundary for worker risk
// alerts. The state machine decides whether to emit; delivery itself is
// behind the Sender interface so failures never block status persistence.
package alert

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

// Kind distinguishes the immediate alert from the 30-day escalation.
type Kind string

const (
	KindInitial    Kind = "worker_risk_alert"
	KindEscalation Kind = "worker_risk_escalation"
)

// WorkerAlert is the payload handed to the delivery side (the ops email
// bridge subscribes downstream).
type WorkerAlert struct {
	Kind            Kind             `json:"kind"`
	WorkerKey       string           `json:"worker_key"`
	WorkerName      string           `json:"worker_name"`
	RiskLevel       models.RiskLevel `json:"risk_level"`
	PreviousLevel   models.RiskLevel `json:"previous_level,omitempty"`
	RiskScore       int              `json:"risk_score"`
	FirstDetectedAt time.Time        `json:"first_detected_datetime"`
	EmittedAt       time.Time        `json:"emitted_at"`
}

// Sender delivers worker alerts.
type Sender interface {
	SendWorkerAlert(ctx context.Context, a WorkerAlert) error
}

// LogSender writes alerts to the structured log. Default when no broker is
// configured, and the drop-in for tests.
type LogSender struct{}

// SendWorkerAlert logs the alert.
func (LogSender) SendWorkerAlert(_ context.Context, a WorkerAlert) error {
	log.WithFields(log.Fields{
		"kind":       a.Kind,
		"worker_key": a.WorkerKey,
		"risk_level": a.RiskLevel,
		"risk_score": a.RiskScore,
	}).Info("Worker risk alert")
	return nil
}
