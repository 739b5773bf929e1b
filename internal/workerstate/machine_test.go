package workerstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kpiconstruction/fleetrules/internal/alert"
	"github.com/kpiconstruction/fleetrules/internal/models"
	"github.com/kpiconstruction/fleetrules/internal/risk"
)

type memStatuses struct {
	byKey map[string]models.WorkerRiskStatus
}

func newMemStatuses() *memStatuses {
	return &memStatuses{byKey: make(map[string]models.WorkerRiskStatus)}
}

func (m *memStatuses) FindWorkerStatus(_ context.Context, workerKey string) (*models.WorkerRiskStatus, error) {
	s, ok := m.byKey[workerKey]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStatuses) FindWorkerStatuses(_ context.Context, _ bson.M) ([]models.WorkerRiskStatus, error) {
	out := make([]models.WorkerRiskStatus, 0, len(m.byKey))
	for _, s := range m.byKey {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStatuses) UpsertWorkerStatus(_ context.Context, status models.WorkerRiskStatus) error {
	m.byKey[status.WorkerKey] = status
	return nil
}

type spySender struct {
	sent []alert.WorkerAlert
	fail bool
}

func (s *spySender) SendWorkerAlert(_ context.Context, a alert.WorkerAlert) error {
	if s.fail {
		return errors.New("broker unreachable")
	}
	s.sent = append(s.sent, a)
	return nil
}

func assessment(key string, score int, level models.RiskLevel) risk.WorkerAssessment {
	return risk.WorkerAssessment{
		WorkerCounters: risk.WorkerCounters{Key: key, Name: key},
		Score:          score,
		Level:          level,
	}
}

func TestApplyCreatesNewWorker(t *testing.T) {
	statuses := newMemStatuses()
	sender := &spySender{}
	clock := clockz.NewFakeClock()
	m := NewMachine(statuses, sender, clock)

	out, err := m.Apply(context.Background(), assessment("jane smith", 1, models.RiskGreen))
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.False(t, out.AlertEmitted)

	stored := statuses.byKey["jane smith"]
	assert.Equal(t, models.RiskGreen, stored.CurrentRiskLevel)
	assert.Equal(t, clock.Now(), stored.FirstDetectedAt)
	assert.Empty(t, sender.sent)
}

func TestApplyNewRedWorkerAlertsImmediately(t *testing.T) {
	statuses := newMemStatuses()
	sender := &spySender{}
	m := NewMachine(statuses, sender, clockz.NewFakeClock())

	out, err := m.Apply(context.Background(), assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.True(t, out.AlertEmitted)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, alert.KindInitial, sender.sent[0].Kind)
	assert.True(t, statuses.byKey["jane smith"].AlertSent)
}

func TestApplyUnchangedLevelUpdatesCountersOnly(t *testing.T) {
	statuses := newMemStatuses()
	sender := &spySender{}
	clock := clockz.NewFakeClock()
	m := NewMachine(statuses, sender, clock)
	ctx := context.Background()

	_, err := m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)
	first := statuses.byKey["jane smith"].FirstDetectedAt

	clock.Advance(24 * time.Hour)
	a := assessment("jane smith", 7, models.RiskRed)
	a.FailedPrestarts90 = 5
	out, err := m.Apply(ctx, a)
	require.NoError(t, err)

	assert.False(t, out.LevelChanged)
	assert.False(t, out.AlertEmitted, "alert is one-shot per stay at a level")
	stored := statuses.byKey["jane smith"]
	assert.Equal(t, first, stored.FirstDetectedAt, "first detected must survive counter updates")
	assert.Equal(t, 7, stored.RiskScore)
	assert.Equal(t, 5, stored.FailedPrestarts90)
	assert.Len(t, sender.sent, 1)
}

func TestApplyLevelChangeResetsHysteresis(t *testing.T) {
	statuses := newMemStatuses()
	sender := &spySender{}
	clock := clockz.NewFakeClock()
	m := NewMachine(statuses, sender, clock)
	ctx := context.Background()

	_, err := m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	out, err := m.Apply(ctx, assessment("jane smith", 3, models.RiskAmber))
	require.NoError(t, err)
	assert.True(t, out.LevelChanged)

	stored := statuses.byKey["jane smith"]
	assert.Equal(t, models.RiskAmber, stored.CurrentRiskLevel)
	assert.Equal(t, models.RiskRed, stored.PreviousRiskLevel)
	assert.Equal(t, clock.Now(), stored.FirstDetectedAt)
	assert.False(t, stored.AlertSent)
	assert.False(t, stored.EscalationSent)

	// Back into Red fires a fresh alert.
	clock.Advance(24 * time.Hour)
	out, err = m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)
	assert.True(t, out.AlertEmitted)
	assert.Len(t, sender.sent, 2)
}

func TestApplyEscalatesAfterThirtyDaysRed(t *testing.T) {
	statuses := newMemStatuses()
	sender := &spySender{}
	clock := clockz.NewFakeClock()
	m := NewMachine(statuses, sender, clock)
	ctx := context.Background()

	_, err := m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)

	// Just short of the boundary: no escalation.
	clock.Advance(EscalationAfter - time.Hour)
	out, err := m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)
	assert.False(t, out.EscalationFired)

	clock.Advance(time.Hour)
	out, err = m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)
	assert.True(t, out.EscalationFired)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, alert.KindEscalation, sender.sent[1].Kind)

	// One-shot: a further Red run stays quiet.
	clock.Advance(24 * time.Hour)
	out, err = m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)
	assert.False(t, out.EscalationFired)
	assert.Len(t, sender.sent, 2)
}

func TestApplyDeliveryFailureStillPersists(t *testing.T) {
	statuses := newMemStatuses()
	sender := &spySender{fail: true}
	m := NewMachine(statuses, sender, clockz.NewFakeClock())
	ctx := context.Background()

	out, err := m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err, "delivery failure must not block persistence")
	assert.False(t, out.AlertEmitted)

	stored := statuses.byKey["jane smith"]
	assert.Equal(t, models.RiskRed, stored.CurrentRiskLevel)
	assert.False(t, stored.AlertSent, "flag stays clear so the next run retries")

	// Broker recovers: the retry actually delivers.
	sender.fail = false
	out, err = m.Apply(ctx, assessment("jane smith", 6, models.RiskRed))
	require.NoError(t, err)
	assert.True(t, out.AlertEmitted)
	assert.True(t, statuses.byKey["jane smith"].AlertSent)
}

func TestRunSummarises(t *testing.T) {
	statuses := newMemStatuses()
	sender := &spySender{}
	m := NewMachine(statuses, sender, clockz.NewFakeClock())

	sum, err := m.Run(context.Background(), []risk.WorkerAssessment{
		assessment("a b", 0, models.RiskGreen),
		assessment("c d", 6, models.RiskRed),
		assessment("e f", 3, models.RiskAmber),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 3, sum.Created)
	assert.Equal(t, 1, sum.Alerts)
	assert.Equal(t, 0, sum.Escalations)
}
