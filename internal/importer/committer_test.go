package importer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

func uploadAndValidate(t *testing.T, f *fixture, rowCount int) *models.ImportBatch {
	t.Helper()
	raws := make([]map[string]string, rowCount)
	for i := range raws {
		raws[i] = fuelRaw("ABC123", fmt.Sprintf("2026-01-%02d", i%27+1), fmt.Sprintf("%d", 50+i), fmt.Sprintf("%d", 100+2*i))
	}
	batch, err := f.service.Upload(context.Background(), models.ImportFuel, "fuel.csv", "ops", raws)
	require.NoError(t, err)
	_, err = f.service.Validate(context.Background(), batch.ID.Hex())
	require.NoError(t, err)
	return batch
}

func TestLargeBatchDefersToCommitter(t *testing.T) {
	f := newFixture()
	committer := NewCommitter(f.service, 4)
	f.service.AttachCommitter(committer)
	f.service.LargeBatchThreshold = 5

	batch := uploadAndValidate(t, f, 8)

	res, err := f.service.Commit(context.Background(), batch.ID.Hex(), false)
	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.NotEmpty(t, res.JobID)
	assert.Empty(t, f.fuel.txs, "deferred commit writes nothing in-request")

	updated, _ := f.service.loadBatch(context.Background(), batch.ID.Hex())
	assert.Equal(t, models.BatchCommitting, updated.Status)
}

func TestCommitterProcessesInChunks(t *testing.T) {
	f := newFixture()
	committer := NewCommitter(f.service, 4)
	committer.ChunkSize = 3
	f.service.AttachCommitter(committer)
	f.service.LargeBatchThreshold = 5

	batch := uploadAndValidate(t, f, 8)
	_, err := f.service.Commit(context.Background(), batch.ID.Hex(), false)
	require.NoError(t, err)

	committer.process(context.Background(), commitJob{id: "job-1", batchID: batch.ID.Hex()})

	assert.Len(t, f.fuel.txs, 8)
	updated, _ := f.service.loadBatch(context.Background(), batch.ID.Hex())
	assert.Equal(t, models.BatchCommitted, updated.Status)
	assert.JSONEq(t, `{"committed":8,"failed":0}`, updated.SummaryJSON)

	rows, _ := f.imports.FindRowsByBatch(context.Background(), batch.ID.Hex())
	for _, r := range rows {
		assert.Equal(t, models.RowCommitted, r.ResolutionStatus)
	}
}

func TestCommitterRerunTouchesOnlyRemainingRows(t *testing.T) {
	f := newFixture()
	committer := NewCommitter(f.service, 4)
	committer.ChunkSize = 2
	f.service.AttachCommitter(committer)
	f.service.LargeBatchThreshold = 1

	batch := uploadAndValidate(t, f, 4)
	_, err := f.service.Commit(context.Background(), batch.ID.Hex(), false)
	require.NoError(t, err)

	// Simulate a process restart after a partial run: two rows already
	// landed, two still Ready.
	rows, _ := f.imports.FindRowsByBatch(context.Background(), batch.ID.Hex())
	for i := range rows[:2] {
		rows[i].ResolutionStatus = models.RowCommitted
		rows[i].CommittedRecordID = "already-there"
		require.NoError(t, f.imports.UpdateRow(context.Background(), rows[i].ID.Hex(), rows[i]))
	}

	committer.process(context.Background(), commitJob{id: "job-2", batchID: batch.ID.Hex()})

	assert.Len(t, f.fuel.txs, 2, "re-run must only commit the remaining rows")
	rows, _ = f.imports.FindRowsByBatch(context.Background(), batch.ID.Hex())
	assert.Equal(t, "already-there", rows[0].CommittedRecordID, "committed rows are never rewritten")
	updated, _ := f.service.loadBatch(context.Background(), batch.ID.Hex())
	assert.Equal(t, models.BatchCommitted, updated.Status)
}

func TestCommitterRerunOnFullyCommittedBatchFinalizes(t *testing.T) {
	f := newFixture()
	committer := NewCommitter(f.service, 4)
	f.service.AttachCommitter(committer)
	f.service.LargeBatchThreshold = 1

	batch := uploadAndValidate(t, f, 2)
	_, err := f.service.Commit(context.Background(), batch.ID.Hex(), false)
	require.NoError(t, err)

	committer.process(context.Background(), commitJob{id: "job-3", batchID: batch.ID.Hex()})
	require.Len(t, f.fuel.txs, 2)

	// A second run of the same job finds nothing to do but still lands the
	// batch in Committed.
	committer.process(context.Background(), commitJob{id: "job-3", batchID: batch.ID.Hex()})
	assert.Len(t, f.fuel.txs, 2)
	updated, _ := f.service.loadBatch(context.Background(), batch.ID.Hex())
	assert.Equal(t, models.BatchCommitted, updated.Status)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	f := newFixture()
	committer := NewCommitter(f.service, 1)

	_, err := committer.Enqueue("batch-a", false)
	require.NoError(t, err)
	_, err = committer.Enqueue("batch-b", false)
	assert.Error(t, err)
}
