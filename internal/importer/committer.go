package importer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kpiconstruction/fleetrules/internal/faults"
	"github.com/kpiconstruction/fleetrules/internal/models"
)

// DefaultChunkSize is how many rows a background job writes between batch
// status updates.
const DefaultChunkSize = 50

type commitJob struct {
	id       string
	batchID  string
	override bool
}

// Committer runs large-batch commits off the request path. Jobs are
// processed one at a time in bounded chunks; each chunk re-reads the rows
// from the store, so a job interrupted mid-batch resumes where it left off
// when re-enqueued and never rewrites a Committed row.
type Committer struct {
	service *Service
	jobs    chan commitJob

	// Rows written between incremental batch status updates.
	ChunkSize int
}

// NewCommitter builds a committer with the given queue depth.
func NewCommitter(service *Service, queueDepth int) *Committer {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &Committer{
		service:   service,
		jobs:      make(chan commitJob, queueDepth),
		ChunkSize: DefaultChunkSize,
	}
}

// Enqueue queues a batch for background commit and returns the job ID.
func (c *Committer) Enqueue(batchID string, overrideDuplicates bool) (string, error) {
	job := commitJob{id: uuid.NewString(), batchID: batchID, override: overrideDuplicates}
	select {
	case c.jobs <- job:
		log.WithFields(log.Fields{"job": job.id, "batch": batchID}).Info("Commit job queued")
		return job.id, nil
	default:
		return "", &faults.Dependency{Op: "enqueue commit job", Err: errors.New("job queue full")}
	}
}

// Start launches the worker. It drains jobs until ctx is cancelled.
func (c *Committer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-c.jobs:
				c.process(ctx, job)
			}
		}
	}()
}

// process commits one batch chunk by chunk, updating batch status
// incrementally. Cancellation between chunks just stops; the next run of
// the job picks up the remaining non-Committed rows.
func (c *Committer) process(ctx context.Context, job commitJob) {
	logger := log.WithFields(log.Fields{"job": job.id, "batch": job.batchID})

	batch, err := c.service.loadBatch(ctx, job.batchID)
	if err != nil {
		logger.WithError(err).Error("Commit job: batch load failed")
		return
	}
	handler, ok := c.service.handlers[batch.Kind]
	if !ok {
		logger.Errorf("Commit job: unknown import kind %q", batch.Kind)
		return
	}

	committed, failed := 0, 0
	for {
		if ctx.Err() != nil {
			logger.Warn("Commit job interrupted, remaining rows left for re-run")
			return
		}

		rows, err := c.service.imports.FindRowsByBatch(ctx, job.batchID)
		if err != nil {
			logger.WithError(err).Error("Commit job: row load failed")
			return
		}
		eligible, _ := gate(rows, job.override)
		if len(eligible) == 0 {
			break
		}
		chunk := eligible
		if len(chunk) > c.ChunkSize {
			chunk = chunk[:c.ChunkSize]
		}

		cc, cf, err := c.service.commitChunk(ctx, batch, handler, chunk)
		committed += cc
		failed += cf
		if err != nil {
			logger.WithError(err).Error("Commit job: chunk failed")
			return
		}

		progress, _ := json.Marshal(map[string]int{
			"committed": committed,
			"failed":    failed,
			"remaining": len(eligible) - len(chunk),
		})
		batch.SummaryJSON = string(progress)
		batch.Status = models.BatchCommitting
		if err := c.service.imports.UpdateBatch(ctx, job.batchID, *batch); err != nil {
			logger.WithError(err).Error("Commit job: progress update failed")
			return
		}
	}

	// A re-run over a fully committed batch has nothing to write; make sure
	// the batch still leaves Committing.
	if committed == 0 && failed == 0 {
		rows, err := c.service.imports.FindRowsByBatch(ctx, job.batchID)
		if err != nil {
			logger.WithError(err).Error("Commit job: row load failed")
			return
		}
		for i := range rows {
			if rows[i].ResolutionStatus == models.RowCommitted {
				committed++
			}
		}
	}

	if err := c.service.finalizeCommit(ctx, batch, committed, failed); err != nil {
		logger.WithError(err).Error("Commit job: finalize failed")
		return
	}
	logger.WithFields(log.Fields{"committed": committed, "failed": failed}).Info("Commit job finished")
}
