// Package importer is the bulk import reconciliation pipeline: uploaded
// rows move through a per-row resolution state machine and only rows that
// validate cleanly are committed into the fleet records, idempotently.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"
	"github.com/zoobz-io/pipz"

	"github.com/kpiconstruction/fleetrules/internal/db"
	"github.com/kpiconstruction/fleetrules/internal/faults"
	"github.com/kpiconstruction/fleetrules/internal/models"
)

// DefaultLargeBatchThreshold is the row count above which a commit is
// deferred to the background committer instead of running in-request.
const DefaultLargeBatchThreshold = 200

// Service owns batch lifecycle and row validation/commit.
type Service struct {
	imports  db.ImportCollection
	vehicles db.VehicleCollection
	handlers map[models.ImportKind]rowHandler
	pipeline *pipz.Sequence[rowState]
	clock    clockz.Clock

	// Threshold above which Commit defers to the attached committer.
	LargeBatchThreshold int

	committer *Committer
}

// NewService builds the import service. A nil clock uses real time.
func NewService(imports db.ImportCollection, vehicles db.VehicleCollection, fuel db.FuelCollection, records db.ServiceRecordCollection, tol Tolerances, clock clockz.Clock) *Service {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Service{
		imports:  imports,
		vehicles: vehicles,
		handlers: map[models.ImportKind]rowHandler{
			models.ImportFuel:           &fuelHandler{fuel: fuel},
			models.ImportServiceHistory: &serviceHistoryHandler{records: records},
		},
		pipeline:            buildPipeline(vehicles, tol),
		clock:               clock,
		LargeBatchThreshold: DefaultLargeBatchThreshold,
	}
}

// AttachCommitter enables the background path for large batches.
func (s *Service) AttachCommitter(c *Committer) {
	s.committer = c
}

// Upload creates a batch and its unmapped rows from raw file data.
func (s *Service) Upload(ctx context.Context, kind models.ImportKind, fileName, uploadedBy string, raws []map[string]string) (*models.ImportBatch, error) {
	if !kind.Valid() {
		return nil, faults.Validationf("unknown import kind %q", kind)
	}
	if len(raws) == 0 {
		return nil, faults.Validationf("empty upload")
	}

	batch := models.ImportBatch{
		Reference:  uuid.NewString(),
		Kind:       kind,
		FileName:   fileName,
		Status:     models.BatchUploaded,
		RowCount:   len(raws),
		UploadedBy: uploadedBy,
	}
	id, err := s.imports.InsertBatch(ctx, batch)
	if err != nil {
		return nil, &faults.Dependency{Op: "insert batch", Err: err}
	}

	rows := make([]models.ImportedRow, len(raws))
	for i, raw := range raws {
		rows[i] = models.ImportedRow{
			BatchID:          id,
			RowNumber:        i + 1,
			Raw:              raw,
			ResolutionStatus: models.RowUnmapped,
		}
	}
	if err := s.imports.InsertRows(ctx, rows); err != nil {
		return nil, &faults.Dependency{Op: "insert rows", Err: err}
	}

	batch.Status = models.BatchMappingPending
	if err := s.imports.UpdateBatch(ctx, id, batch); err != nil {
		return nil, &faults.Dependency{Op: "update batch", Err: err}
	}

	log.WithFields(log.Fields{
		"batch":    batch.Reference,
		"kind":     kind,
		"rowCount": len(rows),
	}).Info("Import batch uploaded")

	return s.loadBatch(ctx, id)
}

// ValidationResult is the uniform shape every import kind returns.
type ValidationResult struct {
	Total int                  `json:"total"`
	Rows  []models.ImportedRow `json:"rows"`
}

// Validate runs the validation pipeline over every non-terminal row and
// moves the batch to ReadyToCommit or back to MappingPending. Committed and
// Ignored rows are never revisited.
func (s *Service) Validate(ctx context.Context, batchID string) (*ValidationResult, error) {
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	handler, ok := s.handlers[batch.Kind]
	if !ok {
		return nil, faults.Validationf("unknown import kind %q", batch.Kind)
	}

	batch.Status = models.BatchValidating
	if err := s.imports.UpdateBatch(ctx, batchID, *batch); err != nil {
		return nil, &faults.Dependency{Op: "update batch", Err: err}
	}

	rows, err := s.imports.FindRowsByBatch(ctx, batchID)
	if err != nil {
		return nil, &faults.Dependency{Op: "load rows", Err: err}
	}

	ready, blocked := 0, 0
	for i := range rows {
		if rows[i].ResolutionStatus.Terminal() {
			continue
		}
		out, err := s.pipeline.Process(ctx, rowState{row: rows[i], handler: handler})
		if err != nil {
			var pipeErr *pipz.Error[rowState]
			if errors.As(err, &pipeErr) {
				err = pipeErr.Err
			}
			return nil, err
		}
		out.row.ResolutionStatus = out.outcome
		out.row.ResolutionNotes = out.notes
		out.row.UpdatedAt = s.clock.Now()
		rows[i] = out.row
		if err := s.imports.UpdateRow(ctx, rows[i].ID.Hex(), rows[i]); err != nil {
			return nil, &faults.Dependency{Op: "update row", Err: err}
		}
		if rows[i].ResolutionStatus == models.RowReady {
			ready++
		} else {
			blocked++
		}
	}

	if ready > 0 && blocked == 0 {
		batch.Status = models.BatchReadyToCommit
	} else {
		batch.Status = models.BatchMappingPending
	}
	if err := s.imports.UpdateBatch(ctx, batchID, *batch); err != nil {
		return nil, &faults.Dependency{Op: "update batch", Err: err}
	}

	return &ValidationResult{Total: len(rows), Rows: rows}, nil
}

// CommitResult reports a commit, synchronous or deferred.
type CommitResult struct {
	Committed int    `json:"committed"`
	Failed    int    `json:"failed"`
	Deferred  bool   `json:"deferred"`
	JobID     string `json:"job_id,omitempty"`
}

// Commit applies the gate and then writes eligible rows. The gate is
// all-or-nothing: any unresolved row, or zero eligible rows, rejects the
// whole batch with per-status counts. Execution is per-row: one failure
// marks that row and continues. Batches above the threshold defer to the
// background committer when one is attached.
func (s *Service) Commit(ctx context.Context, batchID string, overrideDuplicates bool) (*CommitResult, error) {
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status == models.BatchCommitted {
		return nil, &faults.Conflict{Msg: fmt.Sprintf("batch %s already committed", batch.Reference)}
	}

	rows, err := s.imports.FindRowsByBatch(ctx, batchID)
	if err != nil {
		return nil, &faults.Dependency{Op: "load rows", Err: err}
	}

	eligible, breakdown := gate(rows, overrideDuplicates)
	if len(breakdown) > 0 {
		return nil, &faults.Conflict{Msg: "unresolved rows block commit", Breakdown: breakdown}
	}
	if len(eligible) == 0 {
		return nil, &faults.Conflict{Msg: "batch has no committable rows"}
	}

	if s.committer != nil && len(eligible) > s.LargeBatchThreshold {
		batch.Status = models.BatchCommitting
		if err := s.imports.UpdateBatch(ctx, batchID, *batch); err != nil {
			return nil, &faults.Dependency{Op: "update batch", Err: err}
		}
		jobID, err := s.committer.Enqueue(batchID, overrideDuplicates)
		if err != nil {
			return nil, err
		}
		return &CommitResult{Deferred: true, JobID: jobID}, nil
	}

	committed, failed, err := s.commitRows(ctx, batch, eligible)
	if err != nil {
		return nil, err
	}
	return &CommitResult{Committed: committed, Failed: failed}, nil
}

// gate partitions rows for commit. Committed and Ignored rows are skipped
// outright; any row left in a non-eligible state contributes to the
// blocking breakdown.
func gate(rows []models.ImportedRow, overrideDuplicates bool) (eligible []models.ImportedRow, breakdown map[string]int) {
	breakdown = make(map[string]int)
	for i := range rows {
		switch st := rows[i].ResolutionStatus; {
		case st.Terminal():
		case st == models.RowReady:
			eligible = append(eligible, rows[i])
		case st == models.RowDuplicate && overrideDuplicates:
			eligible = append(eligible, rows[i])
		default:
			breakdown[string(st)]++
		}
	}
	if len(breakdown) == 0 {
		breakdown = nil
	}
	return eligible, breakdown
}

// commitRows writes each row independently, then finalizes the batch.
func (s *Service) commitRows(ctx context.Context, batch *models.ImportBatch, rows []models.ImportedRow) (committed, failed int, err error) {
	handler, ok := s.handlers[batch.Kind]
	if !ok {
		return 0, 0, faults.Validationf("unknown import kind %q", batch.Kind)
	}
	committed, failed, err = s.commitChunk(ctx, batch, handler, rows)
	if err != nil {
		return committed, failed, err
	}
	if err := s.finalizeCommit(ctx, batch, committed, failed); err != nil {
		return committed, failed, err
	}
	return committed, failed, nil
}

// commitChunk writes one slice of rows. Rows already Committed are skipped,
// and a row whose record already landed (a crash between the record write
// and the row status write) is re-marked Committed without a second insert,
// so re-running touches only the remainder and cannot produce duplicate
// records.
func (s *Service) commitChunk(ctx context.Context, batch *models.ImportBatch, handler rowHandler, rows []models.ImportedRow) (committed, failed int, err error) {
	for i := range rows {
		row := &rows[i]
		if row.ResolutionStatus == models.RowCommitted {
			continue
		}
		recordID, found, lookupErr := handler.committedRecord(ctx, row)
		if lookupErr != nil {
			return committed, failed, lookupErr
		}
		if found {
			row.ResolutionStatus = models.RowCommitted
			row.CommittedRecordID = recordID
			row.ResolutionNotes = ""
			row.UpdatedAt = s.clock.Now()
			committed++
			if updateErr := s.imports.UpdateRow(ctx, row.ID.Hex(), *row); updateErr != nil {
				return committed, failed, &faults.Dependency{Op: "update row", Err: updateErr}
			}
			continue
		}
		recordID, commitErr := handler.commit(ctx, row)
		if commitErr != nil {
			row.ResolutionStatus = models.RowInvalidData
			row.ResolutionNotes = "commit failed: " + commitErr.Error()
			failed++
			log.WithFields(log.Fields{
				"batch": batch.Reference,
				"row":   row.RowNumber,
			}).WithError(commitErr).Warn("Row commit failed")
		} else {
			row.ResolutionStatus = models.RowCommitted
			row.CommittedRecordID = recordID
			row.ResolutionNotes = ""
			committed++
		}
		row.UpdatedAt = s.clock.Now()
		if updateErr := s.imports.UpdateRow(ctx, row.ID.Hex(), *row); updateErr != nil {
			return committed, failed, &faults.Dependency{Op: "update row", Err: updateErr}
		}
	}
	return committed, failed, nil
}

// finalizeCommit records the summary and marks the batch Committed when at
// least one row landed.
func (s *Service) finalizeCommit(ctx context.Context, batch *models.ImportBatch, committed, failed int) error {
	summary, _ := json.Marshal(map[string]int{"committed": committed, "failed": failed})
	batch.SummaryJSON = string(summary)
	if committed > 0 {
		batch.Status = models.BatchCommitted
	}
	if err := s.imports.UpdateBatch(ctx, batch.ID.Hex(), *batch); err != nil {
		return &faults.Dependency{Op: "update batch", Err: err}
	}

	log.WithFields(log.Fields{
		"batch":     batch.Reference,
		"committed": committed,
		"failed":    failed,
	}).Info("Import batch commit finished")

	return nil
}

// StatusResult is the batch plus its per-status row counts.
type StatusResult struct {
	Batch  models.ImportBatch `json:"batch"`
	Counts map[string]int     `json:"counts"`
}

// Status returns a batch with its row status breakdown.
func (s *Service) Status(ctx context.Context, batchID string) (*StatusResult, error) {
	batch, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	rows, err := s.imports.FindRowsByBatch(ctx, batchID)
	if err != nil {
		return nil, &faults.Dependency{Op: "load rows", Err: err}
	}
	counts := make(map[string]int)
	for i := range rows {
		counts[string(rows[i].ResolutionStatus)]++
	}
	return &StatusResult{Batch: *batch, Counts: counts}, nil
}

func (s *Service) loadBatch(ctx context.Context, batchID string) (*models.ImportBatch, error) {
	batch, err := s.imports.FindBatchByID(ctx, batchID)
	if err != nil || batch == nil {
		return nil, &faults.NotFound{Kind: "batch", Key: batchID}
	}
	return batch, nil
}
