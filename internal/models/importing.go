package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ImportKind is the closed set of bulk import entity types. Dispatch in the
// importer is one handler per kind, not a conditional chain.
type ImportKind string

const (
	ImportFuel           ImportKind = "fuel"
	ImportServiceHistory ImportKind = "service_history"
)

// Valid reports whether the kind is one of the defined values.
func (k ImportKind) Valid() bool {
	return k == ImportFuel || k == ImportServiceHistory
}

// BatchStatus is the lifecycle of an import batch.
type BatchStatus string

const (
	BatchUploaded       BatchStatus = "Uploaded"
	BatchMappingPending BatchStatus = "MappingPending"
	BatchValidating     BatchStatus = "Validating"
	BatchReadyToCommit  BatchStatus = "ReadyToCommit"
	BatchCommitting     BatchStatus = "Committing"
	BatchCommitted      BatchStatus = "Committed"
)

// RowStatus is the per-row resolution state. Committed and Ignored are
// terminal: validation never revisits them.
type RowStatus string

const (
	RowUnmapped        RowStatus = "Unmapped"
	RowReady           RowStatus = "Ready"
	RowVehicleNotFound RowStatus = "VehicleNotFound"
	RowInvalidData     RowStatus = "InvalidData"
	RowDuplicate       RowStatus = "Duplicate"
	RowCommitted       RowStatus = "Committed"
	RowIgnored         RowStatus = "Ignored"
)

// Terminal reports whether the status is never revisited by validation.
func (s RowStatus) Terminal() bool {
	return s == RowCommitted || s == RowIgnored
}

// ImportBatch groups the rows of one uploaded file.
type ImportBatch struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Reference   string             `bson:"reference" json:"reference"` // caller-visible UUID
	Kind        ImportKind         `bson:"kind" json:"kind"`
	FileName    string             `bson:"file_name,omitempty" json:"file_name,omitempty"`
	Status      BatchStatus        `bson:"status" json:"status"`
	RowCount    int                `bson:"row_count" json:"row_count"`
	SummaryJSON string             `bson:"summary_json,omitempty" json:"summary_json,omitempty"`
	UploadedBy  string             `bson:"uploaded_by,omitempty" json:"uploaded_by,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// ImportedRow is one raw row plus whatever the validation pass managed to
// map out of it. Raw holds the source columns untouched so re-validation
// after a mapping fix starts from the original data.
type ImportedRow struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BatchID          string             `bson:"batch_id" json:"batch_id"`
	RowNumber        int                `bson:"row_number" json:"row_number"`
	Raw              map[string]string  `bson:"raw" json:"raw"`
	ResolutionStatus RowStatus          `bson:"resolution_status" json:"resolution_status"`
	ResolutionNotes  string             `bson:"resolution_notes,omitempty" json:"resolution_notes,omitempty"`

	MappedVehicleID   string     `bson:"mapped_vehicle_id,omitempty" json:"mapped_vehicle_id,omitempty"`
	MappedDate        *time.Time `bson:"mapped_date,omitempty" json:"mapped_date,omitempty"`
	MappedOdometerKm  *float64   `bson:"mapped_odometer_km,omitempty" json:"mapped_odometer_km,omitempty"`
	MappedLitres      *float64   `bson:"mapped_litres,omitempty" json:"mapped_litres,omitempty"`
	MappedCost        *float64   `bson:"mapped_cost,omitempty" json:"mapped_cost,omitempty"`
	MappedServiceType string     `bson:"mapped_service_type,omitempty" json:"mapped_service_type,omitempty"`
	MappedDescription string     `bson:"mapped_description,omitempty" json:"mapped_description,omitempty"`
	MappedExternalRef string     `bson:"mapped_external_ref,omitempty" json:"mapped_external_ref,omitempty"`

	CommittedRecordID string    `bson:"committed_record_id,omitempty" json:"committed_record_id,omitempty"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}

// Validate checks the batch at the ingestion boundary.
func (b *ImportBatch) Validate() error {
	if !b.Kind.Valid() {
		return errors.New("invalid import kind")
	}
	return nil
}
