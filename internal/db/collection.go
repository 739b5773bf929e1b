package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/kpiconstruction/fleetrules/internal/models"
)

// The rules engine consumes these interfaces only; Mongo implementations
// live alongside. Handlers load snapshots through them and hand plain
// slices to the pure engine functions.

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) error
	FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehicleByRego(ctx context.Context, rego string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error
}

// TemplateCollection defines the interface for maintenance template reads.
type TemplateCollection interface {
	InsertTemplate(ctx context.Context, tmpl models.MaintenanceTemplate) error
	FindTemplates(ctx context.Context, filter bson.M) ([]models.MaintenanceTemplate, error)
}

// PlanCollection defines the interface for maintenance plan operations.
type PlanCollection interface {
	InsertPlan(ctx context.Context, plan models.MaintenancePlan) error
	FindPlans(ctx context.Context, filter bson.M) ([]models.MaintenancePlan, error)
	UpdatePlan(ctx context.Context, id string, plan models.MaintenancePlan) error
}

// WorkOrderCollection defines the interface for work order operations.
type WorkOrderCollection interface {
	InsertWorkOrder(ctx context.Context, wo models.MaintenanceWorkOrder) error
	FindWorkOrders(ctx context.Context, filter bson.M) ([]models.MaintenanceWorkOrder, error)
}

// ServiceRecordCollection defines the interface for service record
// operations. UpdateServiceRecord is how the cost rules write attribution
// and anomaly fields back.
type ServiceRecordCollection interface {
	InsertServiceRecord(ctx context.Context, rec models.ServiceRecord) (string, error)
	FindServiceRecords(ctx context.Context, filter bson.M) ([]models.ServiceRecord, error)
	FindServiceRecordsByVehicle(ctx context.Context, vehicleID string) ([]models.ServiceRecord, error)
	UpdateServiceRecord(ctx context.Context, id string, rec models.ServiceRecord) error
}

// SafetyCollection defines the interface for prestart defect and incident
// reads feeding the risk scorers.
type SafetyCollection interface {
	InsertDefect(ctx context.Context, defect models.PrestartDefect) error
	FindDefects(ctx context.Context, filter bson.M) ([]models.PrestartDefect, error)
	InsertIncident(ctx context.Context, incident models.IncidentRecord) error
	FindIncidents(ctx context.Context, filter bson.M) ([]models.IncidentRecord, error)
}

// WorkerStatusCollection defines the interface for the one aggregate the
// engine mutates across runs.
type WorkerStatusCollection interface {
	FindWorkerStatus(ctx context.Context, workerKey string) (*models.WorkerRiskStatus, error)
	FindWorkerStatuses(ctx context.Context, filter bson.M) ([]models.WorkerRiskStatus, error)
	UpsertWorkerStatus(ctx context.Context, status models.WorkerRiskStatus) error
}

// FuelCollection defines the interface for committed fuel transactions.
type FuelCollection interface {
	InsertFuelTransaction(ctx context.Context, tx models.FuelTransaction) (string, error)
	FindFuelByVehicle(ctx context.Context, vehicleID string) ([]models.FuelTransaction, error)
}

// ImportCollection defines the interface for import batches and rows.
type ImportCollection interface {
	InsertBatch(ctx context.Context, batch models.ImportBatch) (string, error)
	FindBatchByID(ctx context.Context, id string) (*models.ImportBatch, error)
	UpdateBatch(ctx context.Context, id string, batch models.ImportBatch) error
	InsertRows(ctx context.Context, rows []models.ImportedRow) error
	FindRowsByBatch(ctx context.Context, batchID string) ([]models.ImportedRow, error)
	UpdateRow(ctx context.Context, id string, row models.ImportedRow) error
}
