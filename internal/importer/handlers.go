package importer

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kpiconstruction/fleetrules/internal/db"
	"github.com/kpiconstruction/fleetrules/internal/faults"
	"github.com/kpiconstruction/fleetrules/internal/models"
)

// Tolerances configure the duplicate check window. Two records for the same
// vehicle within the date window whose quantity and cost both fall inside
// the absolute tolerances are treated as the same real-world event; an exact
// external reference match is always a duplicate.
type Tolerances struct {
	DateWindow time.Duration
	LitresAbs  float64
	CostAbs    float64
}

// DefaultTolerances match the reconciliation behaviour the ops team runs
// with: same-or-adjacent-day, half a litre, a dollar.
var DefaultTolerances = Tolerances{
	DateWindow: 24 * time.Hour,
	LitresAbs:  0.5,
	CostAbs:    1.0,
}

// rowHandler is the per-kind behaviour behind the closed ImportKind
// dispatch: parsing raw columns, checking for duplicates among committed
// records, and writing the committed record. committedRecord looks up a
// record already written for this exact row, which makes a re-run commit
// safe after a crash between the record write and the row status write.
type rowHandler interface {
	parse(row *models.ImportedRow) error
	duplicate(ctx context.Context, row *models.ImportedRow, tol Tolerances) (bool, string, error)
	committedRecord(ctx context.Context, row *models.ImportedRow) (string, bool, error)
	commit(ctx context.Context, row *models.ImportedRow) (string, error)
}

// dateFormats are tried in order when parsing raw date columns.
var dateFormats = []string{"2006-01-02", "02/01/2006", time.RFC3339}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, faults.Validationf("unparseable date %q", raw)
}

func parseFloat(raw, field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, faults.Validationf("unparseable %s %q", field, raw)
	}
	return v, nil
}

func within(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func sameEvent(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// fuelHandler imports fuel transaction rows. Required columns: date,
// litres, cost.
type fuelHandler struct {
	fuel db.FuelCollection
}

func (h *fuelHandler) parse(row *models.ImportedRow) error {
	if strings.TrimSpace(row.Raw["date"]) == "" {
		return faults.Validationf("missing date")
	}
	if strings.TrimSpace(row.Raw["litres"]) == "" {
		return faults.Validationf("missing litres")
	}
	if strings.TrimSpace(row.Raw["cost"]) == "" {
		return faults.Validationf("missing cost")
	}

	date, err := parseDate(row.Raw["date"])
	if err != nil {
		return err
	}
	litres, err := parseFloat(row.Raw["litres"], "litres")
	if err != nil {
		return err
	}
	cost, err := parseFloat(row.Raw["cost"], "cost")
	if err != nil {
		return err
	}

	row.MappedDate = &date
	row.MappedLitres = &litres
	row.MappedCost = &cost
	if raw := strings.TrimSpace(row.Raw["odometer"]); raw != "" {
		odo, err := parseFloat(raw, "odometer")
		if err != nil {
			return err
		}
		row.MappedOdometerKm = &odo
	}
	row.MappedExternalRef = strings.TrimSpace(row.Raw["external_ref"])
	return nil
}

func (h *fuelHandler) duplicate(ctx context.Context, row *models.ImportedRow, tol Tolerances) (bool, string, error) {
	existing, err := h.fuel.FindFuelByVehicle(ctx, row.MappedVehicleID)
	if err != nil {
		return false, "", &faults.Dependency{Op: "load fuel transactions", Err: err}
	}
	for i := range existing {
		tx := &existing[i]
		if row.MappedExternalRef != "" && tx.ExternalRef == row.MappedExternalRef {
			return true, "matches external ref " + tx.ExternalRef, nil
		}
		if sameEvent(tx.Date, *row.MappedDate, tol.DateWindow) &&
			within(tx.Litres, *row.MappedLitres, tol.LitresAbs) &&
			within(tx.CostExGST, *row.MappedCost, tol.CostAbs) {
			return true, "matches transaction " + tx.ID.Hex() + " within tolerance", nil
		}
	}
	return false, "", nil
}

func (h *fuelHandler) committedRecord(ctx context.Context, row *models.ImportedRow) (string, bool, error) {
	existing, err := h.fuel.FindFuelByVehicle(ctx, row.MappedVehicleID)
	if err != nil {
		return "", false, &faults.Dependency{Op: "load fuel transactions", Err: err}
	}
	for i := range existing {
		if existing[i].ImportRowID == row.ID.Hex() {
			return existing[i].ID.Hex(), true, nil
		}
	}
	return "", false, nil
}

func (h *fuelHandler) commit(ctx context.Context, row *models.ImportedRow) (string, error) {
	tx := models.FuelTransaction{
		VehicleID:   row.MappedVehicleID,
		Date:        *row.MappedDate,
		Litres:      *row.MappedLitres,
		CostExGST:   *row.MappedCost,
		OdometerKm:  row.MappedOdometerKm,
		ExternalRef: row.MappedExternalRef,
		BatchID:     row.BatchID,
		ImportRowID: row.ID.Hex(),
	}
	return h.fuel.InsertFuelTransaction(ctx, tx)
}

// serviceHistoryHandler imports historical service records. Required
// columns: date, cost.
type serviceHistoryHandler struct {
	records db.ServiceRecordCollection
}

func (h *serviceHistoryHandler) parse(row *models.ImportedRow) error {
	if strings.TrimSpace(row.Raw["date"]) == "" {
		return faults.Validationf("missing date")
	}
	if strings.TrimSpace(row.Raw["cost"]) == "" {
		return faults.Validationf("missing cost")
	}

	date, err := parseDate(row.Raw["date"])
	if err != nil {
		return err
	}
	cost, err := parseFloat(row.Raw["cost"], "cost")
	if err != nil {
		return err
	}

	row.MappedDate = &date
	row.MappedCost = &cost
	if raw := strings.TrimSpace(row.Raw["odometer"]); raw != "" {
		odo, err := parseFloat(raw, "odometer")
		if err != nil {
			return err
		}
		row.MappedOdometerKm = &odo
	}
	row.MappedServiceType = strings.TrimSpace(row.Raw["service_type"])
	if row.MappedServiceType == "" {
		row.MappedServiceType = string(models.ServiceScheduled)
	}
	switch models.ServiceType(row.MappedServiceType) {
	case models.ServiceScheduled, models.ServiceHireProvider, models.ServiceWarranty,
		models.ServiceCorrective, models.ServiceDefectRepair, models.ServiceBreakdown:
	default:
		return faults.Validationf("invalid service_type %q", row.MappedServiceType)
	}
	row.MappedDescription = strings.TrimSpace(row.Raw["description"])
	row.MappedExternalRef = strings.TrimSpace(row.Raw["external_ref"])
	return nil
}

func (h *serviceHistoryHandler) duplicate(ctx context.Context, row *models.ImportedRow, tol Tolerances) (bool, string, error) {
	existing, err := h.records.FindServiceRecordsByVehicle(ctx, row.MappedVehicleID)
	if err != nil {
		return false, "", &faults.Dependency{Op: "load service records", Err: err}
	}
	for i := range existing {
		rec := &existing[i]
		if row.MappedExternalRef != "" && rec.ExternalRef == row.MappedExternalRef {
			return true, "matches external ref " + rec.ExternalRef, nil
		}
		if sameEvent(rec.ServiceDate, *row.MappedDate, tol.DateWindow) &&
			within(rec.CostExGST, *row.MappedCost, tol.CostAbs) {
			return true, "matches service record " + rec.ID.Hex() + " within tolerance", nil
		}
	}
	return false, "", nil
}

func (h *serviceHistoryHandler) committedRecord(ctx context.Context, row *models.ImportedRow) (string, bool, error) {
	existing, err := h.records.FindServiceRecordsByVehicle(ctx, row.MappedVehicleID)
	if err != nil {
		return "", false, &faults.Dependency{Op: "load service records", Err: err}
	}
	for i := range existing {
		if existing[i].ImportRowID == row.ID.Hex() {
			return existing[i].ID.Hex(), true, nil
		}
	}
	return "", false, nil
}

func (h *serviceHistoryHandler) commit(ctx context.Context, row *models.ImportedRow) (string, error) {
	rec := models.ServiceRecord{
		VehicleID:   row.MappedVehicleID,
		ServiceType: models.ServiceType(row.MappedServiceType),
		ServiceDate: *row.MappedDate,
		Description: row.MappedDescription,
		CostExGST:   *row.MappedCost,
		ExternalRef: row.MappedExternalRef,
		ImportRowID: row.ID.Hex(),
	}
	if row.MappedOdometerKm != nil {
		rec.OdometerKm = *row.MappedOdometerKm
	}
	return h.records.InsertServiceRecord(ctx, rec)
}
