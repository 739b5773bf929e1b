package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kpiconstruction/fleetrules/internal/compliance"
	"github.com/kpiconstruction/fleetrules/internal/costs"
	"github.com/kpiconstruction/fleetrules/internal/db"
	"github.com/kpiconstruction/fleetrules/internal/faults"
	"github.com/kpiconstruction/fleetrules/internal/importer"
	"github.com/kpiconstruction/fleetrules/internal/middleware"
	"github.com/kpiconstruction/fleetrules/internal/models"
	"github.com/kpiconstruction/fleetrules/internal/risk"
	"github.com/kpiconstruction/fleetrules/internal/schedule"
	"github.com/kpiconstruction/fleetrules/internal/workerstate"
)

// EngineHandler exposes the rules engine: schedule derivation, compliance
// rollups, the three risk scorers, cost recomputes, and the import
// pipeline. Each endpoint loads a snapshot through the collections and
// hands plain slices to the pure engine functions.
type EngineHandler struct {
	stores     *db.Stores
	aggregator *compliance.Aggregator
	imports    *importer.Service
	machine    *workerstate.Machine
	clock      clockz.Clock
}

// NewEngineHandler wires the engine endpoints. A nil clock uses real time.
func NewEngineHandler(stores *db.Stores, aggregator *compliance.Aggregator, imports *importer.Service, machine *workerstate.Machine, clock clockz.Clock) *EngineHandler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &EngineHandler{
		stores:     stores,
		aggregator: aggregator,
		imports:    imports,
		machine:    machine,
		clock:      clock,
	}
}

// snapshot is one consistent read of the fleet data the engine computes
// over.
type snapshot struct {
	vehicles   []models.Vehicle
	byID       map[string]*models.Vehicle
	templates  map[string]*models.MaintenanceTemplate
	plans      []models.MaintenancePlan
	workOrders []models.MaintenanceWorkOrder
	records    []models.ServiceRecord
	defects    []models.PrestartDefect
	incidents  []models.IncidentRecord
}

func (h *EngineHandler) loadSnapshot(r *http.Request, vehicleFilter bson.M) (*snapshot, error) {
	ctx := r.Context()

	vehicles, err := h.stores.Vehicles.FindVehicles(ctx, vehicleFilter)
	if err != nil {
		return nil, &faults.Dependency{Op: "load vehicles", Err: err}
	}
	templates, err := h.stores.Templates.FindTemplates(ctx, bson.M{})
	if err != nil {
		return nil, &faults.Dependency{Op: "load templates", Err: err}
	}
	plans, err := h.stores.Plans.FindPlans(ctx, bson.M{})
	if err != nil {
		return nil, &faults.Dependency{Op: "load plans", Err: err}
	}
	workOrders, err := h.stores.WorkOrders.FindWorkOrders(ctx, bson.M{})
	if err != nil {
		return nil, &faults.Dependency{Op: "load work orders", Err: err}
	}
	records, err := h.stores.ServiceRecords.FindServiceRecords(ctx, bson.M{})
	if err != nil {
		return nil, &faults.Dependency{Op: "load service records", Err: err}
	}
	defects, err := h.stores.Safety.FindDefects(ctx, bson.M{})
	if err != nil {
		return nil, &faults.Dependency{Op: "load defects", Err: err}
	}
	incidents, err := h.stores.Safety.FindIncidents(ctx, bson.M{})
	if err != nil {
		return nil, &faults.Dependency{Op: "load incidents", Err: err}
	}

	s := &snapshot{
		vehicles:   vehicles,
		byID:       make(map[string]*models.Vehicle, len(vehicles)),
		templates:  make(map[string]*models.MaintenanceTemplate, len(templates)),
		plans:      plans,
		workOrders: workOrders,
		records:    records,
		defects:    defects,
		incidents:  incidents,
	}
	for i := range vehicles {
		s.byID[vehicles[i].ID.Hex()] = &vehicles[i]
	}
	for i := range templates {
		s.templates[templates[i].ID.Hex()] = &templates[i]
	}
	return s, nil
}

// vehicleFilter builds the snapshot filter from the usual query params.
func vehicleFilter(r *http.Request) bson.M {
	filter := bson.M{}
	if state := r.URL.Query().Get("state"); state != "" {
		filter["state"] = state
	}
	if fc := r.URL.Query().Get("function_class"); fc != "" {
		filter["function_class"] = fc
	}
	return filter
}

// Schedule returns the derived due state of every active plan.
func (h *EngineHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.loadSnapshot(r, vehicleFilter(r))
	if err != nil {
		respondError(w, err)
		return
	}

	derived := schedule.DeriveAll(snap.plans, snap.byID, snap.templates, h.clock.Now())
	if vehicleID := r.URL.Query().Get("vehicle_id"); vehicleID != "" {
		filtered := derived[:0]
		for _, d := range derived {
			if d.Plan.VehicleID == vehicleID {
				filtered = append(filtered, d)
			}
		}
		derived = filtered
	}

	type row struct {
		PlanID     string          `json:"plan_id"`
		VehicleID  string          `json:"vehicle_id"`
		TemplateID string          `json:"template_id"`
		Result     schedule.Result `json:"result"`
	}
	rows := make([]row, 0, len(derived))
	for _, d := range derived {
		rows = append(rows, row{
			PlanID:     d.Plan.ID.Hex(),
			VehicleID:  d.Plan.VehicleID,
			TemplateID: d.Plan.TemplateID,
			Result:     d.Result,
		})
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"total": len(rows),
		"plans": rows,
	})
}

// Compliance returns the cached on-time rollup for a reporting window.
func (h *EngineHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	window, err := parseWindow(r, h.clock.Now())
	if err != nil {
		respondError(w, err)
		return
	}

	snap, err := h.loadSnapshot(r, vehicleFilter(r))
	if err != nil {
		respondError(w, err)
		return
	}

	derived := schedule.DeriveAll(snap.plans, snap.byID, snap.templates, h.clock.Now())
	key := compliance.CacheKey("compliance", window.Start, window.End,
		r.URL.Query().Get("state"), r.URL.Query().Get("function_class"))
	report := h.aggregator.Aggregate(key, derived, snap.workOrders, snap.records, window)

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"window": window,
		"report": report,
	})
}

// InvalidateCompliance drops every cached compliance aggregate. Called
// after bulk data changes such as an import commit.
func (h *EngineHandler) InvalidateCompliance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.aggregator.InvalidateAll()
	respondSuccess(w, http.StatusOK, nil)
}

// VehicleRisk returns the HVNL risk row for every HVNL-relevant vehicle.
func (h *EngineHandler) VehicleRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.loadSnapshot(r, vehicleFilter(r))
	if err != nil {
		respondError(w, err)
		return
	}

	now := h.clock.Now()
	derived := schedule.DeriveAll(snap.plans, snap.byID, snap.templates, now)
	scores := risk.ScoreVehicles(derived, snap.defects, snap.workOrders, snap.incidents, now)

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"total":    len(scores),
		"vehicles": scores,
	})
}

// ProviderRisk scores hire providers. Downtime and turnaround stats come
// from the caller, since they live with the hire desk, not in this store.
func (h *EngineHandler) ProviderRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ProviderStats map[string]risk.ProviderStats `json:"provider_stats"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	snap, err := h.loadSnapshot(r, bson.M{})
	if err != nil {
		respondError(w, err)
		return
	}

	now := h.clock.Now()
	derived := schedule.DeriveAll(snap.plans, snap.byID, snap.templates, now)
	scores := risk.ScoreProviders(derived, snap.workOrders, req.ProviderStats, now)

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"total":     len(scores),
		"providers": scores,
	})
}

// WorkerRisk lists the persisted worker risk statuses.
func (h *EngineHandler) WorkerRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses, err := h.stores.WorkerStatus.FindWorkerStatuses(r.Context(), bson.M{})
	if err != nil {
		respondError(w, &faults.Dependency{Op: "load worker statuses", Err: err})
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"total":   len(statuses),
		"workers": statuses,
	})
}

// RunWorkerRisk scores every worker from the safety data and folds the
// results through the risk state machine, emitting alerts as levels
// change.
func (h *EngineHandler) RunWorkerRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.loadSnapshot(r, bson.M{})
	if err != nil {
		respondError(w, err)
		return
	}

	assessments, warnings := risk.ScoreWorkers(snap.defects, snap.incidents, h.clock.Now(), nil)
	summary, err := h.machine.Run(r.Context(), assessments)
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"summary":  summary,
		"warnings": warnings,
	})
}

// RecomputeCosts re-runs attribution and anomaly detection over service
// records, writing the cost fields back. Scope with vehicle_id or run
// fleet-wide.
func (h *EngineHandler) RecomputeCosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		VehicleID string `json:"vehicle_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	snap, err := h.loadSnapshot(r, bson.M{})
	if err != nil {
		respondError(w, err)
		return
	}

	woByID := make(map[string]*models.MaintenanceWorkOrder, len(snap.workOrders))
	for i := range snap.workOrders {
		woByID[snap.workOrders[i].ID.Hex()] = &snap.workOrders[i]
	}
	historyByVehicle := make(map[string][]models.ServiceRecord)
	for i := range snap.records {
		historyByVehicle[snap.records[i].VehicleID] = append(historyByVehicle[snap.records[i].VehicleID], snap.records[i])
	}

	updated, flagged := 0, 0
	for i := range snap.records {
		rec := snap.records[i]
		if req.VehicleID != "" && rec.VehicleID != req.VehicleID {
			continue
		}

		vehicle := snap.byID[rec.VehicleID]
		var wo *models.MaintenanceWorkOrder
		if rec.WorkOrderID != "" {
			wo = woByID[rec.WorkOrderID]
		}
		history := make([]models.ServiceRecord, 0, len(historyByVehicle[rec.VehicleID]))
		for _, other := range historyByVehicle[rec.VehicleID] {
			if other.ID != rec.ID {
				history = append(history, other)
			}
		}

		out := costs.ApplyRules(rec, vehicle, wo, history)
		if err := h.stores.ServiceRecords.UpdateServiceRecord(r.Context(), rec.ID.Hex(), out); err != nil {
			respondError(w, &faults.Dependency{Op: "update service record", Err: err})
			return
		}
		updated++
		if out.CostAnomalyFlag {
			flagged++
		}
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
		"flagged": flagged,
	})
}

// UploadImport creates a new import batch from raw rows.
func (h *EngineHandler) UploadImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Kind     models.ImportKind   `json:"kind"`
		FileName string              `json:"file_name"`
		Rows     []map[string]string `json:"rows"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	uploadedBy := ""
	if claims, ok := userClaims(r); ok {
		uploadedBy = claims.Username
	}

	batch, err := h.imports.Upload(r.Context(), req.Kind, req.FileName, uploadedBy, req.Rows)
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"batch": batch,
	})
}

// ValidateImport runs row validation over a batch.
func (h *EngineHandler) ValidateImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		BatchID string `json:"batch_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.BatchID == "" {
		respondError(w, faults.Validationf("batch_id is required"))
		return
	}

	res, err := h.imports.Validate(r.Context(), req.BatchID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"total": res.Total,
		"rows":  res.Rows,
	})
}

// CommitImport commits a validated batch and invalidates the compliance
// cache, since committed records change the rollups.
func (h *EngineHandler) CommitImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		BatchID            string `json:"batch_id"`
		OverrideDuplicates bool   `json:"override_duplicates"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.BatchID == "" {
		respondError(w, faults.Validationf("batch_id is required"))
		return
	}

	res, err := h.imports.Commit(r.Context(), req.BatchID, req.OverrideDuplicates)
	if err != nil {
		respondError(w, err)
		return
	}
	h.aggregator.InvalidateAll()

	status := http.StatusOK
	if res.Deferred {
		status = http.StatusAccepted
	}
	respondSuccess(w, status, map[string]interface{}{
		"committed": res.Committed,
		"failed":    res.Failed,
		"deferred":  res.Deferred,
		"job_id":    res.JobID,
	})
}

// ImportStatus returns a batch with its per-status row counts.
func (h *EngineHandler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	batchID := r.URL.Query().Get("batch_id")
	if batchID == "" {
		respondError(w, faults.Validationf("batch_id is required"))
		return
	}

	res, err := h.imports.Status(r.Context(), batchID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"batch":  res.Batch,
		"counts": res.Counts,
	})
}

// parseWindow reads start/end query params, defaulting to the trailing 90
// days. Dates accept 2006-01-02 or RFC 3339.
func parseWindow(r *http.Request, now time.Time) (compliance.Window, error) {
	window := compliance.Window{Start: now.AddDate(0, 0, -90), End: now}

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return window, faults.Validationf("invalid start: %v", err)
		}
		window.Start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return window, faults.Validationf("invalid end: %v", err)
		}
		window.End = t
	}
	if window.End.Before(window.Start) {
		return window, faults.Validationf("end precedes start")
	}
	return window, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func userClaims(r *http.Request) (*models.Claims, bool) {
	return middleware.GetUserFromContext(r.Context())
}

func decodeBody(r *http.Request, into interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return faults.Validationf("failed to read request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, into); err != nil {
		return faults.Validationf("invalid JSON")
	}
	return nil
}
