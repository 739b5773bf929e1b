package importer

import (
	"context"
	"strings"

	"github.com/zoobz-io/pipz"

	"github.com/kpiconstruction/fleetrules/internal/db"
	"github.com/kpiconstruction/fleetrules/internal/models"
)

// rowState is the value threaded through the validation pipeline. outcome
// stays empty while checks pass; the first check that fails sets it and
// every later stage passes the state through untouched.
type rowState struct {
	row     models.ImportedRow
	handler rowHandler
	outcome models.RowStatus
	notes   string
}

func (s rowState) failed() bool { return s.outcome != "" }

// buildPipeline assembles the per-row validation sequence: parse required
// fields, resolve the vehicle, check for duplicates, then mark Ready. The
// sequence returns an error only on a duplicate-check persistence failure.
func buildPipeline(vehicles db.VehicleCollection, tol Tolerances) *pipz.Sequence[rowState] {
	parse := pipz.Apply(pipz.NewIdentity("parse-fields", ""), func(_ context.Context, s rowState) (rowState, error) {
		if s.failed() {
			return s, nil
		}
		if err := s.handler.parse(&s.row); err != nil {
			s.outcome = models.RowInvalidData
			s.notes = err.Error()
		}
		return s, nil
	})

	resolve := pipz.Apply(pipz.NewIdentity("resolve-vehicle", ""), func(ctx context.Context, s rowState) (rowState, error) {
		if s.failed() {
			return s, nil
		}
		vehicle := resolveVehicle(ctx, vehicles, &s.row)
		if vehicle == nil {
			s.outcome = models.RowVehicleNotFound
			s.notes = "no vehicle matches id or rego"
			return s, nil
		}
		s.row.MappedVehicleID = vehicle.ID.Hex()
		return s, nil
	})

	dedup := pipz.Apply(pipz.NewIdentity("duplicate-check", ""), func(ctx context.Context, s rowState) (rowState, error) {
		if s.failed() {
			return s, nil
		}
		dup, note, err := s.handler.duplicate(ctx, &s.row, tol)
		if err != nil {
			return s, err
		}
		if dup {
			s.outcome = models.RowDuplicate
			s.notes = note
		}
		return s, nil
	})

	finalize := pipz.Apply(pipz.NewIdentity("mark-ready", ""), func(_ context.Context, s rowState) (rowState, error) {
		if !s.failed() {
			s.outcome = models.RowReady
			s.notes = ""
		}
		return s, nil
	})

	return pipz.NewSequence(pipz.NewIdentity("row-validation", ""), parse, resolve, dedup, finalize)
}

// resolveVehicle tries an explicit vehicle id first, then falls back to a
// case-insensitive exact rego match. Either a mapping fix from a previous
// pass or the raw columns can supply the keys.
func resolveVehicle(ctx context.Context, vehicles db.VehicleCollection, row *models.ImportedRow) *models.Vehicle {
	id := row.MappedVehicleID
	if id == "" {
		id = strings.TrimSpace(row.Raw["vehicle_id"])
	}
	if id != "" {
		if v, err := vehicles.FindVehicleByID(ctx, id); err == nil && v != nil {
			return v
		}
	}
	if rego := strings.TrimSpace(row.Raw["rego"]); rego != "" {
		if v, err := vehicles.FindVehicleByRego(ctx, rego); err == nil && v != nil {
			return v
		}
	}
	return nil
}
