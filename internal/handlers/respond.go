package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kpiconstruction/fleetrules/internal/faults"
)

// Every engine endpoint answers {"success": true, ...payload} or
// {"success": false, "error": ...}. Field names on the payloads are a
// versioned export contract.

func respondSuccess(w http.ResponseWriter, status int, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError maps the error taxonomy onto HTTP statuses. Conflicts carry
// their per-status breakdown into the payload.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case faults.IsValidation(err):
		status = http.StatusBadRequest
	case faults.IsNotFound(err):
		status = http.StatusNotFound
	case faults.IsConflict(err):
		status = http.StatusConflict
	case faults.IsDependency(err):
		status = http.StatusBadGateway
	}

	body := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
	var conflict *faults.Conflict
	if errors.As(err, &conflict) && len(conflict.Breakdown) > 0 {
		body["breakdown"] = conflict.Breakdown
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
