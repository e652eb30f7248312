package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/phishvars/metrics"
	"github.com/GoCodeAlone/phishvars/personalize"
	"github.com/GoCodeAlone/phishvars/store"
)

// VariableHandler handles variable CRUD endpoints.
type VariableHandler struct {
	variables store.VariableStore
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// NewVariableHandler creates a new VariableHandler.
func NewVariableHandler(variables store.VariableStore, logger *slog.Logger, collector *metrics.Collector) *VariableHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VariableHandler{variables: variables, logger: logger, metrics: collector}
}

// List handles GET /api/variables.
func (h *VariableHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	vs, err := h.variables.ListVariables(r.Context(), uid)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error fetching variables")
		return
	}
	WriteJSON(w, http.StatusOK, vs)
}

// Summaries handles GET /api/variables/summary.
func (h *VariableHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	vs, err := h.variables.VariableSummaries(r.Context(), uid)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error fetching variables")
		return
	}
	WriteJSON(w, http.StatusOK, vs)
}

// Get handles GET /api/variables/{id}.
func (h *VariableHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	v, err := h.variables.GetVariable(r.Context(), uid, id)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error fetching variable")
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

// Summary handles GET /api/variables/{id}/summary.
func (h *VariableHandler) Summary(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	s, err := h.variables.VariableSummary(r.Context(), uid, id)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error fetching variable")
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// Create handles POST /api/variables.
func (h *VariableHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var v store.Variable
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON structure")
		return
	}
	v.ID = 0
	v.UserID = uid
	if err := checkVariable(&v); err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error inserting variable into database")
		return
	}
	err := h.variables.CreateVariable(r.Context(), &v)
	h.metrics.RecordWrite("variable", "create", err)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error inserting variable into database")
		return
	}
	WriteJSON(w, http.StatusCreated, v)
}

// Update handles PUT /api/variables/{id}. The body id must match the path.
func (h *VariableHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var v store.Variable
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON structure")
		return
	}
	if v.ID != id {
		WriteError(w, http.StatusBadRequest, "Error: /:id and variable_id mismatch")
		return
	}
	v.UserID = uid
	if err := checkVariable(&v); err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error updating variable")
		return
	}
	err := h.variables.UpdateVariable(r.Context(), &v)
	h.metrics.RecordWrite("variable", "update", err)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error updating variable")
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

// Delete handles DELETE /api/variables/{id}.
func (h *VariableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	err := h.variables.DeleteVariable(r.Context(), uid, id)
	h.metrics.RecordWrite("variable", "delete", err)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Variable", "Error deleting variable")
		return
	}
	WriteSuccess(w, "Variable deleted successfully!")
}

// checkVariable validates v and, for complex variables, compiles every
// condition so broken expressions are rejected before they are stored.
func checkVariable(v *store.Variable) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if v.Type != store.VariableComplex {
		return nil
	}
	for _, c := range v.Conditions {
		if err := personalize.CheckCondition(c.Condition); err != nil {
			return store.Validationf("Invalid condition %q: %v", c.Condition, err)
		}
	}
	return nil
}
