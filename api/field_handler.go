package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/phishvars/metrics"
	"github.com/GoCodeAlone/phishvars/store"
)

// FieldHandler handles field CRUD endpoints.
type FieldHandler struct {
	fields  store.FieldStore
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewFieldHandler creates a new FieldHandler.
func NewFieldHandler(fields store.FieldStore, logger *slog.Logger, collector *metrics.Collector) *FieldHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldHandler{fields: fields, logger: logger, metrics: collector}
}

// List handles GET /api/fields.
func (h *FieldHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	fs, err := h.fields.ListFields(r.Context(), uid)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Field", "Error fetching fields")
		return
	}
	WriteJSON(w, http.StatusOK, fs)
}

// Summaries handles GET /api/fields/summary.
func (h *FieldHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	fs, err := h.fields.FieldSummaries(r.Context(), uid)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Field", "Error fetching fields")
		return
	}
	WriteJSON(w, http.StatusOK, fs)
}

// Get handles GET /api/fields/{id}.
func (h *FieldHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	f, err := h.fields.GetField(r.Context(), uid, id)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Field", "Error fetching field")
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

// Summary handles GET /api/fields/{id}/summary.
func (h *FieldHandler) Summary(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	s, err := h.fields.FieldSummary(r.Context(), uid, id)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Field", "Error fetching field")
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// Create handles POST /api/fields.
func (h *FieldHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var f store.Field
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON structure")
		return
	}
	f.ID = 0
	f.UserID = uid
	err := h.fields.CreateField(r.Context(), &f)
	h.metrics.RecordWrite("field", "create", err)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Field", "Error inserting field into database")
		return
	}
	WriteJSON(w, http.StatusCreated, f)
}

// Update handles PUT /api/fields/{id}. The body id must match the path.
func (h *FieldHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var f store.Field
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON structure")
		return
	}
	if f.ID != id {
		WriteError(w, http.StatusBadRequest, "Error: /:id and field_id mismatch")
		return
	}
	f.UserID = uid
	err := h.fields.UpdateField(r.Context(), &f)
	h.metrics.RecordWrite("field", "update", err)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Field", "Error updating field")
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

// Delete handles DELETE /api/fields/{id}.
func (h *FieldHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	err := h.fields.DeleteField(r.Context(), uid, id)
	h.metrics.RecordWrite("field", "delete", err)
	if err != nil {
		writeStoreError(w, r, h.logger, err, "Field", "Error deleting field")
		return
	}
	WriteSuccess(w, "Field deleted successfully!")
}
