package api

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/GoCodeAlone/phishvars/csvio"
	"github.com/GoCodeAlone/phishvars/metrics"
	"github.com/GoCodeAlone/phishvars/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// defaultMaxUploadBytes caps an import request body when no limit is set.
const defaultMaxUploadBytes = 10 << 20

// ImportHandler parses uploaded CSV files into child records. Nothing is
// stored; the console inserts the records into its table.
type ImportHandler struct {
	maxBytes int64
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewImportHandler creates a new ImportHandler. maxBytes <= 0 uses 10 MiB.
func NewImportHandler(maxBytes int64, logger *slog.Logger, collector *metrics.Collector) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{maxBytes: maxBytes, logger: logger, metrics: collector}
}

// importResult is the body of a successful import.
type importResult[T any] struct {
	Result []T `json:"result"`
}

// Fields handles POST /api/import/field.
func (h *ImportHandler) Fields(w http.ResponseWriter, r *http.Request) {
	importRecords(h, w, r, csvio.KindField, csvio.ParseValues)
}

// Variables handles POST /api/import/variable.
func (h *ImportHandler) Variables(w http.ResponseWriter, r *http.Request) {
	importRecords(h, w, r, csvio.KindVariable, csvio.ParseConditions)
}

func importRecords[T any](h *ImportHandler, w http.ResponseWriter, r *http.Request, kind csvio.Kind, parse func(*multipart.Reader) ([]T, error)) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Expected a multipart file upload")
		return
	}

	_, span := tracing.Start(r.Context(), "csvio.parse", attribute.String("kind", string(kind)))
	records, err := parse(mr)
	if err == nil {
		span.SetAttributes(attribute.Int("records", len(records)))
	}
	tracing.End(span, err)

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	case errors.Is(err, csvio.ErrMalformed):
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "import failed", "kind", kind, "error", err)
		WriteError(w, http.StatusBadRequest, "Error reading upload")
		return
	}
	if records == nil {
		records = []T{}
	}
	h.metrics.RecordImport(string(kind), len(records))
	WriteJSON(w, http.StatusOK, importResult[T]{Result: records})
}
