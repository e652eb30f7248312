package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	c := New(DefaultConfig())
	c.RecordHTTPRequest("GET /api/fields", 200, 15*time.Millisecond)
	c.RecordHTTPRequest("GET /api/fields", 200, 5*time.Millisecond)
	c.RecordHTTPRequest("GET /api/fields", 500, time.Millisecond)

	if got := testutil.ToFloat64(c.HTTPRequestsTotal.WithLabelValues("GET /api/fields", "200")); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.HTTPRequestsTotal.WithLabelValues("GET /api/fields", "500")); got != 1 {
		t.Errorf("500 count = %v, want 1", got)
	}
}

func TestRecordImportAndWrite(t *testing.T) {
	c := New(DefaultConfig())
	c.RecordImport("field", 3)
	c.RecordImport("field", 2)
	c.RecordWrite("variable", "create", nil)
	c.RecordWrite("variable", "create", errors.New("x"))

	if got := testutil.ToFloat64(c.ImportedRecords.WithLabelValues("field")); got != 5 {
		t.Errorf("imported = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.EntityWrites.WithLabelValues("variable", "create", "error")); got != 1 {
		t.Errorf("errored writes = %v, want 1", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	c := New(DefaultConfig())
	c.RecordImport("variable", 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.Path(), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `phishvars_imported_records_total{kind="variable"} 1`) {
		t.Errorf("metrics output missing import counter:\n%s", rec.Body.String())
	}
}
