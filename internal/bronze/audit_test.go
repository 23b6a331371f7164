package bronze

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lodestone-data/lodestone/internal/log"
)

func strPtr(s string) *string { return &s }

func statementHandler(t *testing.T, gotStatement *string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != statementPath {
			t.Errorf("path = %s, want %s", r.URL.Path, statementPath)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("auth header = %q", auth)
		}
		var req statementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		*gotStatement = req.Statement

		resp := statementResponse{}
		resp.Status.State = "SUCCEEDED"
		resp.Manifest.Schema.Columns = []struct {
			Name string `json:"name"`
		}{
			{Name: "source_name"}, {Name: "environment"}, {Name: "start_time"},
			{Name: "end_time"}, {Name: "status"}, {Name: "records_read"},
			{Name: "records_written"}, {Name: "records_quarantined"}, {Name: "error"},
		}
		resp.Result.DataArray = [][]*string{
			{
				strPtr("orders_api"), strPtr("dev"), strPtr("2026-08-01T02:00:00Z"),
				strPtr("2026-08-01T02:05:00Z"), strPtr("SUCCESS"), strPtr("1200"),
				strPtr("1200"), strPtr("0"), nil,
			},
			{
				strPtr("orders_api"), strPtr("dev"), strPtr("2026-07-31T02:00:00Z"),
				strPtr("2026-07-31T02:01:00Z"), strPtr("FAILURE"), strPtr("300"),
				strPtr("0"), strPtr("12"), strPtr("schema drift detected"),
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestAuditLog_RecentRuns(t *testing.T) {
	var gotStatement string
	srv := httptest.NewServer(statementHandler(t, &gotStatement))
	defer srv.Close()

	wc := NewWarehouseClient(srv.URL, "test-token", "wh-123", log.NewNop())
	audit := NewAuditLog(wc, log.NewNop())

	runs, err := audit.RecentRuns(context.Background(), "orders_api", "main", 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}

	if !strings.Contains(gotStatement, "WHERE source_name = 'orders_api'") {
		t.Errorf("statement missing source filter: %s", gotStatement)
	}
	if !strings.Contains(gotStatement, "`main`.bronze_meta.ingestion_audit_log") {
		t.Errorf("statement missing audit table: %s", gotStatement)
	}
	if !strings.Contains(gotStatement, "LIMIT 5") {
		t.Errorf("statement missing limit: %s", gotStatement)
	}

	first := runs[0]
	if first.Status != "SUCCESS" || first.RecordsRead != 1200 || first.Error != "" {
		t.Errorf("first run = %+v", first)
	}
	second := runs[1]
	if second.Status != "FAILURE" || second.RecordsQuarantined != 12 || second.Error != "schema drift detected" {
		t.Errorf("second run = %+v", second)
	}
}

func TestAuditLog_RecentRuns_EscapesSourceName(t *testing.T) {
	var gotStatement string
	srv := httptest.NewServer(statementHandler(t, &gotStatement))
	defer srv.Close()

	wc := NewWarehouseClient(srv.URL, "test-token", "wh-123", log.NewNop())
	audit := NewAuditLog(wc, log.NewNop())

	if _, err := audit.RecentRuns(context.Background(), "o'brien", "main", 1); err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if !strings.Contains(gotStatement, "'o''brien'") {
		t.Errorf("source name not escaped: %s", gotStatement)
	}
}

func TestWarehouseClient_Unavailable(t *testing.T) {
	wc := NewWarehouseClient("", "", "", log.NewNop())
	if wc.Available() {
		t.Fatal("client with no config should be unavailable")
	}
	_, err := wc.QuerySQL(context.Background(), "SELECT 1")
	if !errors.Is(err, ErrWarehouseUnavailable) {
		t.Errorf("err = %v, want ErrWarehouseUnavailable", err)
	}
}

func TestWarehouseClient_StatementFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := statementResponse{}
		resp.Status.State = "FAILED"
		resp.Status.Error.Message = "warehouse is starting"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	wc := NewWarehouseClient(srv.URL, "test-token", "wh-123", log.NewNop())
	_, err := wc.QuerySQL(context.Background(), "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "warehouse is starting") {
		t.Errorf("err = %v, want statement failure with message", err)
	}
}
