package bronze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lodestone-data/lodestone/internal/log"
)

// ErrWarehouseUnavailable indicates the SQL warehouse is not configured.
var ErrWarehouseUnavailable = errors.New("sql warehouse not configured")

const (
	statementPath    = "/api/2.0/sql/statements"
	statementTimeout = 45 * time.Second
	statementWait    = "30s"
)

// WarehouseClient executes SQL statements against the platform's SQL
// warehouse via its statement-execution REST API.
type WarehouseClient struct {
	host        string
	token       string
	warehouseID string
	httpClient  *http.Client
	logger      log.Logger
}

// NewWarehouseClient creates a client for the statement-execution API.
// Returns a client in unavailable state when host, token or warehouse id is
// missing; callers can check Available.
func NewWarehouseClient(host, token, warehouseID string, logger log.Logger) *WarehouseClient {
	if logger == nil {
		logger = log.NewNop()
	}
	return &WarehouseClient{
		host:        strings.TrimRight(host, "/"),
		token:       token,
		warehouseID: warehouseID,
		httpClient:  &http.Client{Timeout: statementTimeout},
		logger:      logger,
	}
}

// Available reports whether the client has enough configuration to run
// statements.
func (c *WarehouseClient) Available() bool {
	return c.host != "" && c.token != "" && c.warehouseID != ""
}

type statementRequest struct {
	WarehouseID string `json:"warehouse_id"`
	Statement   string `json:"statement"`
	WaitTimeout string `json:"wait_timeout"`
}

type statementResponse struct {
	Status struct {
		State string `json:"state"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"status"`
	Manifest struct {
		Schema struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest"`
	Result struct {
		DataArray [][]*string `json:"data_array"`
	} `json:"result"`
}

// QuerySQL executes a statement and returns rows as column-name keyed maps.
// All values come back as strings from the statement API; NULLs map to "".
func (c *WarehouseClient) QuerySQL(ctx context.Context, statement string) ([]map[string]string, error) {
	if !c.Available() {
		return nil, ErrWarehouseUnavailable
	}

	body, err := json.Marshal(statementRequest{
		WarehouseID: c.warehouseID,
		Statement:   statement,
		WaitTimeout: statementWait,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal statement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+statementPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build statement request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("statement request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("statement API returned status %d", resp.StatusCode)
	}

	var sr statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode statement response: %w", err)
	}
	if sr.Status.State != "SUCCEEDED" {
		return nil, fmt.Errorf("statement state %s: %s", sr.Status.State, sr.Status.Error.Message)
	}

	columns := make([]string, len(sr.Manifest.Schema.Columns))
	for i, col := range sr.Manifest.Schema.Columns {
		columns[i] = col.Name
	}

	rows := make([]map[string]string, 0, len(sr.Result.DataArray))
	for _, raw := range sr.Result.DataArray {
		row := make(map[string]string, len(columns))
		for i, val := range raw {
			if i >= len(columns) {
				break
			}
			if val != nil {
				row[columns[i]] = *val
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AuditLog reads the ingestion audit log through the SQL warehouse.
type AuditLog struct {
	warehouse *WarehouseClient
	logger    log.Logger
}

// NewAuditLog creates an AuditLog over the given warehouse client.
func NewAuditLog(warehouse *WarehouseClient, logger log.Logger) *AuditLog {
	if logger == nil {
		logger = log.NewNop()
	}
	return &AuditLog{warehouse: warehouse, logger: logger}
}

// RecentRuns returns the most recent ingestion runs for a source, newest
// first, from <catalog>.bronze_meta.ingestion_audit_log.
func (a *AuditLog) RecentRuns(ctx context.Context, sourceName, catalog string, limit int) ([]RunRecord, error) {
	if limit < 1 {
		limit = 1
	}
	statement := fmt.Sprintf(`SELECT source_name, environment, start_time, end_time,
       status, records_read, records_written, records_quarantined, error
FROM %s.bronze_meta.ingestion_audit_log
WHERE source_name = '%s'
ORDER BY start_time DESC
LIMIT %d`, quoteIdent(catalog), escapeSQLString(sourceName), limit)

	rows, err := a.warehouse.QuerySQL(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}

	runs := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, RunRecord{
			SourceName:         row["source_name"],
			Environment:        row["environment"],
			StartTime:          row["start_time"],
			EndTime:            row["end_time"],
			Status:             row["status"],
			RecordsRead:        parseInt64(row["records_read"]),
			RecordsWritten:     parseInt64(row["records_written"]),
			RecordsQuarantined: parseInt64(row["records_quarantined"]),
			Error:              row["error"],
		})
	}
	return runs, nil
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// escapeSQLString doubles single quotes for embedding in a SQL literal.
// The statement API has no bind parameters for this endpoint version.
func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// quoteIdent backtick-quotes a catalog identifier, stripping any embedded
// backticks.
func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "") + "`"
}
