// Package bronze models the bronze-layer ingestion framework the assistant
// answers questions about: YAML source configurations and the operational
// audit log produced by ingestion runs.
package bronze

import "fmt"

// SourceType identifies the ingestion adapter for a source.
type SourceType string

const (
	SourceTypeJDBC   SourceType = "jdbc"
	SourceTypeFile   SourceType = "file"
	SourceTypeAPI    SourceType = "api"
	SourceTypeStream SourceType = "stream"
)

// CDCMode controls how change data capture lands rows in the target table.
type CDCMode string

const (
	CDCModeAppend CDCMode = "append"
	CDCModeUpsert CDCMode = "upsert"
	CDCModeSCD2   CDCMode = "scd2"
)

// LoadType distinguishes full reloads from watermark-based incremental loads.
type LoadType string

const (
	LoadTypeFull        LoadType = "full"
	LoadTypeIncremental LoadType = "incremental"
)

// CDC holds the change-data-capture section of a target descriptor.
type CDC struct {
	Enabled     bool     `yaml:"enabled"`
	Mode        CDCMode  `yaml:"mode"`
	PrimaryKeys []string `yaml:"primary_keys"`
}

// Target describes where a source lands in the lakehouse.
type Target struct {
	Catalog string `yaml:"catalog"`
	Schema  string `yaml:"schema"`
	Table   string `yaml:"table"`
	CDC     CDC    `yaml:"cdc"`
}

// FullTable returns the fully qualified catalog.schema.table name.
// The schema defaults to "bronze" when unset, matching the framework loader.
func (t Target) FullTable() string {
	schema := t.Schema
	if schema == "" {
		schema = "bronze"
	}
	return fmt.Sprintf("%s.%s.%s", t.Catalog, schema, t.Table)
}

// Extract holds the extraction section of a source config. Only the fields
// the assistant surfaces are modeled; adapter-specific settings stay in the
// raw YAML chunk.
type Extract struct {
	LoadType LoadType `yaml:"load_type"`
	Table    string   `yaml:"table"`
	Query    string   `yaml:"query"`
	Path     string   `yaml:"path"`
	BaseURL  string   `yaml:"base_url"`
}

// Schedule holds the optional cron schedule of a source.
type Schedule struct {
	CronExpression string `yaml:"cron_expression"`
}

// SourceSummary is the list-level view of a configured source.
type SourceSummary struct {
	Name        string
	Type        SourceType
	Description string
	Enabled     bool
	Tags        map[string]string
	TargetTable string
	CDCMode     CDCMode
	LoadType    LoadType
	Schedule    string
}

// SourceDetail is the full view of a configured source, including the raw
// serialized YAML used verbatim as a retrievable chunk.
type SourceDetail struct {
	Name        string
	Type        SourceType
	Description string
	Enabled     bool
	Tags        map[string]string
	Connection  map[string]any
	Extract     Extract
	Target      Target
	Schedule    *Schedule
	RawYAML     string
}

// RunRecord is one row of the ingestion audit log for a source.
type RunRecord struct {
	SourceName         string
	Environment        string
	StartTime          string
	EndTime            string
	Status             string
	RecordsRead        int64
	RecordsWritten     int64
	RecordsQuarantined int64
	Error              string
}
