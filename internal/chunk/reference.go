package chunk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// referenceText is the static configuration-vocabulary reference indexed as
// one shared chunk, so questions about enum values retrieve an authoritative
// answer even when the prose docs do not spell them out.
const referenceText = `Data Platform Configuration Reference:

== Medallion Architecture ==
Bronze Layer: Raw data ingestion from sources into Delta Lake tables. Handles CDC (change data capture), schema evolution, and data quality.
Silver Layer: Cleaned, conformed, and enriched data. Applies business rules, deduplication, standardization, and enrichment joins. (Coming soon)
Gold Layer: Curated, aggregated data for reporting. Star schemas, dimension/fact tables, KPIs, and materialized views. (Coming soon)

== Bronze Layer Configuration ==

Source Types: jdbc (database via JDBC driver), file (cloud storage files), api (REST API endpoint), stream (Kafka / Event Hub)

CDC Modes: append (insert-only, no dedup), upsert (overwrite matched rows), scd2 (slowly changing dimension type 2 - full history tracking with _effective_from, _effective_to, _is_current, _record_hash, _cdc_operation columns)

Load Types: full (complete reload every run), incremental (only new/changed records via watermark)

Schema Evolution Modes: merge (auto-add new columns), strict (fail on schema change), rescue (store unknown fields in _rescued_data column)

Auth Types: none, oauth2, api_key, bearer

Pagination Types: offset, cursor, link_header

Quality: quarantine_threshold_pct controls the maximum percentage of bad records before the pipeline fails. Dead letter records are written to a separate table.

SCD2 System Columns: _effective_from (TIMESTAMP), _effective_to (TIMESTAMP, NULL=current), _is_current (BOOLEAN), _record_hash (STRING, MD5 of non-key cols), _cdc_operation (STRING: INSERT/UPDATE/DELETE)`

// ReferenceDoc returns the enumerated-vocabulary reference chunk. Its id is
// constant, so rebuilds replace rather than duplicate it.
func ReferenceDoc() Doc {
	return Doc{
		ID:   stableID("reference", "config_reference"),
		Text: referenceText,
		Metadata: map[string]string{
			MetaSource: "config_reference",
			MetaType:   TypeReference,
		},
	}
}

// LoadDocs reads every markdown file in dir and splits it into documentation
// chunks, labeled by file stem, then appends the reference chunk. A missing
// directory yields just the reference chunk.
func LoadDocs(dir string) ([]Doc, error) {
	var docs []Doc

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		label := strings.TrimSuffix(name, ".md")
		docs = append(docs, SplitMarkdown(string(text), label, path)...)
	}

	docs = append(docs, ReferenceDoc())
	return docs, nil
}
