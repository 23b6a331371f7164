package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lodestone-data/lodestone/internal/bronze"
)

// SourceDocs converts one source config into exactly two chunks: the raw
// YAML verbatim (for exact-lookup queries) and a natural-language summary
// (for semantic queries). Both share the source_config:<name> label so
// citations can point back at the originating source.
func SourceDocs(detail *bronze.SourceDetail) []Doc {
	label := "source_config:" + detail.Name

	yamlDoc := Doc{
		ID:   stableID("source_yaml", "yaml_"+detail.Name),
		Text: detail.RawYAML,
		Metadata: map[string]string{
			MetaSource:     label,
			MetaSourceName: detail.Name,
			MetaType:       TypeSourceYAML,
		},
	}

	summaryDoc := Doc{
		ID:   stableID("source_summary", "summary_"+detail.Name),
		Text: summarize(detail),
		Metadata: map[string]string{
			MetaSource:     label,
			MetaSourceName: detail.Name,
			MetaType:       TypeSourceSummary,
		},
	}

	return []Doc{yamlDoc, summaryDoc}
}

// summarize renders one source config as a single natural-language passage.
func summarize(detail *bronze.SourceDetail) string {
	description := detail.Description
	if description == "" {
		description = "No description"
	}

	return fmt.Sprintf(
		"Source '%s' is a %s source. Description: %s. Enabled: %t. "+
			"Target table: %s. CDC mode: %s. Primary keys: %s. Load type: %s. Tags: %s.",
		detail.Name,
		detail.Type,
		description,
		detail.Enabled,
		detail.Target.FullTable(),
		detail.Target.CDC.Mode,
		strings.Join(detail.Target.CDC.PrimaryKeys, ", "),
		detail.Extract.LoadType,
		formatTags(detail.Tags),
	)
}

// formatTags renders tags deterministically, sorted by key.
func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+tags[k])
	}
	return strings.Join(pairs, ", ")
}
