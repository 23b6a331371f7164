// Package chunk turns raw documentation text and structured source records
// into short, independently retrievable chunks with stable ids and metadata.
//
// Ids are content-addressed: re-running the pipeline over the same input
// produces identical ids, so indexing is an idempotent upsert.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Metadata keys attached to every chunk.
const (
	MetaSource     = "source"
	MetaType       = "type"
	MetaFile       = "file"
	MetaSourceName = "source_name"
)

// Chunk type values stored under MetaType.
const (
	TypeDocumentation = "documentation"
	TypeSourceYAML    = "source_yaml"
	TypeSourceSummary = "source_summary"
	TypeReference     = "reference"
)

const (
	// sectionSplitThreshold is the section size above which a markdown
	// section is re-split by paragraphs.
	sectionSplitThreshold = 1200

	// chunkCap is the soft cap for accumulated paragraph chunks.
	chunkCap = 1000
)

// Doc is one retrievable unit of text.
type Doc struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// SplitMarkdown splits markdown-like text on second-level headings into
// chunks. Sections larger than ~1200 characters are further split on
// paragraph breaks, accumulating into chunks capped near 1000 characters.
// Ids derive from (filePath, section index, sub-chunk index), so identical
// input yields identical ids.
func SplitMarkdown(text, sourceLabel, filePath string) []Doc {
	var docs []Doc

	sections := strings.Split(text, "\n## ")
	for i, section := range sections {
		if i > 0 {
			section = "## " + section
		}

		if len(section) > sectionSplitThreshold {
			docs = append(docs, splitSection(section, sourceLabel, filePath, i)...)
			continue
		}
		if trimmed := strings.TrimSpace(section); trimmed != "" {
			docs = append(docs, Doc{
				ID:   stableID(sourceLabel, fmt.Sprintf("%s_%d", filePath, i)),
				Text: trimmed,
				Metadata: map[string]string{
					MetaSource: sourceLabel,
					MetaFile:   filePath,
					MetaType:   TypeDocumentation,
				},
			})
		}
	}
	return docs
}

// splitSection accumulates paragraphs into capped chunks, flushing whenever
// the next paragraph would push past the cap.
func splitSection(section, sourceLabel, filePath string, sectionIdx int) []Doc {
	var docs []Doc

	flush := func(text string, chunkIdx int) {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return
		}
		docs = append(docs, Doc{
			ID:   stableID(sourceLabel, fmt.Sprintf("%s_%d_%d", filePath, sectionIdx, chunkIdx)),
			Text: trimmed,
			Metadata: map[string]string{
				MetaSource: sourceLabel,
				MetaFile:   filePath,
				MetaType:   TypeDocumentation,
			},
		})
	}

	var current strings.Builder
	chunkIdx := 0
	for _, para := range strings.Split(section, "\n\n") {
		if current.Len()+len(para) > chunkCap && current.Len() > 0 {
			flush(current.String(), chunkIdx)
			current.Reset()
			current.WriteString(para)
			chunkIdx++
			continue
		}
		current.WriteString("\n\n")
		current.WriteString(para)
	}
	flush(current.String(), chunkIdx)

	return docs
}

// stableID builds a deterministic chunk id: label plus the first 32 hex
// characters of the sha256 of the position key.
func stableID(label, key string) string {
	sum := sha256.Sum256([]byte(key))
	return label + "_" + hex.EncodeToString(sum[:16])
}
