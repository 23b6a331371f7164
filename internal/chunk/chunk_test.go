package chunk

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lodestone-data/lodestone/internal/bronze"
)

func TestSplitMarkdown_ByHeadings(t *testing.T) {
	text := "# Title\n\nIntro paragraph.\n## Setup\n\nInstall things.\n## Usage\n\nRun things."

	docs := SplitMarkdown(text, "guide", "docs/guide.md")
	if len(docs) != 3 {
		t.Fatalf("got %d chunks, want 3", len(docs))
	}
	if !strings.HasPrefix(docs[1].Text, "## Setup") {
		t.Errorf("second chunk should start at the heading, got %q", docs[1].Text)
	}
	for _, d := range docs {
		if d.Metadata[MetaType] != TypeDocumentation {
			t.Errorf("chunk %s type = %s", d.ID, d.Metadata[MetaType])
		}
		if d.Metadata[MetaSource] != "guide" || d.Metadata[MetaFile] != "docs/guide.md" {
			t.Errorf("chunk metadata = %v", d.Metadata)
		}
	}
}

func TestSplitMarkdown_LargeSectionSplitsByParagraph(t *testing.T) {
	para := strings.Repeat("lorem ipsum dolor sit amet ", 20) // ~540 chars
	text := "## Big Section\n\n" + para + "\n\n" + para + "\n\n" + para

	docs := SplitMarkdown(text, "guide", "docs/guide.md")
	if len(docs) < 2 {
		t.Fatalf("oversized section should split, got %d chunks", len(docs))
	}
	for _, d := range docs {
		// Cap is soft: one paragraph may exceed it, but accumulated chunks
		// must not grow past cap plus one paragraph.
		if len(d.Text) > chunkCap+len(para)+2 {
			t.Errorf("chunk of %d chars exceeds accumulation bound", len(d.Text))
		}
		if d.Text != strings.TrimSpace(d.Text) {
			t.Errorf("chunk not trimmed: %q", d.Text[:20])
		}
	}
}

func TestSplitMarkdown_Deterministic(t *testing.T) {
	text := "# A\n\nIntro.\n## B\n\nBody."

	first := SplitMarkdown(text, "guide", "docs/guide.md")
	second := SplitMarkdown(text, "guide", "docs/guide.md")

	if !reflect.DeepEqual(first, second) {
		t.Error("identical input must produce identical chunks and ids")
	}
}

func TestSplitMarkdown_IDsDifferPerFile(t *testing.T) {
	text := "# Same\n\nSame content."

	a := SplitMarkdown(text, "guide", "docs/a.md")
	b := SplitMarkdown(text, "guide", "docs/b.md")
	if a[0].ID == b[0].ID {
		t.Error("ids must incorporate the file path")
	}
}

func TestSplitMarkdown_SkipsEmptySections(t *testing.T) {
	docs := SplitMarkdown("\n## \n\n   \n", "guide", "docs/guide.md")
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			t.Errorf("emitted empty chunk %s", d.ID)
		}
	}
}

func testDetail() *bronze.SourceDetail {
	return &bronze.SourceDetail{
		Name:        "orders_api",
		Type:        bronze.SourceTypeAPI,
		Description: "Orders from the commerce API",
		Enabled:     true,
		Tags:        map[string]string{"domain": "sales", "owner": "core"},
		Extract:     bronze.Extract{LoadType: bronze.LoadTypeIncremental},
		Target: bronze.Target{
			Catalog: "main",
			Schema:  "bronze",
			Table:   "orders",
			CDC:     bronze.CDC{Enabled: true, Mode: bronze.CDCModeUpsert, PrimaryKeys: []string{"order_id"}},
		},
		RawYAML: "name: orders_api\nsource_type: api\n",
	}
}

func TestSourceDocs_EmitsExactlyTwoChunks(t *testing.T) {
	docs := SourceDocs(testDetail())
	if len(docs) != 2 {
		t.Fatalf("got %d chunks, want 2", len(docs))
	}

	yamlDoc, summaryDoc := docs[0], docs[1]
	if yamlDoc.Metadata[MetaType] != TypeSourceYAML {
		t.Errorf("first chunk type = %s", yamlDoc.Metadata[MetaType])
	}
	if yamlDoc.Text != "name: orders_api\nsource_type: api\n" {
		t.Error("raw YAML chunk must be verbatim")
	}
	if summaryDoc.Metadata[MetaType] != TypeSourceSummary {
		t.Errorf("second chunk type = %s", summaryDoc.Metadata[MetaType])
	}
	for _, d := range docs {
		if d.Metadata[MetaSource] != "source_config:orders_api" {
			t.Errorf("chunk source label = %s", d.Metadata[MetaSource])
		}
		if d.Metadata[MetaSourceName] != "orders_api" {
			t.Errorf("chunk source_name = %s", d.Metadata[MetaSourceName])
		}
	}
}

func TestSourceDocs_SummaryContent(t *testing.T) {
	docs := SourceDocs(testDetail())
	summary := docs[1].Text

	for _, want := range []string{
		"Source 'orders_api' is a api source",
		"Enabled: true",
		"Target table: main.bronze.orders",
		"CDC mode: upsert",
		"Primary keys: order_id",
		"Load type: incremental",
		"domain=sales, owner=core",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestSourceDocs_StableIDs(t *testing.T) {
	a := SourceDocs(testDetail())
	b := SourceDocs(testDetail())
	if a[0].ID != b[0].ID || a[1].ID != b[1].ID {
		t.Error("source chunk ids must be stable across runs")
	}
	if a[0].ID == a[1].ID {
		t.Error("yaml and summary chunks must have distinct ids")
	}
}

func TestReferenceDoc(t *testing.T) {
	ref := ReferenceDoc()
	if ref.Metadata[MetaType] != TypeReference {
		t.Errorf("type = %s", ref.Metadata[MetaType])
	}
	if ref.ID != ReferenceDoc().ID {
		t.Error("reference chunk id must be constant")
	}
	for _, vocab := range []string{"scd2", "incremental", "link_header", "_rescued_data"} {
		if !strings.Contains(ref.Text, vocab) {
			t.Errorf("reference text missing %q", vocab)
		}
	}
}

func TestLoadDocs(t *testing.T) {
	dir := t.TempDir()
	content := "# Architecture\n\nOverview text.\n## Pipeline\n\nPipeline text."
	if err := os.WriteFile(filepath.Join(dir, "architecture.md"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}

	docs, err := LoadDocs(dir)
	if err != nil {
		t.Fatalf("LoadDocs: %v", err)
	}

	// Two sections plus the reference chunk.
	if len(docs) != 3 {
		t.Fatalf("got %d chunks, want 3", len(docs))
	}
	if docs[0].Metadata[MetaSource] != "architecture" {
		t.Errorf("label = %s, want file stem", docs[0].Metadata[MetaSource])
	}
	last := docs[len(docs)-1]
	if last.Metadata[MetaType] != TypeReference {
		t.Error("reference chunk must always be appended")
	}
}

func TestLoadDocs_MissingDir(t *testing.T) {
	docs, err := LoadDocs(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing docs dir should not error, got %v", err)
	}
	if len(docs) != 1 || docs[0].Metadata[MetaType] != TypeReference {
		t.Errorf("expected only the reference chunk, got %d chunks", len(docs))
	}
}
