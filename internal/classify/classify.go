// Package classify maps free-text questions to an intent that drives which
// context blocks the assistant assembles.
//
// The default implementation is deliberately simple weighted keyword
// matching: classification mistakes are low-cost because the config and
// operational context blocks are cheap and can be included speculatively,
// and an auditable keyword list beats an opaque model here.
package classify

import "strings"

// Intent is the classified purpose of a question.
type Intent string

const (
	// IntentOperational covers run history, failures, and ingestion volumes.
	IntentOperational Intent = "operational"

	// IntentConfig covers source configuration lookups.
	IntentConfig Intent = "config"

	// IntentDocs covers framework documentation and how-to questions.
	IntentDocs Intent = "docs"

	// IntentGeneral is the fallback when no keyword set matches.
	IntentGeneral Intent = "general"

	// IntentError labels the degraded response when no model backend is
	// configured. It is never produced by a Classifier.
	IntentError Intent = "error"
)

// Classifier decides the intent of a question. It is a pluggable strategy so
// the keyword matcher can later be swapped for a learned classifier without
// touching the orchestrator.
type Classifier interface {
	Classify(question string) Intent
}

var operationalKeywords = []string{
	"run", "last run", "history", "records", "ingested",
	"failed", "failure", "error", "dead letter", "quarantine",
	"status", "when was", "how many records", "successful",
	"refresh", "schedule",
}

var configKeywords = []string{
	"source", "configured", "yaml", "config", "connection",
	"table", "catalog", "schema", "cdc", "scd2", "primary key",
	"extract", "target", "enabled", "disabled",
	"how is", "what sources", "list sources",
	"transformation", "transform", "silver", "gold",
	"dimension", "fact", "star schema", "kpi", "aggregate",
}

var docsKeywords = []string{
	"how do i", "how to", "what is", "explain", "adapter",
	"architecture", "framework", "add a new", "documentation",
	"platform", "snowflake", "databricks", "watermark",
	"schema evolution", "quality threshold",
	"medallion", "bronze layer", "silver layer", "gold layer",
	"lineage", "end to end",
}

// Keyword is the default keyword-count classifier.
type Keyword struct{}

// NewKeyword returns the default classifier.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Classify lower-cases the question and counts substring matches against the
// three keyword sets. The intent with the highest count wins; a zero maximum
// yields IntentGeneral. Ties between nonzero scores resolve by fixed
// priority: operational > config > docs.
func (k *Keyword) Classify(question string) Intent {
	q := strings.ToLower(question)

	scores := []struct {
		intent   Intent
		keywords []string
	}{
		// Priority order doubles as the tie-break order.
		{IntentOperational, operationalKeywords},
		{IntentConfig, configKeywords},
		{IntentDocs, docsKeywords},
	}

	best := IntentGeneral
	bestScore := 0
	for _, s := range scores {
		score := countMatches(q, s.keywords)
		if score > bestScore {
			best = s.intent
			bestScore = score
		}
	}
	return best
}

func countMatches(q string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			n++
		}
	}
	return n
}
