package classify

import "testing"

func TestKeyword_Classify(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     Intent
	}{
		{
			name:     "run failures are operational",
			question: "show me recent run failures for source X",
			want:     IntentOperational,
		},
		{
			name:     "how-to questions are docs",
			question: "how do I add a new source adapter",
			want:     IntentDocs,
		},
		{
			name:     "configured sources are config",
			question: "what sources are configured",
			want:     IntentConfig,
		},
		{
			name:     "no keywords falls back to general",
			question: "hello",
			want:     IntentGeneral,
		},
		{
			name:     "empty question is general",
			question: "",
			want:     IntentGeneral,
		},
		{
			name:     "case insensitive",
			question: "WHAT SOURCES ARE CONFIGURED",
			want:     IntentConfig,
		},
		{
			name:     "cdc mode lookup is config",
			question: "what is the cdc mode and primary key for the orders table",
			want:     IntentConfig,
		},
		{
			name:     "ingestion volume is operational",
			question: "how many records were ingested in the last run",
			want:     IntentOperational,
		},
		{
			name:     "architecture question is docs",
			question: "explain the medallion architecture",
			want:     IntentDocs,
		},
	}

	c := NewKeyword()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.question); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.question, got, tt.want)
			}
		})
	}
}

// Ties between nonzero scores resolve by fixed priority
// operational > config > docs.
func TestKeyword_Classify_TieBreakPriority(t *testing.T) {
	c := NewKeyword()

	// "status" is operational-only, "yaml" is config-only: one hit each.
	if got := c.Classify("status yaml"); got != IntentOperational {
		t.Errorf("operational/config tie = %s, want operational", got)
	}

	// "yaml" is config-only, "watermark" is docs-only: one hit each.
	if got := c.Classify("yaml watermark"); got != IntentConfig {
		t.Errorf("config/docs tie = %s, want config", got)
	}
}
