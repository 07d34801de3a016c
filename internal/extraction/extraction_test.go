package extraction

import (
	"strings"
	"testing"

	"github.com/icm-memory/icm/internal/store"
)

func TestExtractScoresAndCaps(t *testing.T) {
	text := "We decided to use a layered architecture because it isolates the database from the API. " +
		"The sorting algorithm has O(n log n) complexity. " +
		"It was a sunny day outside. " +
		"The team chose microservices instead of a monolith for scaling reasons."

	facts := Extract(text, Options{MaxFacts: 2})
	if len(facts) > 2 {
		t.Fatalf("expected at most 2 facts, got %d", len(facts))
	}
	for _, f := range facts {
		if strings.Contains(f.Sentence, "sunny day") {
			t.Errorf("low-signal sentence should not survive scoring: %q", f.Sentence)
		}
	}
}

func TestExtractDedupesSimilarSentences(t *testing.T) {
	text := "We decided to use a layered architecture for the service. " +
		"We decided to use a layered architecture for the service module."

	facts := Extract(text, Options{MinScore: 1, DedupSimilarity: 0.5})
	if len(facts) != 1 {
		t.Fatalf("expected near-duplicate sentences collapsed to 1, got %d: %+v", len(facts), facts)
	}
}

func TestIngestTranscriptProducesMemories(t *testing.T) {
	text := "We decided to use event sourcing because it simplifies the audit log architecture."
	memories := IngestTranscript(text, IngestOptions{Topic: "design-notes"})
	if len(memories) == 0 {
		t.Fatal("expected at least one extracted memory")
	}
	for _, m := range memories {
		if m.Topic != "design-notes" {
			t.Errorf("topic = %q, want design-notes", m.Topic)
		}
		if m.Source != store.SourceConversation {
			t.Errorf("source = %q, want %q", m.Source, store.SourceConversation)
		}
	}
}

func TestFormatContextEmpty(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("expected empty string for no memories, got %q", got)
	}
}

func TestFormatContextIncludesTopicAndKeywords(t *testing.T) {
	out := FormatContext([]*store.Memory{
		{Topic: "go", Summary: "channels are typed", Keywords: []string{"channel", "concurrency"}},
	})
	if !strings.Contains(out, "[go] channels are typed") {
		t.Errorf("expected topic/summary line, got %q", out)
	}
	if !strings.Contains(out, "channel, concurrency") {
		t.Errorf("expected keywords line, got %q", out)
	}
}
