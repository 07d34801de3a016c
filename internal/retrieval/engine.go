// Package retrieval implements ICM's hybrid recall: FTS5 keyword scoring
// fused with brute-force cosine similarity over embeddings, with graceful
// degradation when either half is unavailable.
package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/logging"
	"github.com/icm-memory/icm/internal/store"
	"github.com/icm-memory/icm/internal/vecstore"
)

var log = logging.GetLogger("retrieval")

// Mode reports which half of the hybrid scorer actually ran, so callers
// (and tests) can assert on the degradation path rather than just the
// result set.
type Mode string

const (
	ModeHybrid          Mode = "hybrid"
	ModeFTSOnly         Mode = "fts_only"
	ModeKeywordFallback Mode = "keyword_fallback"
)

// Embedder turns free text into the fixed-dimension vector space a store's
// memories are embedded in. Satisfied by internal/embed's Ollama client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures one Recall call. Alpha/Beta/RerankCandidates follow
// spec.md §4.2's defaults when left zero.
type Options struct {
	Query             string
	Topic             string
	Keyword           string // optional substring filter applied after fusion, alongside Topic
	Limit             int
	MinWeight         float64
	Alpha             float64 // bm25 weight
	Beta              float64 // cosine weight
	RerankCandidates  int
	Reinforce         bool // bump weight on every returned memory, per spec.md recall semantics
	ReinforcementCoef float64
}

const (
	defaultAlpha            = 0.3
	defaultBeta             = 0.7
	defaultRerankCandidates = 20
	defaultLimit            = 10
	defaultReinforcement    = 0.1
)

// Result pairs a Memory with its fused relevance score and which signal(s)
// produced it.
type Result struct {
	Memory    *store.Memory
	Score     float64
	MatchType string // "hybrid", "keyword", "vector"
}

// Engine runs recall queries against a Store, optionally backed by an
// Embedder for the vector half. Mirrors the teacher's search.Engine shape
// (internal/search/engine.go) — a thin struct wrapping db + optional AI —
// generalized to ICM's single hybrid mode instead of five SearchType
// variants, since spec.md only asks for hybrid/fts-only/keyword-fallback.
type Engine struct {
	store       *store.Store
	embedder    Embedder
	lifecycle   *lifecycle.Manager
	vectorIndex vecstore.VectorIndex
}

// NewEngine constructs a keyword-only engine; embeddings degrade to
// ModeFTSOnly until SetEmbedder is called. The vector half defaults to
// vecstore.InProcessIndex, the brute-force Store scan; SetVectorIndex swaps
// in a remote backend (e.g. vecstore.QdrantIndex) without touching Recall.
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s, lifecycle: lifecycle.NewManager(s), vectorIndex: vecstore.NewInProcessIndex(s)}
}

// NewEngineWithEmbedder constructs a hybrid-capable engine.
func NewEngineWithEmbedder(s *store.Store, e Embedder) *Engine {
	return &Engine{store: s, embedder: e, lifecycle: lifecycle.NewManager(s), vectorIndex: vecstore.NewInProcessIndex(s)}
}

// SetEmbedder wires an embedder in after construction, e.g. once config has
// resolved which provider is configured.
func (e *Engine) SetEmbedder(embedder Embedder) { e.embedder = embedder }

// SetVectorIndex swaps the vector half's backend, e.g. once config has
// resolved a remote Qdrant collection should be used instead of the
// in-process brute-force scan.
func (e *Engine) SetVectorIndex(idx vecstore.VectorIndex) { e.vectorIndex = idx }

// HasEmbedder reports whether the vector half of the hybrid score can run.
func (e *Engine) HasEmbedder() bool { return e.embedder != nil }

// Recall runs the hybrid scorer and returns up to opts.Limit results sorted
// by fused score descending, then weight descending, then last_accessed
// descending, then id — the tie-break order spec.md §4.2 requires for
// determinism.
func (e *Engine) Recall(ctx context.Context, opts Options) ([]Result, Mode, error) {
	if opts.Query == "" {
		return nil, "", icmerr.New(icmerr.InvalidInput, "recall query must not be empty")
	}
	applyDefaults(&opts)

	if e.lifecycle != nil {
		if _, err := e.lifecycle.MaybeDecay(time.Now().UTC()); err != nil {
			log.Warn("auto-decay gate failed, proceeding with recall anyway", "error", err)
		}
	}

	bm25, ftsErr := e.keywordCandidates(opts.Query, opts.RerankCandidates)
	mode := ModeHybrid
	if ftsErr != nil {
		log.Warn("fts5 query failed, falling back to substring match", "error", ftsErr)
		var err error
		bm25, err = e.substringCandidates(opts.Query, opts.RerankCandidates)
		if err != nil {
			return nil, "", icmerr.Wrap(icmerr.StorageFailure, "keyword fallback search", err)
		}
		mode = ModeKeywordFallback
	}

	var vector map[string]float64
	if e.embedder != nil && mode != ModeKeywordFallback {
		qvec, err := e.embedder.Embed(ctx, opts.Query)
		if err != nil {
			log.Warn("embedder unavailable, degrading to fts-only recall", "error", err)
			mode = ModeFTSOnly
		} else {
			vector, err = e.vectorCandidates(ctx, qvec, opts.RerankCandidates)
			if err != nil {
				return nil, "", icmerr.Wrap(icmerr.StorageFailure, "vector candidate scan", err)
			}
		}
	} else if mode != ModeKeywordFallback {
		mode = ModeFTSOnly
	}

	fused := fuse(bm25, vector, opts.Alpha, opts.Beta, mode)

	results := make([]Result, 0, len(fused))
	for id, score := range fused {
		m, err := e.store.GetMemory(id)
		if err != nil {
			continue // already-gone memory (e.g. concurrently pruned); skip rather than fail the whole recall
		}
		if opts.Topic != "" && m.Topic != opts.Topic {
			continue
		}
		if opts.MinWeight > 0 && m.Weight < opts.MinWeight {
			continue
		}
		if opts.Keyword != "" && !containsKeyword(m.Keywords, opts.Keyword) {
			continue
		}
		matchType := "keyword"
		if vector != nil {
			if _, inVector := vector[id]; inVector {
				if _, inBM25 := bm25[id]; inBM25 {
					matchType = "hybrid"
				} else {
					matchType = "vector"
				}
			}
		}
		results = append(results, Result{Memory: m, Score: score, MatchType: matchType})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Memory.Weight != results[j].Memory.Weight {
			return results[i].Memory.Weight > results[j].Memory.Weight
		}
		if !results[i].Memory.LastAccessed.Equal(results[j].Memory.LastAccessed) {
			return results[i].Memory.LastAccessed.After(results[j].Memory.LastAccessed)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	if opts.Reinforce {
		for _, r := range results {
			e.reinforce(r.Memory, opts.ReinforcementCoef)
		}
	}

	return results, mode, nil
}

// Forget deletes a memory and removes it from the vector index, keeping a
// remote backend (e.g. Qdrant) in sync with the Store. The index delete is
// best-effort: a failure there doesn't roll back the Store delete.
func (e *Engine) Forget(ctx context.Context, id string) error {
	if err := e.store.DeleteMemory(id); err != nil {
		return err
	}
	if e.vectorIndex != nil {
		if err := e.vectorIndex.Delete(ctx, id); err != nil {
			log.Warn("forget: vector index delete failed", "memory_id", id, "error", err)
		}
	}
	return nil
}

func containsKeyword(keywords []string, want string) bool {
	for _, k := range keywords {
		if k == want {
			return true
		}
	}
	return false
}

func applyDefaults(o *Options) {
	if o.Alpha == 0 && o.Beta == 0 {
		o.Alpha, o.Beta = defaultAlpha, defaultBeta
	}
	if o.RerankCandidates == 0 {
		o.RerankCandidates = defaultRerankCandidates
	}
	if o.Limit == 0 {
		o.Limit = defaultLimit
	}
	if o.ReinforcementCoef == 0 {
		o.ReinforcementCoef = defaultReinforcement
	}
}

// reinforce bumps a recalled memory's weight toward WInit and its access
// bookkeeping, per spec.md's "recall reinforces" rule: w <- min(W_INIT,
// w + (1-w)*coef). Failures are logged, not propagated — a reinforcement
// miss should never fail the recall that triggered it.
func (e *Engine) reinforce(m *store.Memory, coef float64) {
	newWeight := m.Weight + (store.WInit-m.Weight)*coef
	if newWeight > store.WInit {
		newWeight = store.WInit
	}
	now := time.Now().UTC()
	count := m.AccessCount + 1
	err := e.store.UpdateMemory(m.ID, &store.MemoryUpdate{
		Weight:       &newWeight,
		LastAccessed: &now,
		AccessCount:  &count,
	})
	if err != nil {
		log.Warn("reinforcement update failed", "memory_id", m.ID, "error", err)
		return
	}
	m.Weight = newWeight
	m.LastAccessed = now
	m.AccessCount = count
}

// keywordCandidates runs an FTS5 MATCH query and returns a bm25-derived
// score per memory id (higher is better — SQLite's bm25() is negated, so
// candidates are inverted and min-max normalized by fuse).
func (e *Engine) keywordCandidates(query string, limit int) (map[string]float64, error) {
	rows, err := e.store.DB().Query(`
		SELECT m.id, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.id = memories_fts.id
		WHERE memories_fts MATCH ?
		ORDER BY rank ASC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		out[id] = -rank // bm25() returns lower-is-better; negate so higher is better
	}
	return out, rows.Err()
}

// substringCandidates is the keyword-fallback degradation mode used when
// FTS5 itself is unavailable (e.g. a sqlite3 build without the FTS5
// extension) — grounded on the teacher's search.Engine keyword fallback
// posture of never hard-failing a search when AI/FTS is missing.
func (e *Engine) substringCandidates(query string, limit int) (map[string]float64, error) {
	rows, err := e.store.DB().Query(`
		SELECT id FROM memories
		WHERE summary LIKE '%' || ? || '%' OR topic LIKE '%' || ? || '%'
		ORDER BY last_accessed DESC
		LIMIT ?
	`, query, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = 1.0 // no graded score in substring mode; fuse treats these as ties, broken by the weight/recency sort key
	}
	return out, rows.Err()
}

// vectorCandidates delegates to the configured vecstore.VectorIndex — the
// in-process brute-force Store scan by default, or a remote backend (e.g.
// Qdrant) when SetVectorIndex has wired one in.
func (e *Engine) vectorCandidates(ctx context.Context, qvec []float32, limit int) (map[string]float64, error) {
	matches, err := e.vectorIndex.Search(ctx, qvec, limit)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(matches))
	for _, m := range matches {
		out[m.ID] = m.Score
	}
	return out, nil
}

// fuse min-max normalizes each candidate map independently, then blends
// them s = alpha*s_bm25 + beta*s_cos per spec.md §4.2. A memory present in
// only one map is scored using only that map's (normalized) contribution.
func fuse(bm25, vector map[string]float64, alpha, beta float64, mode Mode) map[string]float64 {
	bm25Norm := minMaxNormalize(bm25)
	vectorNorm := minMaxNormalize(vector)

	out := map[string]float64{}
	for id, s := range bm25Norm {
		out[id] = alpha * s
	}
	for id, s := range vectorNorm {
		out[id] += beta * s
	}
	if mode == ModeKeywordFallback {
		// no graded bm25 signal available; preserve candidate membership as-is
		for id := range bm25 {
			if _, ok := out[id]; !ok {
				out[id] = 0
			}
		}
	}
	return out
}

func minMaxNormalize(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return m
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range m {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make(map[string]float64, len(m))
	if max == min {
		// A single candidate has nothing to be normalized against, so it's
		// the best result by definition. Multiple candidates with identical
		// scores are tied, not all maximal — spec.md §4.2 calls for 0.5 so
		// fusion doesn't treat a tie as a hit on every signal.
		fill := 1.0
		if len(m) > 1 {
			fill = 0.5
		}
		for id := range m {
			out[id] = fill
		}
		return out
	}
	for id, v := range m {
		out[id] = (v - min) / (max - min)
	}
	return out
}

