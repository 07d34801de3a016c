package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/icm-memory/icm/internal/icmerr"
)

// PutMemory inserts a new Memory, generating a ULID id and stamping
// CreatedAt/LastAccessed/Weight if unset. Mirrors the teacher's CreateMemory
// (internal/database/operations.go) — default-filling then a single
// parameterized INSERT — generalized to ICM's columns and a ULID id
// instead of uuid.New().
func (s *Store) PutMemory(m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Summary == "" {
		return icmerr.New(icmerr.InvalidInput, "memory summary must not be empty")
	}
	if m.Topic == "" {
		return icmerr.New(icmerr.InvalidInput, "memory topic must not be empty")
	}
	if !m.Importance.Valid() {
		m.Importance = Medium
	}
	if !m.Source.Valid() {
		m.Source = SourceManual
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.LastAccessed.IsZero() {
		m.LastAccessed = m.CreatedAt
	}
	if m.LastDecayedAt.IsZero() {
		m.LastDecayedAt = m.CreatedAt
	}
	if m.Weight == 0 {
		m.Weight = WInit
	}
	if m.ID == "" {
		m.ID = NewMemoryID(m.CreatedAt)
	}
	if len(m.Embedding) > 0 {
		if dim, err := s.EmbeddingDimension(); err == nil && len(m.Embedding) != dim {
			return icmerr.Newf(icmerr.InvalidInput,
				"embedding has dimension %d, store requires %d", len(m.Embedding), dim)
		}
	}

	keywordsJSON, err := m.KeywordsJSON()
	if err != nil {
		return icmerr.Wrap(icmerr.InvalidInput, "marshal keywords", err)
	}
	relatedJSON, err := m.RelatedIDsJSON()
	if err != nil {
		return icmerr.Wrap(icmerr.InvalidInput, "marshal related ids", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO memories (
			id, created_at, last_accessed, last_decayed_at, access_count, weight, topic,
			summary, raw_excerpt, keywords, embedding, importance, source, related_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.CreatedAt, m.LastAccessed, m.LastDecayedAt, m.AccessCount, m.Weight, m.Topic,
		m.Summary, nullString(m.RawExcerpt), keywordsJSON, encodeEmbedding(m.Embedding),
		string(m.Importance), string(m.Source), relatedJSON,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return icmerr.Newf(icmerr.Conflict, "memory %q already exists", m.ID)
		}
		return icmerr.Wrap(icmerr.StorageFailure, "insert memory", err)
	}
	return nil
}

// GetMemory retrieves a memory by id, returning icmerr.NotFound if absent.
func (s *Store) GetMemory(id string) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanMemoryByID(id)
}

func (s *Store) scanMemoryByID(id string) (*Memory, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, last_accessed, last_decayed_at, access_count, weight, topic,
		       summary, raw_excerpt, keywords, embedding, importance, source, related_ids
		FROM memories WHERE id = ?
	`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, icmerr.Newf(icmerr.NotFound, "memory %q not found", id)
	}
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "get memory", err)
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var rawExcerpt sql.NullString
	var keywordsJSON, relatedJSON, importance, source string
	var embedding []byte

	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.LastAccessed, &m.LastDecayedAt, &m.AccessCount, &m.Weight, &m.Topic,
		&m.Summary, &rawExcerpt, &keywordsJSON, &embedding, &importance, &source, &relatedJSON,
	)
	if err != nil {
		return nil, err
	}

	m.RawExcerpt = rawExcerpt.String
	m.Importance = Importance(importance)
	m.Source = Source(source)
	m.Embedding = decodeEmbedding(embedding)
	_ = json.Unmarshal([]byte(keywordsJSON), &m.Keywords)
	_ = json.Unmarshal([]byte(relatedJSON), &m.RelatedIDs)
	return &m, nil
}

// MemoryUpdate carries partial-update fields; nil means "leave unchanged".
// Mirrors the teacher's MemoryUpdate dynamic-SET-clause convention
// (internal/database/operations.go).
type MemoryUpdate struct {
	Weight        *float64
	LastAccessed  *time.Time
	LastDecayedAt *time.Time
	AccessCount   *int64
	Summary       *string
	RawExcerpt    *string
	Keywords      *[]string
	Embedding     *[]float32
	Importance    *Importance
	RelatedIDs    *[]string
}

// UpdateMemory applies a partial update, returning icmerr.NotFound if the
// row does not exist.
func (s *Store) UpdateMemory(id string, u *MemoryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{}
	args := []any{}

	if u.Weight != nil {
		sets = append(sets, "weight = ?")
		args = append(args, *u.Weight)
	}
	if u.LastAccessed != nil {
		sets = append(sets, "last_accessed = ?")
		args = append(args, *u.LastAccessed)
	}
	if u.LastDecayedAt != nil {
		sets = append(sets, "last_decayed_at = ?")
		args = append(args, *u.LastDecayedAt)
	}
	if u.AccessCount != nil {
		sets = append(sets, "access_count = ?")
		args = append(args, *u.AccessCount)
	}
	if u.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *u.Summary)
	}
	if u.RawExcerpt != nil {
		sets = append(sets, "raw_excerpt = ?")
		args = append(args, *u.RawExcerpt)
	}
	if u.Keywords != nil {
		b, err := json.Marshal(*u.Keywords)
		if err != nil {
			return icmerr.Wrap(icmerr.InvalidInput, "marshal keywords", err)
		}
		sets = append(sets, "keywords = ?")
		args = append(args, string(b))
	}
	if u.Embedding != nil {
		if dim, err := s.EmbeddingDimension(); err == nil && len(*u.Embedding) != dim {
			return icmerr.Newf(icmerr.InvalidInput,
				"embedding has dimension %d, store requires %d", len(*u.Embedding), dim)
		}
		sets = append(sets, "embedding = ?")
		args = append(args, encodeEmbedding(*u.Embedding))
	}
	if u.Importance != nil {
		if !u.Importance.Valid() {
			return icmerr.Newf(icmerr.InvalidInput, "invalid importance %q", *u.Importance)
		}
		sets = append(sets, "importance = ?")
		args = append(args, string(*u.Importance))
	}
	if u.RelatedIDs != nil {
		b, err := json.Marshal(*u.RelatedIDs)
		if err != nil {
			return icmerr.Wrap(icmerr.InvalidInput, "marshal related ids", err)
		}
		sets = append(sets, "related_ids = ?")
		args = append(args, string(b))
	}

	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE memories SET " + joinSets(sets) + " WHERE id = ?"
	args = append(args, id)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "update memory", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "read rows affected", err)
	}
	if n == 0 {
		return icmerr.Newf(icmerr.NotFound, "memory %q not found", id)
	}
	return nil
}

// DeleteMemory removes a memory by id, returning icmerr.NotFound if absent.
func (s *Store) DeleteMemory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "delete memory", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "read rows affected", err)
	}
	if n == 0 {
		return icmerr.Newf(icmerr.NotFound, "memory %q not found", id)
	}
	return nil
}

// IterateByTopic returns every memory with the given topic, newest first,
// with id as a stable tiebreaker for memories created in the same instant.
func (s *Store) IterateByTopic(topic string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, created_at, last_accessed, last_decayed_at, access_count, weight, topic,
		       summary, raw_excerpt, keywords, embedding, importance, source, related_ids
		FROM memories WHERE topic = ? ORDER BY created_at DESC, id
	`, topic)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "iterate by topic", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan memory", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMemories returns every memory, optionally restricted to one topic,
// newest first by created_at with id as the tie-break. Used by the CLI's `icm list` for a plain-text survey
// distinct from recall's scored results.
func (s *Store) ListMemories(topic string) ([]*Memory, error) {
	if topic != "" {
		return s.IterateByTopic(topic)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, created_at, last_accessed, last_decayed_at, access_count, weight, topic,
		       summary, raw_excerpt, keywords, embedding, importance, source, related_ids
		FROM memories ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "list memories", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan memory", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTopics returns every distinct topic currently stored, alphabetically.
func (s *Store) ListTopics() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT topic FROM memories ORDER BY topic ASC`)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "list topics", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan topic", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TopicCount pairs a topic with how many memories currently carry it.
type TopicCount struct {
	Topic string
	Count int
}

// ListTopicsWithCounts returns every distinct topic and its memory count,
// for icm_memory_list_topics.
func (s *Store) ListTopicsWithCounts() ([]TopicCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT topic, COUNT(*) FROM memories GROUP BY topic ORDER BY topic ASC`)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "list topic counts", err)
	}
	defer rows.Close()

	var out []TopicCount
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan topic count", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Stats summarizes the memory table for icm_memory_stats.
type Stats struct {
	TotalMemories int
	TotalTopics   int
	AvgWeight     float64
	Oldest        time.Time
	Newest        time.Time
}

// Stats computes corpus-wide aggregates in a single pass.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	var avgWeight sql.NullFloat64
	var oldest, newest sql.NullTime
	err := s.db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT topic), AVG(weight), MIN(created_at), MAX(created_at)
		FROM memories
	`).Scan(&st.TotalMemories, &st.TotalTopics, &avgWeight, &oldest, &newest)
	if err != nil {
		return Stats{}, icmerr.Wrap(icmerr.StorageFailure, "compute stats", err)
	}
	st.AvgWeight = avgWeight.Float64
	st.Oldest = oldest.Time
	st.Newest = newest.Time
	return st, nil
}

// ListMemoriesWithoutEmbedding returns the ids of every memory with no
// stored embedding, for icm_memory_embed_all's backfill.
func (s *Store) ListMemoriesWithoutEmbedding() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id FROM memories WHERE embedding IS NULL ORDER BY id ASC`)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "list unembedded memories", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan memory id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}
