package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/icm-memory/icm/internal/icmerr"
)

// PutMemoir creates a new Memoir, or returns icmerr.Conflict if the name is
// already taken — memoirs are looked up by name throughout the graph
// surface, so names must be unique.
func (s *Store) PutMemoir(m *Memoir) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Name == "" {
		return icmerr.New(icmerr.InvalidInput, "memoir name must not be empty")
	}
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = NewMemoirID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT INTO memoirs (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, nullString(m.Description), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return icmerr.Newf(icmerr.Conflict, "memoir %q already exists", m.Name)
		}
		return icmerr.Wrap(icmerr.StorageFailure, "insert memoir", err)
	}
	return nil
}

// GetMemoir retrieves a memoir by id.
func (s *Store) GetMemoir(id string) (*Memoir, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Memoir
	var description sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, description, created_at, updated_at FROM memoirs WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &description, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, icmerr.Newf(icmerr.NotFound, "memoir %q not found", id)
	}
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "get memoir", err)
	}
	m.Description = description.String
	return &m, nil
}

// ListMemoirs returns every memoir, ordered by name.
func (s *Store) ListMemoirs() ([]*Memoir, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, description, created_at, updated_at FROM memoirs ORDER BY name ASC`)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "list memoirs", err)
	}
	defer rows.Close()

	var out []*Memoir
	for rows.Next() {
		var m Memoir
		var description sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &description, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan memoir", err)
		}
		m.Description = description.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

// GetMemoirByName retrieves a memoir by its unique name.
func (s *Store) GetMemoirByName(name string) (*Memoir, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Memoir
	var description sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, description, created_at, updated_at FROM memoirs WHERE name = ?`, name,
	).Scan(&m.ID, &m.Name, &description, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, icmerr.Newf(icmerr.NotFound, "memoir %q not found", name)
	}
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "get memoir by name", err)
	}
	m.Description = description.String
	return &m, nil
}

// PutConcept creates a new Concept under a memoir, returning
// icmerr.DanglingReference if the memoir does not exist and icmerr.Conflict
// if (memoir_id, name) is already taken.
func (s *Store) PutConcept(c *Concept) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Name == "" {
		return icmerr.New(icmerr.InvalidInput, "concept name must not be empty")
	}
	if c.MemoirID == "" {
		return icmerr.New(icmerr.InvalidInput, "concept memoir id must not be empty")
	}

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = NewConceptID(now)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	labelsJSON, err := c.LabelsJSON()
	if err != nil {
		return icmerr.Wrap(icmerr.InvalidInput, "marshal concept labels", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO concepts (id, memoir_id, name, summary, labels, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MemoirID, c.Name, nullString(c.Summary), labelsJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return icmerr.Newf(icmerr.DanglingReference, "memoir %q does not exist", c.MemoirID)
		}
		if isUniqueConstraint(err) {
			return icmerr.Newf(icmerr.Conflict, "concept %q already exists in memoir %q", c.Name, c.MemoirID)
		}
		return icmerr.Wrap(icmerr.StorageFailure, "insert concept", err)
	}
	return nil
}

// UpdateConceptDefinition overwrites a concept's Summary ("definition") and
// bumps UpdatedAt, for the graph surface's "refine" operation.
func (s *Store) UpdateConceptDefinition(id, definition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE concepts SET summary = ?, updated_at = ? WHERE id = ?`,
		nullString(definition), time.Now().UTC(), id,
	)
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "update concept", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return icmerr.Wrap(icmerr.StorageFailure, "update concept rows affected", err)
	}
	if n == 0 {
		return icmerr.Newf(icmerr.NotFound, "concept %q not found", id)
	}
	return nil
}

// GetConcept retrieves a concept by id.
func (s *Store) GetConcept(id string) (*Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Concept
	var summary sql.NullString
	var labelsJSON string
	err := s.db.QueryRow(
		`SELECT id, memoir_id, name, summary, labels, created_at, updated_at FROM concepts WHERE id = ?`, id,
	).Scan(&c.ID, &c.MemoirID, &c.Name, &summary, &labelsJSON, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, icmerr.Newf(icmerr.NotFound, "concept %q not found", id)
	}
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "get concept", err)
	}
	c.Summary = summary.String
	json.Unmarshal([]byte(labelsJSON), &c.Labels)
	return &c, nil
}

// ListConcepts returns every concept in a memoir.
func (s *Store) ListConcepts(memoirID string) ([]*Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, memoir_id, name, summary, labels, created_at, updated_at FROM concepts WHERE memoir_id = ? ORDER BY name ASC`,
		memoirID,
	)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "list concepts", err)
	}
	defer rows.Close()

	var out []*Concept
	for rows.Next() {
		var c Concept
		var summary sql.NullString
		var labelsJSON string
		if err := rows.Scan(&c.ID, &c.MemoirID, &c.Name, &summary, &labelsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan concept", err)
		}
		c.Summary = summary.String
		json.Unmarshal([]byte(labelsJSON), &c.Labels)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// SearchConcepts performs a simple substring match over a memoir's concept
// names and summaries, optionally filtered to a specific label.
func (s *Store) SearchConcepts(memoirID, query, label string) ([]*Concept, error) {
	all, err := s.ListConcepts(memoirID)
	if err != nil {
		return nil, err
	}
	return filterConcepts(all, query, label), nil
}

// SearchConceptsAll performs the same substring match across every memoir.
func (s *Store) SearchConceptsAll(query string) ([]*Concept, error) {
	s.mu.RLock()
	rows, err := s.db.Query(`SELECT id, memoir_id, name, summary, labels, created_at, updated_at FROM concepts ORDER BY memoir_id ASC, name ASC`)
	s.mu.RUnlock()
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "search concepts", err)
	}
	defer rows.Close()

	var all []*Concept
	for rows.Next() {
		var c Concept
		var summary sql.NullString
		var labelsJSON string
		if err := rows.Scan(&c.ID, &c.MemoirID, &c.Name, &summary, &labelsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan concept", err)
		}
		c.Summary = summary.String
		json.Unmarshal([]byte(labelsJSON), &c.Labels)
		all = append(all, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filterConcepts(all, query, ""), nil
}

func filterConcepts(all []*Concept, query, label string) []*Concept {
	var out []*Concept
	q := strings.ToLower(query)
	for _, c := range all {
		if label != "" && !c.HasLabel(label) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(strings.ToLower(c.Summary), q) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PutRelation creates a directed edge between two concepts, returning
// icmerr.DanglingReference if either concept is missing and icmerr.Conflict
// on a duplicate (memoir_id, from_id, to_id, kind) tuple.
func (s *Store) PutRelation(r *Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.Kind.Valid() {
		return icmerr.Newf(icmerr.InvalidInput, "invalid relation kind %q", r.Kind)
	}
	if r.FromID == "" || r.ToID == "" {
		return icmerr.New(icmerr.InvalidInput, "relation requires from and to concept ids")
	}
	if r.FromID == r.ToID {
		return icmerr.New(icmerr.InvalidInput, "relation cannot be a self-loop")
	}

	if r.Confidence <= 0 {
		r.Confidence = 0.5
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}

	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = NewRelationID(now)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	_, err := s.db.Exec(
		`INSERT INTO relations (id, memoir_id, from_id, to_id, kind, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MemoirID, r.FromID, r.ToID, string(r.Kind), r.Confidence, r.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return icmerr.New(icmerr.DanglingReference, "source or target concept does not exist")
		}
		if isUniqueConstraint(err) {
			return icmerr.Newf(icmerr.Conflict, "relation %s -%s-> %s already exists", r.FromID, r.Kind, r.ToID)
		}
		return icmerr.Wrap(icmerr.StorageFailure, "insert relation", err)
	}
	return nil
}

// RelationsFrom returns every outgoing edge from a concept, sorted by
// (kind, target concept name) for the deterministic BFS traversal in
// internal/graph.
func (s *Store) RelationsFrom(conceptID string) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT r.id, r.memoir_id, r.from_id, r.to_id, r.kind, r.confidence, r.created_at
		 FROM relations r JOIN concepts c ON c.id = r.to_id
		 WHERE r.from_id = ? ORDER BY r.kind ASC, c.name ASC`,
		conceptID,
	)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.StorageFailure, "list relations from concept", err)
	}
	defer rows.Close()

	var out []*Relation
	for rows.Next() {
		var r Relation
		var kind string
		if err := rows.Scan(&r.ID, &r.MemoirID, &r.FromID, &r.ToID, &kind, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, icmerr.Wrap(icmerr.StorageFailure, "scan relation", err)
		}
		r.Kind = RelationKind(kind)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func isUniqueConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
