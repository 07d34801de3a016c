// Package graph implements ICM's semantic graph: memoirs grouping concepts
// connected by typed, directed relations, plus bounded neighborhood
// traversal.
package graph

import (
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/logging"
	"github.com/icm-memory/icm/internal/store"
)

var log = logging.GetLogger("graph")

// Service wraps a Store with the graph-level operations (link/inspect/
// neighborhood) built on top of its concept/relation CRUD. Its method
// shapes — Options structs with default-fill and clamp behavior — are
// grounded on internal/relationships/service_test.go's API contract in the
// retrieved corpus (the teacher ships tests for this service without the
// implementation itself).
type Service struct {
	store *store.Store
}

// NewService constructs a graph Service.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// LinkOptions configures Service.Link.
type LinkOptions struct {
	MemoirID   string
	FromName   string
	ToName     string
	Kind       store.RelationKind
	Confidence float64
}

// Link creates (or looks up) the two named concepts under a memoir and
// connects them with a typed relation. Confidence <= 0 defaults to 0.5;
// confidence > 1 caps at 1.0, mirroring the teacher's strength-clamping
// convention for relationship strength.
func (s *Service) Link(opts LinkOptions) (*store.Relation, error) {
	if opts.MemoirID == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "memoir id must not be empty")
	}
	if !opts.Kind.Valid() {
		return nil, icmerr.Newf(icmerr.InvalidInput, "invalid relation kind %q", opts.Kind)
	}

	from, err := s.upsertConcept(opts.MemoirID, opts.FromName)
	if err != nil {
		return nil, err
	}
	to, err := s.upsertConcept(opts.MemoirID, opts.ToName)
	if err != nil {
		return nil, err
	}

	rel := &store.Relation{
		MemoirID:   opts.MemoirID,
		FromID:     from.ID,
		ToID:       to.ID,
		Kind:       opts.Kind,
		Confidence: opts.Confidence,
	}
	if err := s.store.PutRelation(rel); err != nil {
		return nil, err
	}
	return rel, nil
}

func (s *Service) upsertConcept(memoirID, name string) (*store.Concept, error) {
	if name == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "concept name must not be empty")
	}
	existing, err := s.findConceptByName(memoirID, name)
	if err == nil {
		return existing, nil
	}
	if !icmerr.Is(err, icmerr.NotFound) {
		return nil, err
	}
	c := &store.Concept{MemoirID: memoirID, Name: name}
	if err := s.store.PutConcept(c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindConceptByName resolves a concept by its memoir-scoped name, the
// lookup the tool and CLI surfaces need before calling Neighborhood or
// FindRelated with a concept id.
func (s *Service) FindConceptByName(memoirID, name string) (*store.Concept, error) {
	return s.findConceptByName(memoirID, name)
}

func (s *Service) findConceptByName(memoirID, name string) (*store.Concept, error) {
	concepts, err := s.store.ListConcepts(memoirID)
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, icmerr.Newf(icmerr.NotFound, "concept %q not found in memoir %q", name, memoirID)
}

// FindRelatedOptions configures Service.FindRelated.
type FindRelatedOptions struct {
	ConceptID string
	Kind      store.RelationKind // empty means any kind
}

// FindRelated returns every outgoing relation from a concept, optionally
// filtered by kind.
func (s *Service) FindRelated(opts FindRelatedOptions) ([]*store.Relation, error) {
	if opts.ConceptID == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "concept id must not be empty")
	}
	if _, err := s.store.GetConcept(opts.ConceptID); err != nil {
		return nil, err
	}

	all, err := s.store.RelationsFrom(opts.ConceptID)
	if err != nil {
		return nil, err
	}
	if opts.Kind == "" {
		return all, nil
	}

	var out []*store.Relation
	for _, r := range all {
		if r.Kind == opts.Kind {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateMemoir creates a new named memoir, returning icmerr.Conflict if the
// name is already taken — the explicit counterpart to EnsureMemoir, for the
// `memoir create` surface where re-creating an existing memoir is a user
// error rather than a no-op.
func (s *Service) CreateMemoir(name, description string) (*store.Memoir, error) {
	m := &store.Memoir{Name: name, Description: description}
	if err := s.store.PutMemoir(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMemoirs returns every memoir, ordered by name.
func (s *Service) ListMemoirs() ([]*store.Memoir, error) {
	return s.store.ListMemoirs()
}

// ShowMemoir returns a memoir and every concept it contains.
func (s *Service) ShowMemoir(name string) (*store.Memoir, []*store.Concept, error) {
	m, err := s.store.GetMemoirByName(name)
	if err != nil {
		return nil, nil, err
	}
	concepts, err := s.store.ListConcepts(m.ID)
	if err != nil {
		return nil, nil, err
	}
	return m, concepts, nil
}

// AddConceptOptions configures Service.AddConcept.
type AddConceptOptions struct {
	MemoirID   string
	Name       string
	Definition string
	Labels     []string
}

// AddConcept explicitly creates a new concept, returning icmerr.Conflict if
// a concept by that name already exists in the memoir — the counterpart to
// Link's implicit upsertConcept, for the `memoir add-concept` surface where
// re-adding an existing concept is a user error.
func (s *Service) AddConcept(opts AddConceptOptions) (*store.Concept, error) {
	if opts.MemoirID == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "memoir id must not be empty")
	}
	c := &store.Concept{
		MemoirID: opts.MemoirID,
		Name:     opts.Name,
		Summary:  opts.Definition,
		Labels:   opts.Labels,
	}
	if err := s.store.PutConcept(c); err != nil {
		return nil, err
	}
	return c, nil
}

// RefineConcept overwrites a concept's definition (Summary), for the
// `memoir refine` surface.
func (s *Service) RefineConcept(memoirID, name, definition string) (*store.Concept, error) {
	c, err := s.findConceptByName(memoirID, name)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateConceptDefinition(c.ID, definition); err != nil {
		return nil, err
	}
	c.Summary = definition
	return c, nil
}

// SearchConcepts searches one memoir's concepts by substring query and/or
// label.
func (s *Service) SearchConcepts(memoirID, query, label string) ([]*store.Concept, error) {
	if memoirID == "" {
		return nil, icmerr.New(icmerr.InvalidInput, "memoir id must not be empty")
	}
	return s.store.SearchConcepts(memoirID, query, label)
}

// SearchConceptsAll searches every memoir's concepts by substring query.
func (s *Service) SearchConceptsAll(query string) ([]*store.Concept, error) {
	return s.store.SearchConceptsAll(query)
}

// EnsureMemoir looks a memoir up by name, creating it if absent: the
// "get-or-create" counterpart to CreateMemoir, which the `memoir create`
// surface uses instead.
func (s *Service) EnsureMemoir(name, description string) (*store.Memoir, error) {
	existing, err := s.store.GetMemoirByName(name)
	if err == nil {
		return existing, nil
	}
	if !icmerr.Is(err, icmerr.NotFound) {
		return nil, err
	}
	m := &store.Memoir{Name: name, Description: description}
	if err := s.store.PutMemoir(m); err != nil {
		return nil, err
	}
	return m, nil
}
