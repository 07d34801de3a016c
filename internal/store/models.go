// Package store owns ICM's SQLite persistence: the episodic memory table,
// the semantic memoir/concept/relation graph, and the schema that backs
// both. Everything above this package talks to data through the Go types
// defined here, never through raw rows.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Importance is a closed four-level enumeration. Critical memories are
// exempt from decay (see internal/lifecycle) and from prune.
type Importance string

const (
	Critical Importance = "critical"
	High     Importance = "high"
	Medium   Importance = "medium"
	Low      Importance = "low"
)

// Valid reports whether i is one of the four declared levels.
func (i Importance) Valid() bool {
	switch i {
	case Critical, High, Medium, Low:
		return true
	}
	return false
}

// DecayRateMultiplier returns k(importance) from the decay formula
// w <- w * r^(days * k). Critical is 0 (frozen).
func (i Importance) DecayRateMultiplier() float64 {
	switch i {
	case Critical:
		return 0
	case High:
		return 0.5
	case Medium:
		return 1.0
	case Low:
		return 2.0
	default:
		return 1.0
	}
}

// Source tags where a memory originated.
type Source string

const (
	SourceAgentSession Source = "agent-session"
	SourceConversation Source = "conversation"
	SourceManual       Source = "manual"
)

func (s Source) Valid() bool {
	switch s {
	case SourceAgentSession, SourceConversation, SourceManual:
		return true
	}
	return false
}

// RelationKind enumerates the nine directed edge kinds a Relation may carry.
// Larger than the teacher's seven memory_relationships kinds because the
// concept graph distinguishes structural (part_of, instance_of) from
// epistemic (contradicts, refines, superseded_by) edges.
type RelationKind string

const (
	RelationPartOf        RelationKind = "part_of"
	RelationDependsOn     RelationKind = "depends_on"
	RelationRelatedTo     RelationKind = "related_to"
	RelationContradicts   RelationKind = "contradicts"
	RelationRefines       RelationKind = "refines"
	RelationAlternativeTo RelationKind = "alternative_to"
	RelationCausedBy      RelationKind = "caused_by"
	RelationInstanceOf    RelationKind = "instance_of"
	RelationSupersededBy  RelationKind = "superseded_by"
)

// RelationKinds lists all valid kinds in a stable order, used for
// validation. BFS ordering does not use it: RelationsFrom sorts by the kind
// string, then the target concept's name.
var RelationKinds = []RelationKind{
	RelationPartOf, RelationDependsOn, RelationRelatedTo, RelationContradicts,
	RelationRefines, RelationAlternativeTo, RelationCausedBy, RelationInstanceOf,
	RelationSupersededBy,
}

func (k RelationKind) Valid() bool {
	for _, v := range RelationKinds {
		if v == k {
			return true
		}
	}
	return false
}

// WInit is the weight every new memory is born with, and the ceiling
// reinforcement asymptotically approaches.
const WInit = 1.0

// Memory is a single episodic observation: something an agent saw, did, or
// was told, with a decaying relevance weight and hybrid-searchable content.
type Memory struct {
	ID            string
	CreatedAt     time.Time
	LastAccessed  time.Time
	LastDecayedAt time.Time
	AccessCount   int64
	Weight        float64
	Topic         string
	Summary       string
	RawExcerpt    string
	Keywords      []string
	Embedding     []float32
	Importance    Importance
	Source        Source
	RelatedIDs    []string
}

// NewMemoryID returns a ULID string, sortable lexicographically by
// creation instant, per the requirement that memories be iterable in
// creation order without a secondary sort.
func NewMemoryID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// KeywordsJSON marshals Keywords for storage in a TEXT column.
func (m *Memory) KeywordsJSON() (string, error) {
	if len(m.Keywords) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(m.Keywords)
	return string(b), err
}

// RelatedIDsJSON marshals RelatedIDs for storage in a TEXT column.
func (m *Memory) RelatedIDsJSON() (string, error) {
	if len(m.RelatedIDs) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(m.RelatedIDs)
	return string(b), err
}

// Memoir groups a set of Concepts and Relations under a named container —
// the Go-native name for spec.md's "Memory container", chosen to avoid
// collision with Memory.
type Memoir struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewMemoirID returns a random UUID. Memoirs are not iterated by creation
// order the way memories are, so sortability is not a requirement here.
func NewMemoirID() string {
	return uuid.New().String()
}

// Concept is a node in a memoir's semantic graph, defined by free text
// (Summary, i.e. its "definition") and optional classification Labels.
type Concept struct {
	ID        string
	MemoirID  string
	Name      string
	Summary   string
	Labels    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConceptID returns a ULID string for the same creation-order-
// sortability reason as NewMemoryID.
func NewConceptID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// LabelsJSON marshals Labels for storage in a TEXT column.
func (c *Concept) LabelsJSON() (string, error) {
	if len(c.Labels) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(c.Labels)
	return string(b), err
}

// HasLabel reports whether l is among c.Labels.
func (c *Concept) HasLabel(l string) bool {
	for _, v := range c.Labels {
		if v == l {
			return true
		}
	}
	return false
}

// Relation is a directed, typed edge between two Concepts within the same
// Memoir.
type Relation struct {
	ID         string
	MemoirID   string
	FromID     string
	ToID       string
	Kind       RelationKind
	Confidence float64
	CreatedAt  time.Time
}

// NewRelationID returns a ULID string.
func NewRelationID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
