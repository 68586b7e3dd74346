package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/ports"
)

// ViolationKind identifies which graph invariant a Violation breaks.
type ViolationKind string

const (
	// ViolationSpouseAsymmetric: A.SpouseID = B but B.SpouseID != A.
	ViolationSpouseAsymmetric ViolationKind = "spouse_asymmetric"
	// ViolationParentWithoutEdge: a father/mother pointer with no matching parent edge.
	ViolationParentWithoutEdge ViolationKind = "parent_without_edge"
	// ViolationMissingReciprocal: an edge whose type implies a reciprocal that is absent.
	ViolationMissingReciprocal ViolationKind = "missing_reciprocal"
	// ViolationDanglingReference: a shortcut pointer to a Person that does not exist.
	ViolationDanglingReference ViolationKind = "dangling_reference"
)

// Violation is a single inconsistency found in the graph.
type Violation struct {
	Kind           ViolationKind `json:"kind"`
	PersonID       string        `json:"person_id,omitempty"`
	RelationshipID string        `json:"relationship_id,omitempty"`
	Message        string        `json:"message"`
}

// CheckReport is the result of a consistency scan.
type CheckReport struct {
	Persons       int         `json:"persons"`
	Relationships int         `json:"relationships"`
	Violations    []Violation `json:"violations"`
}

// OK reports whether no violations were found.
func (r *CheckReport) OK() bool {
	return len(r.Violations) == 0
}

// CheckService scans the graph for drift between the Person shortcut fields
// and the relationship edges.
type CheckService struct {
	store ports.GraphStore
}

// NewCheckService creates a new CheckService.
func NewCheckService(store ports.GraphStore) *CheckService {
	return &CheckService{store: store}
}

// Check reads every Person and edge in one transaction and reports violations.
func (s *CheckService) Check(ctx context.Context) (*CheckReport, error) {
	var (
		persons []*entities.Person
		rels    []entities.Relationship
	)
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		var err error
		if persons, err = st.Persons.List(ctx, 0, 0); err != nil {
			return fmt.Errorf("listing persons: %w", err)
		}
		if rels, err = st.Relationships.List(ctx); err != nil {
			return fmt.Errorf("listing relationships: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g := newGraphIndex(persons, rels)
	report := &CheckReport{
		Persons:       len(persons),
		Relationships: len(rels),
		Violations:    make([]Violation, 0),
	}
	for _, p := range persons {
		report.Violations = append(report.Violations, g.checkPerson(p)...)
	}
	for i := range rels {
		if v, ok := g.checkReciprocal(&rels[i]); ok {
			report.Violations = append(report.Violations, v)
		}
	}

	sort.SliceStable(report.Violations, func(i, j int) bool {
		return report.Violations[i].Kind < report.Violations[j].Kind
	})
	return report, nil
}

// graphIndex is an in-memory view of one consistent snapshot.
type graphIndex struct {
	persons map[string]*entities.Person
	// edges keyed by "from\x00to"
	edges map[string][]*entities.Relationship
}

func newGraphIndex(persons []*entities.Person, rels []entities.Relationship) *graphIndex {
	g := &graphIndex{
		persons: make(map[string]*entities.Person, len(persons)),
		edges:   make(map[string][]*entities.Relationship, len(rels)),
	}
	for _, p := range persons {
		g.persons[p.ID] = p
	}
	for i := range rels {
		key := edgeKey(rels[i].FromID, rels[i].ToID)
		g.edges[key] = append(g.edges[key], &rels[i])
	}
	return g
}

func edgeKey(from, to string) string {
	return from + "\x00" + to
}

func (g *graphIndex) checkPerson(p *entities.Person) []Violation {
	var out []Violation

	if p.SpouseID != "" {
		spouse, ok := g.persons[p.SpouseID]
		switch {
		case !ok:
			out = append(out, Violation{
				Kind:     ViolationDanglingReference,
				PersonID: p.ID,
				Message:  fmt.Sprintf("spouse_id points to missing person %s", p.SpouseID),
			})
		case spouse.SpouseID != p.ID:
			out = append(out, Violation{
				Kind:     ViolationSpouseAsymmetric,
				PersonID: p.ID,
				Message:  fmt.Sprintf("spouse %s does not point back (points to %q)", spouse.ID, spouse.SpouseID),
			})
		}
	}

	parents := []struct {
		id      string
		field   string
		relType string
	}{
		{id: p.FatherID, field: "father_id", relType: entities.TypeFather},
		{id: p.MotherID, field: "mother_id", relType: entities.TypeMother},
	}
	for _, parent := range parents {
		if parent.id == "" {
			continue
		}
		if _, ok := g.persons[parent.id]; !ok {
			out = append(out, Violation{
				Kind:     ViolationDanglingReference,
				PersonID: p.ID,
				Message:  fmt.Sprintf("%s points to missing person %s", parent.field, parent.id),
			})
			continue
		}
		if !g.hasParentEdge(parent.id, p.ID, parent.relType) {
			out = append(out, Violation{
				Kind:     ViolationParentWithoutEdge,
				PersonID: p.ID,
				Message:  fmt.Sprintf("%s = %s has no %s edge", parent.field, parent.id, parent.relType),
			})
		}
	}
	return out
}

// hasParentEdge reports whether parent -> child is recorded as relType, or as
// "child" whose classification yields relType for the parent's gender.
func (g *graphIndex) hasParentEdge(parentID, childID, relType string) bool {
	parent := g.persons[parentID]
	for _, e := range g.edges[edgeKey(parentID, childID)] {
		if entities.SameType(e.Type, relType) {
			return true
		}
		if e.Kind() == entities.KindChild {
			if spec := Classify(e.Type, genderOf(parent)); spec != nil && entities.SameType(spec.ReciprocalType, relType) {
				return true
			}
		}
	}
	return false
}

func (g *graphIndex) checkReciprocal(rel *entities.Relationship) (Violation, bool) {
	if rel.ReciprocalSuppressed {
		return Violation{}, false
	}
	from := g.persons[rel.FromID]
	if Classify(rel.Type, genderOf(from)) == nil {
		return Violation{}, false
	}
	to := g.persons[rel.ToID]
	for _, back := range g.edges[edgeKey(rel.ToID, rel.FromID)] {
		if isCounterpart(rel, back, genderOf(from), genderOf(to)) {
			return Violation{}, false
		}
	}
	return Violation{
		Kind:           ViolationMissingReciprocal,
		RelationshipID: rel.ID,
		PersonID:       rel.FromID,
		Message:        fmt.Sprintf("%s -[%s]-> %s has no reciprocal edge", rel.FromID, rel.Type, rel.ToID),
	}, true
}
