package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/ports"
)

// Operation names reported to the OperationRecorder.
const (
	OpCreateRelationship = "create_relationship"
	OpDeleteRelationship = "delete_relationship"
	OpUpdatePerson       = "update_person"
	OpDeletePerson       = "delete_person"
)

// reciprocalNotesPrefix marks edges the engine created on the caller's behalf.
const reciprocalNotesPrefix = "auto-created reciprocal of "

// OperationRecorder receives the outcome and latency of every graph mutation.
type OperationRecorder interface {
	ObserveOperation(op, outcome string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string, time.Duration) {}

// CreateRelationshipRequest describes a new edge.
type CreateRelationshipRequest struct {
	FromID string
	ToID   string
	Type   string
	Attrs  entities.RelationshipAttrs

	// NoReciprocal suppresses the reciprocal edge and the Person side effect.
	NoReciprocal bool
}

// GraphService is the consistency engine for the stakeholder relationship
// graph. Every mutation runs inside a single GraphStore transaction, so either
// all of its edge and Person writes become visible or none do.
type GraphService struct {
	store    ports.GraphStore
	logger   *zap.Logger
	recorder OperationRecorder
	now      func() time.Time
	newID    func() string

	cascadeReciprocalDelete bool
}

// GraphOption configures a GraphService.
type GraphOption func(*GraphService)

// WithLogger sets the logger used by the service.
func WithLogger(logger *zap.Logger) GraphOption {
	return func(s *GraphService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the sink for operation metrics.
func WithRecorder(recorder OperationRecorder) GraphOption {
	return func(s *GraphService) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithReciprocalCascade makes DeleteRelationship also remove the reciprocal edge.
// Off by default: deleting one direction leaves the other in place.
func WithReciprocalCascade(enabled bool) GraphOption {
	return func(s *GraphService) {
		s.cascadeReciprocalDelete = enabled
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) GraphOption {
	return func(s *GraphService) {
		s.now = now
	}
}

// NewGraphService creates a new GraphService.
func NewGraphService(store ports.GraphStore, opts ...GraphOption) *GraphService {
	s := &GraphService{
		store:    store,
		logger:   zap.NewNop(),
		recorder: noopRecorder{},
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRelationship adds the edge req.FromID -> req.ToID and, unless
// suppressed, the reciprocal edge and Person shortcut updates its type implies.
// A second call with the same triple fails with entities.ErrConflict.
func (s *GraphService) CreateRelationship(ctx context.Context, req CreateRelationshipRequest) (rel *entities.Relationship, err error) {
	defer s.observe(OpCreateRelationship, s.now(), &err)

	// Type is stored as supplied; matching goes through entities.NormalizeType.
	if strings.TrimSpace(req.Type) == "" {
		return nil, fmt.Errorf("relationship type is required: %w", entities.ErrInvalidOperation)
	}
	if req.FromID == req.ToID {
		return nil, fmt.Errorf("self-relationship on %s: %w", req.FromID, entities.ErrInvalidOperation)
	}

	err = s.store.RunInTx(ctx, func(st ports.Stores) error {
		from, err := mustGetPerson(ctx, st.Persons, req.FromID)
		if err != nil {
			return err
		}
		to, err := mustGetPerson(ctx, st.Persons, req.ToID)
		if err != nil {
			return err
		}

		existing, err := st.Relationships.Find(ctx, from.ID, to.ID, req.Type)
		if err != nil {
			return fmt.Errorf("checking existing relationship: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("relationship %s -[%s]-> %s already exists (id: %s): %w",
				from.ID, existing.Type, to.ID, existing.ID, entities.ErrConflict)
		}

		primary := &entities.Relationship{
			ID:                   s.newID(),
			FromID:               from.ID,
			ToID:                 to.ID,
			Type:                 req.Type,
			Description:          req.Attrs.Description,
			Strength:             req.Attrs.Strength,
			Since:                req.Attrs.Since,
			Notes:                req.Attrs.Notes,
			ReciprocalSuppressed: req.NoReciprocal,
			CreatedAt:            s.now(),
		}
		if err := st.Relationships.Insert(ctx, primary); err != nil {
			return fmt.Errorf("inserting relationship: %w", err)
		}

		details := map[string]any{"from_id": from.ID, "to_id": to.ID, "type": primary.Type}
		if !req.NoReciprocal {
			if spec := Classify(req.Type, from.Gender); spec != nil {
				if err := s.applySideEffect(ctx, st.Persons, spec.SideEffect, from, to); err != nil {
					return fmt.Errorf("applying %s: %w", spec.SideEffect, err)
				}
				reciprocalID, err := s.ensureReciprocal(ctx, st.Relationships, primary, spec)
				if err != nil {
					return fmt.Errorf("creating reciprocal %s: %w", spec.ReciprocalType, err)
				}
				details["reciprocal_id"] = reciprocalID
			}
		}

		if err := st.Audit.LogAction(ctx, entities.ActionRelationshipCreate, primary.ID, details); err != nil {
			return fmt.Errorf("logging action: %w", err)
		}

		rel = primary
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("relationship created",
		zap.String("id", rel.ID),
		zap.String("from_id", rel.FromID),
		zap.String("to_id", rel.ToID),
		zap.String("type", rel.Type),
	)
	return rel, nil
}

// applySideEffect updates the Person shortcut fields implied by a relationship.
func (s *GraphService) applySideEffect(ctx context.Context, persons ports.PersonStore, effect SideEffect, from, to *entities.Person) error {
	switch effect {
	case SideEffectSetSpouse:
		return s.linkSpouses(ctx, persons, from.ID, to.ID)
	case SideEffectSetFather:
		return persons.Update(ctx, to.ID, entities.PersonPatch{FatherID: entities.SetID(from.ID)})
	case SideEffectSetMother:
		return persons.Update(ctx, to.ID, entities.PersonPatch{MotherID: entities.SetID(from.ID)})
	case SideEffectNone:
		return nil
	default:
		return fmt.Errorf("unknown side effect %d", effect)
	}
}

// linkSpouses pairs a and b, first releasing anyone still claiming either of them.
func (s *GraphService) linkSpouses(ctx context.Context, persons ports.PersonStore, a, b string) error {
	if err := s.detachSpouseClaims(ctx, persons, a, b); err != nil {
		return err
	}
	if err := persons.Update(ctx, a, entities.PersonPatch{SpouseID: entities.SetID(b)}); err != nil {
		return fmt.Errorf("setting spouse of %s: %w", a, err)
	}
	if err := persons.Update(ctx, b, entities.PersonPatch{SpouseID: entities.SetID(a)}); err != nil {
		return fmt.Errorf("setting spouse of %s: %w", b, err)
	}
	return nil
}

// detachSpouseClaims clears SpouseID on every Person that points at one of ids.
func (s *GraphService) detachSpouseClaims(ctx context.Context, persons ports.PersonStore, ids ...string) error {
	for _, id := range ids {
		n, err := persons.UpdateWhere(ctx,
			entities.PersonFilter{Ref: entities.RefSpouse, Equals: id},
			entities.RefSpouse.Clear(),
		)
		if err != nil {
			return fmt.Errorf("detaching spouse of %s: %w", id, err)
		}
		if n > 0 {
			s.logger.Debug("detached previous spouse", zap.String("person_id", id), zap.Int("cleared", n))
		}
	}
	return nil
}

// ensureReciprocal creates the counterpart of primary unless one already exists.
// Returns the id of the reciprocal edge, new or pre-existing.
func (s *GraphService) ensureReciprocal(
	ctx context.Context,
	rels ports.RelationshipStore,
	primary *entities.Relationship,
	spec *ReciprocalSpec,
) (string, error) {
	existing, err := rels.Find(ctx, primary.ToID, primary.FromID, spec.ReciprocalType)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	reciprocal := &entities.Relationship{
		ID:        s.newID(),
		FromID:    primary.ToID,
		ToID:      primary.FromID,
		Type:      spec.ReciprocalType,
		Strength:  primary.Strength,
		Since:     primary.Since,
		Notes:     reciprocalNotesPrefix + primary.Type,
		CreatedAt: primary.CreatedAt,
	}
	if err := rels.Insert(ctx, reciprocal); err != nil {
		return "", err
	}
	return reciprocal.ID, nil
}

// UpdatePerson applies patch to a Person. A SpouseID change detaches the old
// partner and attaches the new one on the Person records only; no spouse edge
// is created or removed. FatherID/MotherID are written as given.
func (s *GraphService) UpdatePerson(ctx context.Context, id string, patch entities.PersonPatch) (person *entities.Person, err error) {
	defer s.observe(OpUpdatePerson, s.now(), &err)

	if err := validatePatch(id, patch); err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(st ports.Stores) error {
		current, err := mustGetPerson(ctx, st.Persons, id)
		if err != nil {
			return err
		}
		for _, ref := range []string{patch.SpouseID.ID, patch.FatherID.ID, patch.MotherID.ID} {
			if ref == "" {
				continue
			}
			if _, err := mustGetPerson(ctx, st.Persons, ref); err != nil {
				return err
			}
		}

		if patch.SpouseID.Set && patch.SpouseID.ID != current.SpouseID {
			if err := s.reassignSpouse(ctx, st, current, patch.SpouseID.ID); err != nil {
				return err
			}
		}

		if err := st.Persons.Update(ctx, id, patch); err != nil {
			return fmt.Errorf("updating person: %w", err)
		}

		if err := st.Audit.LogAction(ctx, entities.ActionPersonUpdate, id, patchDetails(patch)); err != nil {
			return fmt.Errorf("logging action: %w", err)
		}

		person, err = st.Persons.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("reloading person: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

// reassignSpouse moves current's spouse pointer to newSpouseID on both sides.
func (s *GraphService) reassignSpouse(ctx context.Context, st ports.Stores, current *entities.Person, newSpouseID string) error {
	if newSpouseID == "" {
		return s.detachSpouseClaims(ctx, st.Persons, current.ID)
	}

	if err := s.detachSpouseClaims(ctx, st.Persons, current.ID, newSpouseID); err != nil {
		return err
	}
	if err := st.Persons.Update(ctx, newSpouseID, entities.PersonPatch{SpouseID: entities.SetID(current.ID)}); err != nil {
		return fmt.Errorf("attaching spouse %s: %w", newSpouseID, err)
	}

	linked, err := hasSpouseEdge(ctx, st.Relationships, current.ID, newSpouseID)
	if err != nil {
		return err
	}
	if !linked {
		// The edge view is maintained separately by CreateRelationship.
		s.logger.Warn("spouse changed without a spouse relationship edge",
			zap.String("person_id", current.ID),
			zap.String("previous_spouse_id", current.SpouseID),
			zap.String("spouse_id", newSpouseID),
		)
	}
	return nil
}

// hasSpouseEdge reports whether a spouse, husband or wife edge joins a and b
// in either direction.
func hasSpouseEdge(ctx context.Context, rels ports.RelationshipStore, a, b string) (bool, error) {
	edges, err := rels.FindByEndpoint(ctx, a)
	if err != nil {
		return false, fmt.Errorf("finding relationships of %s: %w", a, err)
	}
	for i := range edges {
		if edges[i].Kind() == entities.KindSpouse && edges[i].Touches(b) {
			return true, nil
		}
	}
	return false, nil
}

// DeletePerson removes a Person together with every reference to it: spouse
// and parent pointers held by other Persons and every edge touching it.
func (s *GraphService) DeletePerson(ctx context.Context, id string) (err error) {
	defer s.observe(OpDeletePerson, s.now(), &err)

	var removedEdges int
	err = s.store.RunInTx(ctx, func(st ports.Stores) error {
		if _, err := mustGetPerson(ctx, st.Persons, id); err != nil {
			return err
		}

		// Covers the recorded spouse as well as any one-sided claim.
		if err := s.detachSpouseClaims(ctx, st.Persons, id); err != nil {
			return err
		}

		for _, ref := range []entities.PersonRef{entities.RefFather, entities.RefMother} {
			if _, err := st.Persons.UpdateWhere(ctx, entities.PersonFilter{Ref: ref, Equals: id}, ref.Clear()); err != nil {
				return fmt.Errorf("clearing %s references: %w", ref, err)
			}
		}

		n, err := st.Relationships.DeleteByEndpoint(ctx, id)
		if err != nil {
			return fmt.Errorf("deleting relationships: %w", err)
		}
		removedEdges = n

		if err := st.Persons.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting person: %w", err)
		}

		return st.Audit.LogAction(ctx, entities.ActionPersonDelete, id, map[string]any{"relationships_removed": n})
	})
	if err != nil {
		return err
	}

	s.logger.Debug("person deleted", zap.String("id", id), zap.Int("relationships_removed", removedEdges))
	return nil
}

// DeleteRelationship removes a single edge. Person shortcut fields are never
// touched. The reciprocal edge is removed only when reciprocal cascade is on.
func (s *GraphService) DeleteRelationship(ctx context.Context, id string) (err error) {
	defer s.observe(OpDeleteRelationship, s.now(), &err)

	return s.store.RunInTx(ctx, func(st ports.Stores) error {
		rel, err := st.Relationships.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("finding relationship: %w", err)
		}
		if rel == nil {
			return fmt.Errorf("relationship %s: %w", id, entities.ErrNotFound)
		}

		if err := st.Relationships.DeleteByID(ctx, id); err != nil {
			return fmt.Errorf("deleting relationship: %w", err)
		}

		details := map[string]any{"from_id": rel.FromID, "to_id": rel.ToID, "type": rel.Type}
		if s.cascadeReciprocalDelete && !rel.ReciprocalSuppressed {
			counterpart, err := findCounterpart(ctx, st, rel)
			if err != nil {
				return err
			}
			if counterpart != nil {
				if err := st.Relationships.DeleteByID(ctx, counterpart.ID); err != nil {
					return fmt.Errorf("deleting reciprocal relationship: %w", err)
				}
				details["reciprocal_id"] = counterpart.ID
			}
		}

		return st.Audit.LogAction(ctx, entities.ActionRelationshipDelete, id, details)
	})
}

// Relationship returns a single edge by id.
func (s *GraphService) Relationship(ctx context.Context, id string) (*entities.Relationship, error) {
	var rel *entities.Relationship
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		found, err := st.Relationships.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("finding relationship: %w", err)
		}
		if found == nil {
			return fmt.Errorf("relationship %s: %w", id, entities.ErrNotFound)
		}
		rel = found
		return nil
	})
	return rel, err
}

// Relationships returns every edge touching personID.
func (s *GraphService) Relationships(ctx context.Context, personID string) ([]entities.Relationship, error) {
	var rels []entities.Relationship
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		if _, err := mustGetPerson(ctx, st.Persons, personID); err != nil {
			return err
		}
		found, err := st.Relationships.FindByEndpoint(ctx, personID)
		if err != nil {
			return fmt.Errorf("finding relationships: %w", err)
		}
		rels = found
		return nil
	})
	return rels, err
}

// Count returns the total number of edges.
func (s *GraphService) Count(ctx context.Context) (int, error) {
	var n int
	err := s.store.RunInTx(ctx, func(st ports.Stores) error {
		var err error
		n, err = st.Relationships.Count(ctx)
		return err
	})
	return n, err
}

func (s *GraphService) observe(op string, start time.Time, errp *error) {
	s.recorder.ObserveOperation(op, outcomeOf(*errp), s.now().Sub(start))
}

// outcomeOf maps an operation error to a low-cardinality label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, entities.ErrNotFound):
		return "not_found"
	case errors.Is(err, entities.ErrConflict):
		return "conflict"
	case errors.Is(err, entities.ErrInvalidOperation):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// mustGetPerson loads a Person, turning absence into entities.ErrNotFound.
func mustGetPerson(ctx context.Context, persons ports.PersonStore, id string) (*entities.Person, error) {
	person, err := persons.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading person %s: %w", id, err)
	}
	if person == nil {
		return nil, fmt.Errorf("person %s: %w", id, entities.ErrNotFound)
	}
	return person, nil
}

// findCounterpart returns the edge rel.ToID -> rel.FromID that pairs with rel, if any.
func findCounterpart(ctx context.Context, st ports.Stores, rel *entities.Relationship) (*entities.Relationship, error) {
	from, err := st.Persons.Get(ctx, rel.FromID)
	if err != nil {
		return nil, fmt.Errorf("loading person %s: %w", rel.FromID, err)
	}
	to, err := st.Persons.Get(ctx, rel.ToID)
	if err != nil {
		return nil, fmt.Errorf("loading person %s: %w", rel.ToID, err)
	}

	candidates, err := st.Relationships.FindByEndpoint(ctx, rel.ToID)
	if err != nil {
		return nil, fmt.Errorf("finding relationships: %w", err)
	}
	for i := range candidates {
		c := &candidates[i]
		if c.ID == rel.ID || c.FromID != rel.ToID || c.ToID != rel.FromID {
			continue
		}
		if isCounterpart(rel, c, genderOf(from), genderOf(to)) {
			return c, nil
		}
	}
	return nil, nil
}

// isCounterpart reports whether back (to -> from) is the reciprocal of rel
// (from -> to), or rel is the reciprocal of back. Both directions are checked
// because "child" classifies differently depending on which end is the source.
func isCounterpart(rel, back *entities.Relationship, fromGender, toGender entities.Gender) bool {
	if spec := Classify(rel.Type, fromGender); spec != nil && entities.SameType(spec.ReciprocalType, back.Type) {
		return true
	}
	if spec := Classify(back.Type, toGender); spec != nil && entities.SameType(spec.ReciprocalType, rel.Type) {
		return true
	}
	return false
}

func genderOf(person *entities.Person) entities.Gender {
	if person == nil {
		return entities.GenderUnspecified
	}
	return person.Gender
}

// validatePatch rejects patches that could never succeed.
func validatePatch(id string, patch entities.PersonPatch) error {
	if patch.IsEmpty() {
		return fmt.Errorf("empty update for person %s: %w", id, entities.ErrInvalidOperation)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return fmt.Errorf("name cannot be empty: %w", entities.ErrInvalidOperation)
	}
	if patch.Gender != nil && !patch.Gender.IsValid() {
		return fmt.Errorf("invalid gender %q: %w", *patch.Gender, entities.ErrInvalidOperation)
	}
	for _, ref := range []string{patch.SpouseID.ID, patch.FatherID.ID, patch.MotherID.ID} {
		if ref == id {
			return fmt.Errorf("person %s cannot reference itself: %w", id, entities.ErrInvalidOperation)
		}
	}
	return nil
}

func patchDetails(patch entities.PersonPatch) map[string]any {
	details := make(map[string]any, 5)
	if patch.Name != nil {
		details["name"] = *patch.Name
	}
	if patch.Gender != nil {
		details["gender"] = string(*patch.Gender)
	}
	if patch.SpouseID.Set {
		details["spouse_id"] = patch.SpouseID.ID
	}
	if patch.FatherID.Set {
		details["father_id"] = patch.FatherID.ID
	}
	if patch.MotherID.Set {
		details["mother_id"] = patch.MotherID.ID
	}
	return details
}
