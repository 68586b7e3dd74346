package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/services"
)

// PersonHandler handles person operations at the application layer.
type PersonHandler struct {
	persons *services.PersonService
	graph   *services.GraphService
}

// NewPersonHandler creates a new PersonHandler.
func NewPersonHandler(persons *services.PersonService, graph *services.GraphService) *PersonHandler {
	return &PersonHandler{
		persons: persons,
		graph:   graph,
	}
}

// PersonListResult contains the result of listing persons.
type PersonListResult struct {
	Persons []*entities.Person `json:"persons"`
	Total   int                `json:"total"`
}

// PersonDetail is a person together with every edge touching it.
type PersonDetail struct {
	Person        *entities.Person        `json:"person"`
	Relationships []entities.Relationship `json:"relationships"`
}

// UpdateOptions holds the fields to change. A nil field is left alone; an
// empty string for a spouse or parent clears it.
type UpdateOptions struct {
	Name   *string
	Gender *string
	Spouse *string
	Father *string
	Mother *string
}

// HandleAdd creates a person.
func (h *PersonHandler) HandleAdd(ctx context.Context, name, gender string) (*entities.Person, error) {
	g, err := entities.ParseGender(gender)
	if err != nil {
		return nil, err
	}
	return h.persons.Create(ctx, name, g)
}

// HandleList returns persons with pagination.
func (h *PersonHandler) HandleList(ctx context.Context, limit, offset int) (*PersonListResult, error) {
	persons, err := h.persons.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	count, err := h.persons.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &PersonListResult{
		Persons: persons,
		Total:   count,
	}, nil
}

// HandleShow returns a person and its relationships.
func (h *PersonHandler) HandleShow(ctx context.Context, id string) (*PersonDetail, error) {
	person, err := h.persons.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rels, err := h.graph.Relationships(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}

	return &PersonDetail{
		Person:        person,
		Relationships: rels,
	}, nil
}

// HandleUpdate applies opts to a person through the consistency engine.
func (h *PersonHandler) HandleUpdate(ctx context.Context, id string, opts UpdateOptions) (*entities.Person, error) {
	patch, err := opts.toPatch()
	if err != nil {
		return nil, err
	}
	return h.graph.UpdatePerson(ctx, id, patch)
}

// HandleDelete removes a person and every reference to it.
func (h *PersonHandler) HandleDelete(ctx context.Context, id string) error {
	return h.graph.DeletePerson(ctx, id)
}

// HandleHistory returns the audit trail of a person or relationship.
func (h *PersonHandler) HandleHistory(ctx context.Context, id string) ([]entities.AuditEntry, error) {
	return h.persons.History(ctx, id)
}

func (o UpdateOptions) toPatch() (entities.PersonPatch, error) {
	var patch entities.PersonPatch
	if o.Name != nil {
		name := strings.TrimSpace(*o.Name)
		patch.Name = &name
	}
	if o.Gender != nil {
		g, err := entities.ParseGender(*o.Gender)
		if err != nil {
			return entities.PersonPatch{}, err
		}
		patch.Gender = &g
	}
	patch.SpouseID = idChange(o.Spouse)
	patch.FatherID = idChange(o.Father)
	patch.MotherID = idChange(o.Mother)
	return patch, nil
}

func idChange(v *string) entities.IDChange {
	if v == nil {
		return entities.IDChange{}
	}
	if id := strings.TrimSpace(*v); id != "" {
		return entities.SetID(id)
	}
	return entities.ClearID()
}
