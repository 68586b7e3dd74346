package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/services"
)

// KnownRelationTypes lists the relationship types the engine keeps consistent.
// Any other type is accepted and stored without a reciprocal.
var KnownRelationTypes = []string{
	entities.TypeSpouse, entities.TypeHusband, entities.TypeWife,
	entities.TypeFather, entities.TypeMother, entities.TypeChild,
	entities.TypeSibling,
}

// RelationshipHandler handles relationship operations.
type RelationshipHandler struct {
	graph *services.GraphService
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(graph *services.GraphService) *RelationshipHandler {
	return &RelationshipHandler{
		graph: graph,
	}
}

// CreateOptions holds the optional attributes of a new relationship.
type CreateOptions struct {
	NoReciprocal bool
	Strength     float64
	Since        string // YYYY-MM-DD
	Description  string
	Notes        string
}

// ListOptions configures relationship listing behavior.
type ListOptions struct {
	Type string // Filter by relationship type, case-insensitive (empty = all)
}

// ListResult contains the result of listing relationships.
type ListResult struct {
	Relationships []entities.Relationship `json:"relationships"`
}

// HandleCreate creates a new relationship from -> to.
func (h *RelationshipHandler) HandleCreate(
	ctx context.Context,
	fromID string,
	relType string,
	toID string,
	opts CreateOptions,
) (*entities.Relationship, error) {
	attrs := entities.RelationshipAttrs{
		Description: opts.Description,
		Strength:    opts.Strength,
		Notes:       opts.Notes,
	}
	if opts.Since != "" {
		since, err := time.Parse(services.SinceLayout, opts.Since)
		if err != nil {
			return nil, fmt.Errorf("invalid since date %q (expected YYYY-MM-DD): %w", opts.Since, entities.ErrInvalidOperation)
		}
		attrs.Since = &since
	}

	return h.graph.CreateRelationship(ctx, services.CreateRelationshipRequest{
		FromID:       strings.TrimSpace(fromID),
		ToID:         strings.TrimSpace(toID),
		Type:         relType,
		Attrs:        attrs,
		NoReciprocal: opts.NoReciprocal,
	})
}

// HandleDelete removes a relationship by ID.
func (h *RelationshipHandler) HandleDelete(ctx context.Context, id string) error {
	return h.graph.DeleteRelationship(ctx, id)
}

// HandleList returns relationships touching a person with optional filtering.
func (h *RelationshipHandler) HandleList(ctx context.Context, personID string, opts ListOptions) (*ListResult, error) {
	relationships, err := h.graph.Relationships(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}

	// Filter by type if specified
	if opts.Type != "" {
		filtered := make([]entities.Relationship, 0, len(relationships))
		for i := range relationships {
			if entities.SameType(relationships[i].Type, opts.Type) {
				filtered = append(filtered, relationships[i])
			}
		}
		relationships = filtered
	}

	if relationships == nil {
		relationships = []entities.Relationship{}
	}
	return &ListResult{Relationships: relationships}, nil
}

// HandleCount returns the total number of relationships.
func (h *RelationshipHandler) HandleCount(ctx context.Context) (int, error) {
	return h.graph.Count(ctx)
}
