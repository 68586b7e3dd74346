package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/kin-core/internal/domain/entities"
)

func TestCheckService_CleanGraph(t *testing.T) {
	g := newTestGraph(t)
	a := g.person(t, "A", entities.GenderMale)
	b := g.person(t, "B", entities.GenderFemale)
	c := g.person(t, "C", entities.GenderUnspecified)
	d := g.person(t, "D", entities.GenderUnspecified)

	g.relate(t, a, b, "spouse")
	g.relate(t, a, c, "father")
	g.relate(t, b, d, "child")
	g.relate(t, c, d, "sibling")
	g.relate(t, c, d, "colleague")

	report, err := NewCheckService(g.store).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)
	assert.Equal(t, 4, report.Persons)
	assert.Equal(t, 9, report.Relationships)
}

func TestCheckService_ReportsDrift(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	a := g.person(t, "A", entities.GenderMale)
	b := g.person(t, "B", entities.GenderFemale)
	c := g.person(t, "C", entities.GenderFemale)
	child := g.person(t, "Child", entities.GenderUnspecified)

	// UpdatePerson writes shortcut fields without edges.
	_, err := g.graph.UpdatePerson(ctx, child.ID, entities.PersonPatch{FatherID: entities.SetID(a.ID)})
	require.NoError(t, err)

	// A one-sided spouse claim and a dangling mother pointer.
	g.patchPerson(t, c.ID, entities.PersonPatch{SpouseID: entities.SetID(a.ID), MotherID: entities.SetID("ghost")})

	// Deleting one direction leaves the other without a reciprocal.
	rel := g.relate(t, a, b, "sibling")
	require.NoError(t, g.graph.DeleteRelationship(ctx, rel.ID))

	report, err := NewCheckService(g.store).Check(ctx)
	require.NoError(t, err)
	require.False(t, report.OK())

	kinds := make(map[ViolationKind][]Violation)
	for _, v := range report.Violations {
		kinds[v.Kind] = append(kinds[v.Kind], v)
	}

	require.Len(t, kinds[ViolationParentWithoutEdge], 1)
	assert.Equal(t, child.ID, kinds[ViolationParentWithoutEdge][0].PersonID)

	require.Len(t, kinds[ViolationSpouseAsymmetric], 1)
	assert.Equal(t, c.ID, kinds[ViolationSpouseAsymmetric][0].PersonID)

	require.Len(t, kinds[ViolationDanglingReference], 1)
	assert.Contains(t, kinds[ViolationDanglingReference][0].Message, "ghost")

	require.Len(t, kinds[ViolationMissingReciprocal], 1)
	assert.Equal(t, b.ID, kinds[ViolationMissingReciprocal][0].PersonID)

	for i := 1; i < len(report.Violations); i++ {
		assert.LessOrEqual(t, report.Violations[i-1].Kind, report.Violations[i].Kind)
	}
}

func TestCheckService_SuppressedEdgesNeedNoReciprocal(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()
	a := g.person(t, "A", entities.GenderMale)
	b := g.person(t, "B", entities.GenderMale)

	_, err := g.graph.CreateRelationship(ctx, CreateRelationshipRequest{
		FromID: a.ID, ToID: b.ID, Type: "sibling", NoReciprocal: true,
	})
	require.NoError(t, err)

	report, err := NewCheckService(g.store).Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)
}
